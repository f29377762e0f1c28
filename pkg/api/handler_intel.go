package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ultra-dojo/coach/pkg/intel"
)

// urgencyScoreHandler handles POST /api/v1/intel/burning_house. The score
// is pure computation, so the handler runs it inline.
func (s *Server) urgencyScoreHandler(c *echo.Context) error {
	var req urgencyScoreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	score := intel.ScoreFromEstimates(intel.EstimateInput{
		FuelConsumptionL100km: req.FuelConsumptionL100km,
		MonthlyDistanceKm:     req.MonthlyDistanceKm,
		FuelPricePerLiter:     req.FuelPricePerLiter,
		VehicleAgeMonths:      req.VehicleAgeMonths,
		PurchaseType:          req.PurchaseType,
		PlannedVehiclePLN:     req.PlannedVehiclePLN,
		SubsidyDeadlineDays:   req.SubsidyDeadlineDays,
		Language:              req.Language,
	})
	return respondSuccess(c, http.StatusOK, score)
}
