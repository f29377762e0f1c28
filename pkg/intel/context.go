package intel

import (
	"fmt"
	"strings"
	"time"
)

// MarketData is the cached market snapshot the context engine composes
// from. It is injected by the caller; refreshing it from external sources
// happens outside any request path.
type MarketData struct {
	AsOf                 time.Time
	FuelPricePb95        float64 // PLN/l
	FuelPriceDiesel      float64 // PLN/l
	HomeElectricityPrice float64 // PLN/kWh
	PrivateSubsidyPLN    int
	BusinessSubsidyPLN   int
	SubsidyDeadline      string
	Region               string
}

// DefaultMarketData is the manually maintained 2026 snapshot used until a
// fresher one is injected.
var DefaultMarketData = MarketData{
	FuelPricePb95:        6.49,
	FuelPriceDiesel:      6.35,
	HomeElectricityPrice: 0.80,
	PrivateSubsidyPLN:    18_750,
	BusinessSubsidyPLN:   27_000,
	SubsidyDeadline:      "2026-12-31",
	Region:               "śląskie",
}

// ContextOptions toggles individual blocks of the strategic context.
type ContextOptions struct {
	IncludeFuelPrices bool
	IncludeSubsidies  bool
}

// StrategicContext composes the market-intelligence block injected into
// deep-analysis prompts. Blocks appear in a fixed order; a disabled block
// is skipped without leaving a gap.
func StrategicContext(data MarketData, opts ContextOptions) string {
	asOf := data.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	date := asOf.Format("2006-01-02")

	blocks := []string{fmt.Sprintf(
		"STRATEGIC MARKET CONTEXT (region: %s, as of %s)", data.Region, date)}

	if opts.IncludeFuelPrices {
		blocks = append(blocks, fuelPriceBlock(data, date))
	}
	if opts.IncludeSubsidies {
		blocks = append(blocks, subsidyBlock(data, date))
	}

	blocks = append(blocks, strings.TrimSpace(`
Use the context above to: identify hidden pain points (e.g. high fuel
costs), personalize financial arguments (TCO, subsidies), create urgency
(expiring programs, rising fuel prices), and position the EV as a financial
decision, not just a car. Quote concrete numbers.`))

	return strings.Join(blocks, "\n\n")
}

func fuelPriceBlock(data MarketData, date string) string {
	const (
		annualKm          = 20_000
		iceLitersPer100km = 8.0
		evKWhPer100km     = 15.0
	)
	iceAnnual := annualKm / 100 * iceLitersPer100km * data.FuelPricePb95
	evAnnual := annualKm / 100 * evKWhPer100km * data.HomeElectricityPrice
	savings := int(iceAnnual - evAnnual)

	return strings.TrimSpace(fmt.Sprintf(`
Fuel prices (%s): Pb95 %.2f PLN/l, Diesel %.2f PLN/l, home electricity %.2f PLN/kWh.
TCO at %d km/year: combustion (%.0fL/100km) %d PLN/year vs EV (%.0fkWh/100km) %d PLN/year.
Annual savings: %d PLN.`,
		date, data.FuelPricePb95, data.FuelPriceDiesel, data.HomeElectricityPrice,
		annualKm, iceLitersPer100km, int(iceAnnual), evKWhPer100km, int(evAnnual),
		savings))
}

func subsidyBlock(data MarketData, date string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Subsidy programs (%s): private buyers up to %d PLN (new EV, price cap 225,000 PLN,
limited budget remaining); business leasing/credit up to %d PLN. Deadline %s or
earlier if the budget runs out.`,
		date, data.PrivateSubsidyPLN, data.BusinessSubsidyPLN, data.SubsidyDeadline))
}
