package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ultra-dojo/coach/pkg/knowledge"
)

// listNuggetsHandler handles GET /api/v1/admin/rag/list.
func (s *Server) listNuggetsHandler(c *echo.Context) error {
	nuggets, err := s.knowledge.List(c.Request().Context(), c.QueryParam("language"))
	if err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusOK, map[string]any{
		"nuggets": nuggets,
		"count":   len(nuggets),
	})
}

// addNuggetHandler handles POST /api/v1/admin/rag/add.
func (s *Server) addNuggetHandler(c *echo.Context) error {
	var req addNuggetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	id, err := s.knowledge.Add(c.Request().Context(), knowledge.Nugget{
		Title:    req.Title,
		Content:  req.Content,
		Keywords: req.Keywords,
		Language: req.Language,
		Type:     req.Type,
		Tags:     req.Tags,
	})
	if err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusCreated, map[string]any{"id": id})
}

// deleteNuggetHandler handles DELETE /api/v1/admin/rag/delete/:id.
func (s *Server) deleteNuggetHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "nugget id is required")
	}
	if err := s.knowledge.Delete(c.Request().Context(), id); err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// groupedFeedbackHandler handles GET /api/v1/admin/feedback/grouped.
func (s *Server) groupedFeedbackHandler(c *echo.Context) error {
	themes, err := s.orch.GroupFeedback(c.Request().Context(), c.QueryParam("language"))
	if err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusOK, map[string]any{"themes": themes})
}

// feedbackDetailsHandler handles GET /api/v1/admin/feedback/details.
func (s *Server) feedbackDetailsHandler(c *echo.Context) error {
	note := c.QueryParam("note")
	if note == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "note is required")
	}

	entries, err := s.feedback.Details(c.Request().Context(), note, c.QueryParam("language"))
	if err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusOK, map[string]any{"entries": entries})
}

// createStandardHandler handles POST /api/v1/admin/feedback/create_standard.
// The standard is stored relationally and upserted into the vector store so
// retrieval starts surfacing it immediately.
func (s *Server) createStandardHandler(c *echo.Context) error {
	var req createStandardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Situation == "" || req.Response == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "situation and response are required")
	}
	ctx := c.Request().Context()

	standardID, err := s.feedback.CreateStandard(ctx, req.FeedbackID, req.Situation, req.Response, req.Language)
	if err != nil {
		return mapServiceError(err)
	}

	nuggetID, err := s.knowledge.AddGoldenStandard(ctx, req.Situation, req.Response, req.Language)
	if err != nil {
		// The relational row exists; report the partial success instead
		// of failing the whole call.
		s.logger.Warn("Golden standard not indexed for retrieval",
			"standard_id", standardID, "error", err)
	}

	return respondSuccess(c, http.StatusCreated, map[string]any{
		"standard_id": standardID,
		"nugget_id":   nuggetID,
	})
}

// analyticsHandler handles GET /api/v1/admin/analytics/v1_dashboard.
func (s *Server) analyticsHandler(c *echo.Context) error {
	from, err := parseDateParam(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
	}
	to, err := parseDateParam(c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
	}

	dashboard, err := s.analytics.Dashboard(c.Request().Context(), from, to)
	if err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusOK, dashboard)
}

func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
