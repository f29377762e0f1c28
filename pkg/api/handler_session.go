package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	echo "github.com/labstack/echo/v5"

	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/orchestrator"
	"github.com/ultra-dojo/coach/pkg/services"
)

// newSessionHandler handles POST /api/v1/sessions/new.
func (s *Server) newSessionHandler(c *echo.Context) error {
	var req newSessionRequest
	// Body is optional; an empty body means default language.
	_ = c.Bind(&req)

	session, err := s.sessions.Create(c.Request().Context(), req.Language)
	if err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusCreated, session)
}

// getSessionHandler handles GET /api/v1/sessions/:id. It returns the
// conversation log plus the latest analysis; 404 when the session has
// neither a row nor any log entries.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	ctx := c.Request().Context()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	history, err := s.sessions.FullHistory(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	detail := map[string]any{
		"session":          session,
		"conversation_log": history.Entries,
	}
	if analysis, err := s.analyses.Latest(ctx, sessionID); err == nil {
		detail["latest_analysis"] = analysis
	} else if !errors.Is(err, services.ErrNotFound) {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusOK, detail)
}

// sendHandler handles POST /api/v1/sessions/send, the fast path.
func (s *Server) sendHandler(c *echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.UserInput) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_input is required")
	}
	if utf8.RuneCountInString(req.UserInput) > MaxUserInputChars {
		return echo.NewHTTPError(http.StatusBadRequest,
			"user_input exceeds maximum length of 5000 characters")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	result, err := s.orch.HandleSend(c.Request().Context(), orchestrator.SendRequest{
		SessionID: req.SessionID,
		UserInput: req.UserInput,
		Language:  req.Language,
		Stage:     req.Stage,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return respondSuccess(c, http.StatusOK, map[string]any{
		"session_id":          result.SessionID,
		"session_created":     result.SessionCreated,
		"journey_stage":       result.Stage,
		"degraded":            result.Degraded,
		"suggested_response":  result.Reply.SuggestedResponse,
		"suggested_questions": result.Reply.SuggestedQuestions,
		"optional_followup":   result.Reply.OptionalFollowup,
		"seller_questions":    result.Reply.SellerQuestions,
		"client_style":        result.Reply.ClientStyle,
		"confidence_score":    result.Reply.ConfidenceScore,
		"confidence_reason":   result.Reply.ConfidenceReason,
	})
}

// feedbackHandler handles POST /api/v1/sessions/feedback.
func (s *Server) feedbackHandler(c *echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	result, err := s.orch.HandleFeedback(c.Request().Context(), models.FeedbackEntry{
		SessionID:     req.SessionID,
		EntryRef:      req.EntryRef,
		Polarity:      models.FeedbackPolarity(req.Polarity),
		OriginalInput: req.OriginalInput,
		BadSuggestion: req.BadSuggestion,
		Comment:       req.Comment,
		Language:      req.Language,
	})
	if err != nil {
		return mapServiceError(err)
	}

	data := map[string]any{"feedback_id": result.FeedbackID}
	if result.Refined != "" {
		data["refined_suggestion"] = result.Refined
	}
	return respondSuccess(c, http.StatusOK, data)
}

// refineHandler handles POST /api/v1/sessions/refine: the corrective loop
// for a rejected suggestion. It records down-polarity feedback and returns
// the refined suggestion.
func (s *Server) refineHandler(c *echo.Context) error {
	var req refineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	if utf8.RuneCountInString(req.FeedbackNote) > MaxUserInputChars {
		return echo.NewHTTPError(http.StatusBadRequest,
			"feedback_note exceeds maximum length of 5000 characters")
	}

	result, err := s.orch.HandleFeedback(c.Request().Context(), models.FeedbackEntry{
		SessionID:     req.SessionID,
		Polarity:      models.FeedbackDown,
		OriginalInput: req.OriginalInput,
		BadSuggestion: req.BadSuggestion,
		Comment:       req.FeedbackNote,
		Language:      req.Language,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return respondSuccess(c, http.StatusOK, map[string]any{
		"refined_suggestion": result.Refined,
	})
}

// retrySlowPathHandler handles POST /api/v1/sessions/retry_slowpath.
func (s *Server) retrySlowPathHandler(c *echo.Context) error {
	var req retryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	if err := s.orch.RetrySlowPath(c.Request().Context(), req.SessionID, req.Language); err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusAccepted, map[string]any{
		"session_id": req.SessionID,
		"queued":     true,
	})
}

// endSessionHandler handles POST /api/v1/sessions/end.
func (s *Server) endSessionHandler(c *echo.Context) error {
	var req endSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	err := s.sessions.End(c.Request().Context(), req.SessionID, models.SessionOutcome(req.Outcome))
	if err != nil {
		return mapServiceError(err)
	}
	return respondSuccess(c, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"outcome":    req.Outcome,
	})
}
