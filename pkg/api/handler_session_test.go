package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/services"
)

func TestSendHandler_Validation(t *testing.T) {
	s := &Server{}

	tests := []struct {
		name    string
		body    string
		wantErr int
		errMsg  string
	}{
		{
			name:    "missing user_input",
			body:    `{"session_id": "S-ABC-123"}`,
			wantErr: http.StatusBadRequest,
			errMsg:  "user_input is required",
		},
		{
			name:    "whitespace user_input",
			body:    `{"session_id": "S-ABC-123", "user_input": "   "}`,
			wantErr: http.StatusBadRequest,
			errMsg:  "user_input is required",
		},
		{
			name:    "user_input too long",
			body:    `{"session_id": "S-ABC-123", "user_input": "` + strings.Repeat("ą", MaxUserInputChars+1) + `"}`,
			wantErr: http.StatusBadRequest,
			errMsg:  "maximum length",
		},
		{
			name:    "missing session_id",
			body:    `{"user_input": "Klient pyta o cenę."}`,
			wantErr: http.StatusBadRequest,
			errMsg:  "session_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/send", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := s.sendHandler(c)
			if assert.Error(t, err) {
				he, ok := err.(*echo.HTTPError)
				if assert.True(t, ok, "expected echo.HTTPError") {
					assert.Equal(t, tt.wantErr, he.Code)
					assert.Contains(t, he.Message, tt.errMsg)
				}
			}
		})
	}

	t.Run("input at the limit passes validation", func(t *testing.T) {
		ts := newTestServer()
		body := `{"session_id": "S-ABC-123", "user_input": "` + strings.Repeat("ą", MaxUserInputChars) + `"}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/send", body, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", env.Status)
	})
}

func TestSendHandler(t *testing.T) {
	t.Run("returns the coached reply", func(t *testing.T) {
		ts := newTestServer()
		ts.orch.sendResult.SessionCreated = true
		body := `{"session_id": "TEMP-1756200000000", "user_input": "Klient pyta o TCO.", "language": "pl", "journey_stage": "Discovery"}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/send", body, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, "S-ABC-123", env.Data["session_id"])
		assert.Equal(t, true, env.Data["session_created"])
		assert.Equal(t, "Discovery", env.Data["journey_stage"])
		assert.Equal(t, false, env.Data["degraded"])
		assert.Equal(t, "Zapytaj o przebieg.", env.Data["suggested_response"])
		assert.Equal(t, "driver", env.Data["client_style"])

		assert.Equal(t, "TEMP-1756200000000", ts.orch.gotSend.SessionID)
		assert.Equal(t, "Klient pyta o TCO.", ts.orch.gotSend.UserInput)
	})

	t.Run("degraded reply keeps HTTP 200", func(t *testing.T) {
		ts := newTestServer()
		ts.orch.sendResult.Degraded = true
		body := `{"session_id": "S-ABC-123", "user_input": "x"}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/send", body, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, env.Data["degraded"])
	})

	t.Run("validation error maps to fail envelope", func(t *testing.T) {
		ts := newTestServer()
		ts.orch.sendErr = services.NewValidationError("malformed session id")
		body := `{"session_id": "bogus", "user_input": "x"}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/send", body, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "fail", env.Status)
		assert.Contains(t, env.Message, "malformed session id")
	})

	t.Run("unexpected error maps to error envelope", func(t *testing.T) {
		ts := newTestServer()
		ts.orch.sendErr = assert.AnError
		body := `{"session_id": "S-ABC-123", "user_input": "x"}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/send", body, nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "error", env.Status)
		assert.Equal(t, "internal server error", env.Message)
	})
}

func TestNewSessionHandler(t *testing.T) {
	ts := newTestServer()

	rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/new", `{"language": "en"}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "S-ABC-123", env.Data["session_id"])

	t.Run("empty body allowed", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/new", "", nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "success", env.Status)
	})
}

func TestGetSessionHandler(t *testing.T) {
	t.Run("without analysis", func(t *testing.T) {
		ts := newTestServer()
		ts.sessions.history = services.History{
			Entries: []models.ConversationEntry{{SessionID: "S-ABC-123", Role: models.RoleSeller, Content: "x"}},
			Total:   1,
		}

		rec, env := ts.do(t, http.MethodGet, "/api/v1/sessions/S-ABC-123", "", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, env.Data, "session")
		assert.Contains(t, env.Data, "conversation_log")
		assert.NotContains(t, env.Data, "latest_analysis")
	})

	t.Run("with latest analysis", func(t *testing.T) {
		ts := newTestServer()
		ts.analyses.entry = &models.AnalysisEntry{
			ID: 1, SessionID: "S-ABC-123", Timestamp: time.Now(),
			Payload: []byte(`{"overall_confidence": 80}`), Status: models.AnalysisSuccess,
		}
		ts.analyses.err = nil

		_, env := ts.do(t, http.MethodGet, "/api/v1/sessions/S-ABC-123", "", nil)

		assert.Contains(t, env.Data, "latest_analysis")
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		ts := newTestServer()
		ts.sessions.getErr = services.ErrSessionNotFound

		rec, env := ts.do(t, http.MethodGet, "/api/v1/sessions/S-ZZZ-999", "", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "fail", env.Status)
		assert.Equal(t, "session not found", env.Message)
	})
}

func TestFeedbackHandler(t *testing.T) {
	t.Run("refined suggestion included when present", func(t *testing.T) {
		ts := newTestServer()
		ts.orch.feedbackResult.Refined = "Przedstaw kalkulację TCO."
		body := `{"session_id": "S-ABC-123", "polarity": "down", "comment": "za agresywne"}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/feedback", body, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(7), env.Data["feedback_id"])
		assert.Equal(t, "Przedstaw kalkulację TCO.", env.Data["refined_suggestion"])
	})

	t.Run("no refinement key for thumbs up", func(t *testing.T) {
		ts := newTestServer()
		body := `{"session_id": "S-ABC-123", "polarity": "up"}`

		_, env := ts.do(t, http.MethodPost, "/api/v1/sessions/feedback", body, nil)

		assert.NotContains(t, env.Data, "refined_suggestion")
	})

	t.Run("missing session_id", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/feedback", `{"polarity": "up"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "fail", env.Status)
	})
}

func TestRefineHandler(t *testing.T) {
	t.Run("returns the refined suggestion", func(t *testing.T) {
		ts := newTestServer()
		ts.orch.feedbackResult.Refined = "Przedstaw kalkulację TCO."
		body := `{"session_id": "S-ABC-123", "original_input": "Klient pyta o cenę.",
			"bad_suggestion": "Zignoruj pytanie.", "feedback_note": "za agresywne", "language": "pl"}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/refine", body, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, "Przedstaw kalkulację TCO.", env.Data["refined_suggestion"])
		assert.Equal(t, models.FeedbackDown, ts.orch.gotFeedback.Polarity)
		assert.Equal(t, "za agresywne", ts.orch.gotFeedback.Comment)
		assert.Equal(t, "Zignoruj pytanie.", ts.orch.gotFeedback.BadSuggestion)
	})

	t.Run("missing session_id", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/refine", `{"feedback_note": "x"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "fail", env.Status)
	})

	t.Run("feedback_note too long", func(t *testing.T) {
		ts := newTestServer()
		body := `{"session_id": "S-ABC-123", "feedback_note": "` + strings.Repeat("a", MaxUserInputChars+1) + `"}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/refine", body, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Message, "maximum length")
	})
}

func TestRetrySlowPathHandler(t *testing.T) {
	t.Run("queues a rerun", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/retry_slowpath",
			`{"session_id": "S-ABC-123"}`, nil)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, true, env.Data["queued"])
		assert.Equal(t, "S-ABC-123", ts.orch.retriedID)
	})

	t.Run("missing session_id", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/retry_slowpath", `{}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "fail", env.Status)
		assert.Empty(t, ts.orch.retriedID)
	})
}

func TestEndSessionHandler(t *testing.T) {
	t.Run("records the outcome", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/end",
			`{"session_id": "S-ABC-123", "outcome": "Won"}`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Won", env.Data["outcome"])
		assert.Equal(t, models.OutcomeWon, ts.sessions.endedWith)
	})

	t.Run("missing session_id", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/end", `{"outcome": "Won"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "fail", env.Status)
	})

	t.Run("invalid outcome is 400", func(t *testing.T) {
		ts := newTestServer()
		ts.sessions.endErr = services.NewValidationError("outcome must be Won or Lost")

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/end",
			`{"session_id": "S-ABC-123", "outcome": "Maybe"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "fail", env.Status)
	})

	t.Run("provisional session is 400", func(t *testing.T) {
		ts := newTestServer()
		ts.sessions.endErr = services.ErrInvalidSessionID

		rec, env := ts.do(t, http.MethodPost, "/api/v1/sessions/end",
			`{"session_id": "TEMP-123", "outcome": "Won"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid session id", env.Message)
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodGet, "/health", "", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, "healthy", env.Data["status"])
		assert.Equal(t, "ok", env.Data["database"])
	})

	t.Run("database down", func(t *testing.T) {
		ts := newTestServer()
		ts.health.err = assert.AnError

		rec, env := ts.do(t, http.MethodGet, "/health", "", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "error", env.Status)
		assert.Equal(t, "unhealthy", env.Data["status"])
	})

	t.Run("security headers set", func(t *testing.T) {
		ts := newTestServer()

		rec, _ := ts.do(t, http.MethodGet, "/health", "", nil)

		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})
}

func TestEnvelopeErrorHandler(t *testing.T) {
	ts := newTestServer()

	rec, env := ts.do(t, http.MethodGet, "/api/v1/does-not-exist", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "fail", env.Status)
	require.NotEmpty(t, env.Message)
}
