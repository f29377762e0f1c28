package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ultra-dojo/coach/pkg/knowledge"
	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/orchestrator"
	"github.com/ultra-dojo/coach/pkg/services"
)

func TestListNuggetsHandler(t *testing.T) {
	ts := newTestServer()
	ts.knowledge.nuggets = []knowledge.Nugget{
		{ID: "n1", Title: "Limit amortyzacji", Language: "pl"},
		{ID: "n2", Title: "Taryfa G12", Language: "pl"},
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/admin/rag/list?language=pl", "", adminHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), env.Data["count"])
}

func TestAddNuggetHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		ts := newTestServer()
		body := `{"title": "Limit amortyzacji", "content": "EV do 225k PLN", "language": "pl", "keywords": ["tco"]}`

		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/rag/add", body, adminHeaders())

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "nugget-1", env.Data["id"])
	})

	t.Run("content required", func(t *testing.T) {
		s := &Server{}
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/rag/add",
			strings.NewReader(`{"title": "bez treści"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := s.addNuggetHandler(c)
		if assert.Error(t, err) {
			he, ok := err.(*echo.HTTPError)
			if assert.True(t, ok) {
				assert.Equal(t, http.StatusBadRequest, he.Code)
				assert.Contains(t, he.Message, "content is required")
			}
		}
	})
}

func TestDeleteNuggetHandler(t *testing.T) {
	ts := newTestServer()

	rec, env := ts.do(t, http.MethodDelete, "/api/v1/admin/rag/delete/n1", "", adminHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, env.Data["deleted"])
	assert.Equal(t, "n1", ts.knowledge.deletedID)
}

func TestGroupedFeedbackHandler(t *testing.T) {
	ts := newTestServer()
	ts.orch.themes = []orchestrator.FeedbackTheme{
		{Theme: "tone", Count: 3, Examples: []string{"zbyt formalne"}},
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/admin/feedback/grouped?language=pl", "", adminHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	themes, ok := env.Data["themes"].([]any)
	assert.True(t, ok)
	assert.Len(t, themes, 1)
}

func TestFeedbackDetailsHandler(t *testing.T) {
	t.Run("note required", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodGet, "/api/v1/admin/feedback/details", "", adminHeaders())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Message, "note is required")
	})

	t.Run("matching entries returned", func(t *testing.T) {
		ts := newTestServer()
		ts.feedback.entries = []models.FeedbackEntry{{ID: 1, Comment: "za długie odpowiedzi"}}

		rec, env := ts.do(t, http.MethodGet, "/api/v1/admin/feedback/details?note=długie", "", adminHeaders())

		assert.Equal(t, http.StatusOK, rec.Code)
		entries, ok := env.Data["entries"].([]any)
		assert.True(t, ok)
		assert.Len(t, entries, 1)
	})
}

func TestCreateStandardHandler(t *testing.T) {
	body := `{"feedback_id": 7, "situation": "Klient pyta o zasięg zimą", "response": "Pokaż dane z floty", "language": "pl"}`

	t.Run("created and indexed", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/feedback/create_standard", body, adminHeaders())

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, float64(3), env.Data["standard_id"])
		assert.Equal(t, "nugget-2", env.Data["nugget_id"])
	})

	t.Run("indexing failure is partial success", func(t *testing.T) {
		ts := newTestServer()
		ts.knowledge.goldenErr = assert.AnError
		ts.knowledge.goldenID = ""

		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/feedback/create_standard", body, adminHeaders())

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, float64(3), env.Data["standard_id"])
		assert.Equal(t, "", env.Data["nugget_id"])
	})

	t.Run("situation and response required", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodPost, "/api/v1/admin/feedback/create_standard",
			`{"situation": "tylko sytuacja"}`, adminHeaders())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Message, "required")
	})
}

func TestAnalyticsHandler(t *testing.T) {
	t.Run("dashboard returned", func(t *testing.T) {
		ts := newTestServer()
		ts.analytics.dashboard = &services.Dashboard{
			PlaybookUsage: []services.PlaybookUsage{{Play: "tco_deep_dive", Total: 4, Won: 3, Lost: 1}},
		}

		rec, _ := ts.do(t, http.MethodGet,
			"/api/v1/admin/analytics/v1_dashboard?from=2026-01-01&to=2026-08-26", "", adminHeaders())

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid date rejected", func(t *testing.T) {
		ts := newTestServer()

		rec, env := ts.do(t, http.MethodGet,
			"/api/v1/admin/analytics/v1_dashboard?from=yesterday", "", adminHeaders())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Message, "YYYY-MM-DD")
	})
}
