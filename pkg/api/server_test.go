package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ultra-dojo/coach/pkg/knowledge"
	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/orchestrator"
	"github.com/ultra-dojo/coach/pkg/services"
)

const testAdminKey = "test-admin-key"

type stubOrchestrator struct {
	sendResult     *orchestrator.SendResult
	sendErr        error
	gotSend        orchestrator.SendRequest
	feedbackResult *orchestrator.FeedbackResult
	feedbackErr    error
	gotFeedback    models.FeedbackEntry
	retryErr       error
	retriedID      string
	themes         []orchestrator.FeedbackTheme
	themesErr      error
}

func (s *stubOrchestrator) HandleSend(ctx context.Context, req orchestrator.SendRequest) (*orchestrator.SendResult, error) {
	s.gotSend = req
	return s.sendResult, s.sendErr
}

func (s *stubOrchestrator) HandleFeedback(ctx context.Context, entry models.FeedbackEntry) (*orchestrator.FeedbackResult, error) {
	s.gotFeedback = entry
	return s.feedbackResult, s.feedbackErr
}

func (s *stubOrchestrator) RetrySlowPath(ctx context.Context, sessionID, language string) error {
	s.retriedID = sessionID
	return s.retryErr
}

func (s *stubOrchestrator) GroupFeedback(ctx context.Context, language string) ([]orchestrator.FeedbackTheme, error) {
	return s.themes, s.themesErr
}

type stubSessionService struct {
	session    *models.Session
	createErr  error
	getErr     error
	history    services.History
	historyErr error
	endErr     error
	endedWith  models.SessionOutcome
}

func (s *stubSessionService) Create(ctx context.Context, language string) (*models.Session, error) {
	return s.session, s.createErr
}

func (s *stubSessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.session, s.getErr
}

func (s *stubSessionService) FullHistory(ctx context.Context, sessionID string) (services.History, error) {
	return s.history, s.historyErr
}

func (s *stubSessionService) End(ctx context.Context, sessionID string, outcome models.SessionOutcome) error {
	s.endedWith = outcome
	return s.endErr
}

type stubAnalysisReader struct {
	entry *models.AnalysisEntry
	err   error
}

func (s *stubAnalysisReader) Latest(ctx context.Context, sessionID string) (*models.AnalysisEntry, error) {
	return s.entry, s.err
}

type stubFeedbackAdmin struct {
	entries     []models.FeedbackEntry
	detailsErr  error
	standardID  int64
	standardErr error
}

func (s *stubFeedbackAdmin) Details(ctx context.Context, note, language string) ([]models.FeedbackEntry, error) {
	return s.entries, s.detailsErr
}

func (s *stubFeedbackAdmin) CreateStandard(ctx context.Context, feedbackID int64, situation, response, language string) (int64, error) {
	return s.standardID, s.standardErr
}

type stubKnowledgeService struct {
	nuggets   []knowledge.Nugget
	listErr   error
	addedID   string
	addErr    error
	deletedID string
	deleteErr error
	goldenID  string
	goldenErr error
}

func (s *stubKnowledgeService) List(ctx context.Context, language string) ([]knowledge.Nugget, error) {
	return s.nuggets, s.listErr
}

func (s *stubKnowledgeService) Add(ctx context.Context, n knowledge.Nugget) (string, error) {
	return s.addedID, s.addErr
}

func (s *stubKnowledgeService) Delete(ctx context.Context, id string) error {
	s.deletedID = id
	return s.deleteErr
}

func (s *stubKnowledgeService) AddGoldenStandard(ctx context.Context, situation, response, language string) (string, error) {
	return s.goldenID, s.goldenErr
}

type stubAnalytics struct {
	dashboard *services.Dashboard
	err       error
}

func (s *stubAnalytics) Dashboard(ctx context.Context, from, to *time.Time) (*services.Dashboard, error) {
	return s.dashboard, s.err
}

type stubHealth struct{ err error }

func (s *stubHealth) Ping(ctx context.Context) error { return s.err }

type testServer struct {
	server    *Server
	orch      *stubOrchestrator
	sessions  *stubSessionService
	analyses  *stubAnalysisReader
	feedback  *stubFeedbackAdmin
	knowledge *stubKnowledgeService
	analytics *stubAnalytics
	health    *stubHealth
}

func newTestServer() *testServer {
	ts := &testServer{
		orch: &stubOrchestrator{
			sendResult: &orchestrator.SendResult{
				SessionID: "S-ABC-123",
				Stage:     models.StageDiscovery,
				Reply: &models.FastReply{
					SuggestedResponse:  "Zapytaj o przebieg.",
					SuggestedQuestions: []string{},
					SellerQuestions:    []string{},
					ClientStyle:        models.StyleDriver,
					ConfidenceScore:    0.8,
				},
			},
			feedbackResult: &orchestrator.FeedbackResult{FeedbackID: 7},
			themes:         []orchestrator.FeedbackTheme{},
		},
		sessions: &stubSessionService{
			session: &models.Session{ID: "S-ABC-123", JourneyStage: models.StageDiscovery, Language: "pl"},
		},
		analyses:  &stubAnalysisReader{err: services.ErrNotFound},
		feedback:  &stubFeedbackAdmin{standardID: 3},
		knowledge: &stubKnowledgeService{addedID: "nugget-1", goldenID: "nugget-2"},
		analytics: &stubAnalytics{dashboard: &services.Dashboard{}},
		health:    &stubHealth{},
	}
	ts.server = NewServer(Config{Addr: ":0", AdminKey: testAdminKey},
		ts.orch, ts.sessions, ts.analyses, ts.feedback, ts.knowledge,
		ts.analytics, nil, ts.health, slog.Default())
	return ts
}

// do runs a request through the full route stack, middleware and error
// handler included, and decodes the envelope.
func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var env envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env),
		"response is not an envelope: %s", rec.Body.String())
	return rec, env
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}

// envelopeBody mirrors the response envelope with data left generic.
type envelopeBody struct {
	Status  string         `json:"status"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
}
