// Package api is the HTTP and WebSocket edge: echo routes, the response
// envelope, admin auth and the upgrade path into the push registry.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/ultra-dojo/coach/pkg/knowledge"
	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/orchestrator"
	"github.com/ultra-dojo/coach/pkg/push"
	"github.com/ultra-dojo/coach/pkg/services"
)

// MaxUserInputChars bounds the seller's utterance length.
const MaxUserInputChars = 5000

// Orchestrator is the request-path surface. Implemented by
// orchestrator.Orchestrator.
type Orchestrator interface {
	HandleSend(ctx context.Context, req orchestrator.SendRequest) (*orchestrator.SendResult, error)
	HandleFeedback(ctx context.Context, entry models.FeedbackEntry) (*orchestrator.FeedbackResult, error)
	RetrySlowPath(ctx context.Context, sessionID, language string) error
	GroupFeedback(ctx context.Context, language string) ([]orchestrator.FeedbackTheme, error)
}

// SessionService is the session surface the handlers need.
type SessionService interface {
	Create(ctx context.Context, language string) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	FullHistory(ctx context.Context, sessionID string) (services.History, error)
	End(ctx context.Context, sessionID string, outcome models.SessionOutcome) error
}

// AnalysisReader reads back stored analyses.
type AnalysisReader interface {
	Latest(ctx context.Context, sessionID string) (*models.AnalysisEntry, error)
}

// FeedbackAdmin is the curation surface behind the admin routes.
type FeedbackAdmin interface {
	Details(ctx context.Context, note, language string) ([]models.FeedbackEntry, error)
	CreateStandard(ctx context.Context, feedbackID int64, situation, response, language string) (int64, error)
}

// KnowledgeService manages retrieval nuggets.
type KnowledgeService interface {
	List(ctx context.Context, language string) ([]knowledge.Nugget, error)
	Add(ctx context.Context, n knowledge.Nugget) (string, error)
	Delete(ctx context.Context, id string) error
	AddGoldenStandard(ctx context.Context, situation, response, language string) (string, error)
}

// AnalyticsService computes the admin dashboard.
type AnalyticsService interface {
	Dashboard(ctx context.Context, from, to *time.Time) (*services.Dashboard, error)
}

// ChannelRegistry attaches WebSocket connections as push channels.
type ChannelRegistry interface {
	Attach(ctx context.Context, sessionID string, conn *websocket.Conn) (*push.Channel, error)
	Detach(ch *push.Channel)
}

// HealthChecker reports a dependency's liveness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	Addr     string
	AdminKey string
}

// Server wires the handlers onto an echo instance behind an http.Server.
type Server struct {
	echo *echo.Echo
	http *http.Server

	orch      Orchestrator
	sessions  SessionService
	analyses  AnalysisReader
	feedback  FeedbackAdmin
	knowledge KnowledgeService
	analytics AnalyticsService
	registry  ChannelRegistry
	dbHealth  HealthChecker

	logger *slog.Logger
}

// NewServer assembles the routes.
func NewServer(
	cfg Config,
	orch Orchestrator,
	sessions SessionService,
	analyses AnalysisReader,
	feedback FeedbackAdmin,
	knowledgeSvc KnowledgeService,
	analytics AnalyticsService,
	registry ChannelRegistry,
	dbHealth HealthChecker,
	logger *slog.Logger,
) *Server {
	e := echo.New()
	e.HTTPErrorHandler = envelopeErrorHandler

	s := &Server{
		echo:      e,
		orch:      orch,
		sessions:  sessions,
		analyses:  analyses,
		feedback:  feedback,
		knowledge: knowledgeSvc,
		analytics: analytics,
		registry:  registry,
		dbHealth:  dbHealth,
		logger:    logger,
	}
	s.registerRoutes(cfg.AdminKey)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(adminKey string) {
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/ws/sessions/:session_id", s.wsHandler)

	sessions := v1.Group("/sessions")
	sessions.POST("/new", s.newSessionHandler)
	sessions.GET("/:id", s.getSessionHandler)
	sessions.POST("/send", s.sendHandler)
	sessions.POST("/refine", s.refineHandler)
	sessions.POST("/retry_slowpath", s.retrySlowPathHandler)
	sessions.POST("/end", s.endSessionHandler)
	sessions.POST("/feedback", s.feedbackHandler)

	v1.POST("/intel/burning_house", s.urgencyScoreHandler)

	admin := v1.Group("/admin", adminAuth(adminKey))
	admin.GET("/rag/list", s.listNuggetsHandler)
	admin.POST("/rag/add", s.addNuggetHandler)
	admin.DELETE("/rag/delete/:id", s.deleteNuggetHandler)
	admin.GET("/feedback/grouped", s.groupedFeedbackHandler)
	admin.GET("/feedback/details", s.feedbackDetailsHandler)
	admin.POST("/feedback/create_standard", s.createStandardHandler)
	admin.GET("/analytics/v1_dashboard", s.analyticsHandler)
}

// Handler exposes the echo instance for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
