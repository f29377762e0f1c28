// Package orchestrator coordinates the two answer paths: the fast path
// that returns a coached reply while the seller is still talking, and the
// slow path that produces the deep analysis pushed over WebSocket.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ultra-dojo/coach/pkg/llm"
	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/push"
	"github.com/ultra-dojo/coach/pkg/services"
)

// SessionStore is the session-layer surface the orchestrator needs.
// Implemented by services.SessionService.
type SessionStore interface {
	EnsureCommitted(ctx context.Context, rawID, language string) (string, bool, error)
	Append(ctx context.Context, entry models.ConversationEntry) (int64, error)
	History(ctx context.Context, sessionID string) (services.History, error)
	FullHistory(ctx context.Context, sessionID string) (services.History, error)
	UpdateStage(ctx context.Context, sessionID string, stage models.JourneyStage) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
}

// AnalysisStore records slow-path outcomes. Implemented by
// services.AnalysisService.
type AnalysisStore interface {
	RecordSuccess(ctx context.Context, sessionID string, payload []byte) (int64, error)
	RecordError(ctx context.Context, sessionID string) (int64, error)
}

// FeedbackStore persists seller feedback. Implemented by
// services.FeedbackService.
type FeedbackStore interface {
	Record(ctx context.Context, entry models.FeedbackEntry) (int64, error)
	SetRefined(ctx context.Context, feedbackID int64, refined string) error
	DownNotes(ctx context.Context, language string) ([]models.FeedbackEntry, error)
}

// KnowledgeProvider assembles the retrieval context block.
type KnowledgeProvider interface {
	Context(ctx context.Context, query, language string) string
}

// ModelGateway is the model-tier surface. Implemented by llm.Gateway.
type ModelGateway interface {
	Fast(ctx context.Context, prompt string) (string, error)
	Analyze(ctx context.Context, prompt string) (*llm.AnalysisResult, error)
}

// Pusher delivers slow-path results. Implemented by push.Registry.
type Pusher interface {
	HasChannel(sessionID string) bool
	Send(sessionID string, payload []byte) push.DeliveryStatus
}

// Config bounds the orchestrator's timing behavior.
type Config struct {
	// FastBudget is the end-to-end deadline for a fast-path answer.
	FastBudget time.Duration
	// SlowPathDelay lets the client's WebSocket land before the slow
	// path starts looking for it.
	SlowPathDelay time.Duration
	// ChannelProbeTimeout bounds how long the slow path waits for a
	// push channel before analyzing anyway.
	ChannelProbeTimeout  time.Duration
	ChannelProbeInterval time.Duration
	// SlowPathWorkers caps concurrent deep analyses.
	SlowPathWorkers int64
	// SaturationGrace is how long admission may block before the wait
	// is logged as saturation.
	SaturationGrace time.Duration
	// AnalysisBudget is the end-to-end deadline for one slow-path run.
	AnalysisBudget time.Duration
}

// DefaultConfig returns production timing.
func DefaultConfig() Config {
	return Config{
		FastBudget:           5 * time.Second,
		SlowPathDelay:        1 * time.Second,
		ChannelProbeTimeout:  10 * time.Second,
		ChannelProbeInterval: 500 * time.Millisecond,
		SlowPathWorkers:      5,
		SaturationGrace:      200 * time.Millisecond,
		AnalysisBudget:       90 * time.Second,
	}
}

// Orchestrator runs the dual request paths.
type Orchestrator struct {
	sessions  SessionStore
	analyses  AnalysisStore
	feedback  FeedbackStore
	knowledge KnowledgeProvider
	gateway   ModelGateway
	pusher    Pusher
	strategic func() string

	config Config
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates an orchestrator. strategic may be nil to skip slow-path
// market enrichment.
func New(
	sessions SessionStore,
	analyses AnalysisStore,
	feedback FeedbackStore,
	knowledge KnowledgeProvider,
	gateway ModelGateway,
	pusher Pusher,
	strategic func() string,
	config Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		analyses:  analyses,
		feedback:  feedback,
		knowledge: knowledge,
		gateway:   gateway,
		pusher:    pusher,
		strategic: strategic,
		config:    config,
		sem:       semaphore.NewWeighted(config.SlowPathWorkers),
		logger:    logger,
	}
}

// Shutdown waits for in-flight slow-path runs to finish or the context to
// expire. New runs spawned after the call still count; callers stop the
// HTTP server first.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
