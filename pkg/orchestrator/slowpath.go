package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ultra-dojo/coach/pkg/llm"
	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/push"
)

// Push payload types consumed by the frontend.
const (
	pushTypeComplete = "slow_path_complete"
	pushTypeError    = "slow_path_error"
)

// spawnSlowPath starts a deep analysis in the background. The goroutine
// owns its own context: the originating HTTP request has already been
// answered by the time any of this runs.
func (o *Orchestrator) spawnSlowPath(sessionID, language string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("Slow path panicked",
					"session_id", sessionID, "panic", r)
			}
		}()
		o.runSlowPath(sessionID, language)
	}()
}

// RetrySlowPath re-runs the analysis for a session on demand. Unlike the
// spawn after a send, the caller is told when the run could not start.
func (o *Orchestrator) RetrySlowPath(ctx context.Context, sessionID, language string) error {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if language == "" {
		language = session.Language
	}
	o.spawnSlowPath(sessionID, models.NormalizeLanguage(language))
	return nil
}

func (o *Orchestrator) runSlowPath(sessionID, language string) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), o.config.AnalysisBudget)
	defer cancel()

	if !o.acquireWorker(ctx, sessionID) {
		return
	}
	defer o.sem.Release(1)

	// Give the client's WebSocket a moment to land before probing.
	select {
	case <-time.After(o.config.SlowPathDelay):
	case <-ctx.Done():
		return
	}
	o.awaitChannel(ctx, sessionID)

	// The deep analysis reads the whole transcript, not the truncated
	// window the fast path prompts with.
	history, err := o.sessions.FullHistory(ctx, sessionID)
	if err != nil {
		// No transcript means nothing to analyze. Record the attempt
		// and tell the client.
		o.logger.Error("Slow path aborted, history unavailable",
			"session_id", sessionID, "error", err)
		o.recordFailure(sessionID, language, "history_unavailable")
		return
	}

	query := latestSellerInput(history.Entries)
	knowledgeBlock := o.knowledge.Context(ctx, query, language)

	strategic := ""
	if o.strategic != nil {
		strategic = o.strategic()
	}

	stage := o.resolveStage(ctx, sessionID, "")
	prompt := buildDeepPrompt(formatHistory(history), knowledgeBlock, strategic, language, stage)

	result, err := o.gateway.Analyze(ctx, prompt)
	if err != nil {
		o.logger.Error("Slow path analysis failed",
			"session_id", sessionID, "error", err)
		o.recordFailure(sessionID, language, "analysis_failed")
		return
	}

	doc, err := models.ParseOpusMagnum(result.Document)
	if err != nil {
		o.logger.Error("Slow path produced invalid document",
			"session_id", sessionID, "model", result.ModelUsed, "error", err)
		o.recordFailure(sessionID, language, "invalid_document")
		return
	}

	if _, err := o.analyses.RecordSuccess(ctx, sessionID, doc.Raw()); err != nil {
		o.logger.Warn("Failed to persist analysis, pushing anyway",
			"session_id", sessionID, "error", err)
	}

	if suggested, ok := doc.Stage(); ok && suggested != stage {
		if err := o.sessions.UpdateStage(ctx, sessionID, suggested); err != nil {
			o.logger.Warn("Failed to update journey stage",
				"session_id", sessionID, "stage", suggested, "error", err)
		} else {
			o.logger.Info("Journey stage advanced",
				"session_id", sessionID, "from", stage, "to", suggested)
		}
	}

	status := o.pushComplete(sessionID, doc, result)
	o.logger.Info("Slow path finished",
		"session_id", sessionID, "model", result.ModelUsed,
		"fallback_used", result.FallbackUsed, "delivery", status,
		"elapsed", time.Since(started).Round(time.Millisecond))
}

// acquireWorker admits the run through the semaphore. Admission waits
// rather than dropping; a wait past the grace window is logged so
// saturation is visible in operations.
func (o *Orchestrator) acquireWorker(ctx context.Context, sessionID string) bool {
	if o.sem.TryAcquire(1) {
		return true
	}

	o.logger.Warn("Slow path saturated, queueing analysis", "session_id", sessionID)
	waitStart := time.Now()
	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.logger.Error("Slow path admission abandoned",
			"session_id", sessionID, "waited", time.Since(waitStart), "error", err)
		return false
	}
	if waited := time.Since(waitStart); waited > o.config.SaturationGrace {
		o.logger.Warn("Slow path admission delayed",
			"session_id", sessionID, "waited", waited.Round(time.Millisecond))
	}
	return true
}

// awaitChannel polls for the session's push channel for up to the probe
// timeout. The analysis proceeds either way; results of a channel-less run
// are still persisted for read-back.
func (o *Orchestrator) awaitChannel(ctx context.Context, sessionID string) {
	if o.pusher.HasChannel(sessionID) {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, o.config.ChannelProbeTimeout)
	defer cancel()
	ticker := time.NewTicker(o.config.ChannelProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if o.pusher.HasChannel(sessionID) {
				return
			}
		case <-probeCtx.Done():
			o.logger.Info("No push channel appeared, analyzing anyway",
				"session_id", sessionID)
			return
		}
	}
}

// recordFailure persists the failed attempt and pushes the error. Both are
// best-effort; the slow path never propagates its own failures.
func (o *Orchestrator) recordFailure(sessionID, language, errorType string) {
	// Terminal writes use a fresh context so an expired analysis budget
	// cannot also eat the failure record.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := o.analyses.RecordError(ctx, sessionID); err != nil {
		o.logger.Warn("Failed to record analysis failure",
			"session_id", sessionID, "error", err)
	}

	message := "Analiza głęboka nie powiodła się. Spróbuj ponownie."
	if language == "en" {
		message = "Deep analysis failed. Please retry."
	}
	payload, err := json.Marshal(map[string]any{
		"type":       pushTypeError,
		"status":     "error",
		"message":    message,
		"error_type": errorType,
	})
	if err != nil {
		return
	}
	if status := o.pusher.Send(sessionID, payload); status != push.Delivered {
		o.logger.Info("Analysis failure not delivered",
			"session_id", sessionID, "delivery", status)
	}
}

// pushComplete wraps the raw document in the push envelope and delivers
// it. Provenance rides alongside so the UI can flag a fallback analysis.
func (o *Orchestrator) pushComplete(sessionID string, doc *models.OpusMagnum, result *llm.AnalysisResult) push.DeliveryStatus {
	envelope := map[string]any{
		"type":   pushTypeComplete,
		"status": "success",
		"data":   json.RawMessage(doc.Raw()),
		"meta": map[string]any{
			"model_used":    result.ModelUsed,
			"fallback_used": result.FallbackUsed,
		},
	}
	if result.FallbackUsed {
		envelope["message"] = fmt.Sprintf("analysis produced by fallback tier: %s", result.FallbackReason)
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		o.logger.Error("Failed to encode push payload",
			"session_id", sessionID, "error", err)
		return push.SendFailed
	}

	status := o.pusher.Send(sessionID, payload)
	if status != push.Delivered {
		o.logger.Info("Analysis completed without delivery",
			"session_id", sessionID, "delivery", status)
	}
	return status
}

func latestSellerInput(entries []models.ConversationEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == models.RoleSeller {
			return entries[i].Content
		}
	}
	return ""
}
