package orchestrator

import (
	"context"
	"time"

	"github.com/ultra-dojo/coach/pkg/llm"
	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/services"
)

// SendRequest is one seller utterance entering the fast path.
type SendRequest struct {
	SessionID string
	UserInput string
	Language  string
	Stage     string
}

// SendResult is the fast path's answer. Degraded marks a soft failure:
// the reply is a canned fallback because the model missed the budget.
type SendResult struct {
	SessionID      string
	SessionCreated bool
	Stage          models.JourneyStage
	Reply          *models.FastReply
	Degraded       bool
}

// HandleSend runs the fast path: commit the session, persist the input,
// assemble context, get a coached reply inside the budget, then hand the
// transcript to the slow path. Storage failures degrade the answer but
// never block it; only a session-commit failure is terminal.
func (o *Orchestrator) HandleSend(ctx context.Context, req SendRequest) (*SendResult, error) {
	started := time.Now()
	language := models.NormalizeLanguage(req.Language)

	sessionID, created, err := o.sessions.EnsureCommitted(ctx, req.SessionID, language)
	if err != nil {
		return nil, err
	}

	stage := o.resolveStage(ctx, sessionID, req.Stage)

	budgetCtx, cancel := context.WithTimeout(ctx, o.config.FastBudget)
	defer cancel()

	sellerEntry := models.ConversationEntry{
		SessionID: sessionID,
		Role:      models.RoleSeller,
		Content:   req.UserInput,
		Language:  language,
	}
	if _, err := o.sessions.Append(budgetCtx, sellerEntry); err != nil {
		o.logger.Warn("Failed to persist seller input, continuing",
			"session_id", sessionID, "error", err)
	}

	history, err := o.sessions.History(budgetCtx, sessionID)
	if err != nil {
		o.logger.Warn("Failed to load history, answering from current input only",
			"session_id", sessionID, "error", err)
		history = services.History{Entries: []models.ConversationEntry{sellerEntry}, Total: 1}
	}

	knowledgeBlock := o.knowledge.Context(budgetCtx, req.UserInput, language)
	prompt := buildFastPrompt(formatHistory(history), knowledgeBlock, req.UserInput, language, stage)

	reply, degraded, authFailure := o.coach(budgetCtx, sessionID, prompt, language)

	if !degraded {
		o.persistReply(budgetCtx, sessionID, language, reply)
	}

	// A bad credential fails every downstream call identically, so the
	// slow path is not worth spawning.
	if !authFailure {
		o.spawnSlowPath(sessionID, language)
	}

	o.logger.Info("Fast path answered",
		"session_id", sessionID, "degraded", degraded,
		"elapsed", time.Since(started).Round(time.Millisecond))

	return &SendResult{
		SessionID:      sessionID,
		SessionCreated: created,
		Stage:          stage,
		Reply:          reply,
		Degraded:       degraded,
	}, nil
}

// coach calls the fast model and parses its reply. Any failure, model or
// parse, becomes the localized fallback reply; the booleans report the
// degradation and whether it was an auth failure.
func (o *Orchestrator) coach(ctx context.Context, sessionID, prompt, language string) (reply *models.FastReply, degraded, authFailure bool) {
	out, err := o.gateway.Fast(ctx, prompt)
	if err != nil {
		kind := llm.ErrorKind(err)
		o.logger.Warn("Fast model failed, returning fallback reply",
			"session_id", sessionID, "kind", kind, "error", err)
		return softFailureReply(language, kind), true, kind == llm.KindAuth
	}

	reply, err = models.ParseFastReply([]byte(out))
	if err != nil {
		o.logger.Warn("Fast model output unparseable, returning fallback reply",
			"session_id", sessionID, "error", err)
		return softFailureReply(language, llm.KindParse), true, false
	}
	return reply, false, false
}

func (o *Orchestrator) persistReply(ctx context.Context, sessionID, language string, reply *models.FastReply) {
	if _, err := o.sessions.Append(ctx, models.ConversationEntry{
		SessionID: sessionID,
		Role:      models.RoleFastReply,
		Content:   reply.SuggestedResponse,
		Language:  language,
	}); err != nil {
		o.logger.Warn("Failed to persist coached reply",
			"session_id", sessionID, "error", err)
		return
	}
	if _, err := o.sessions.Append(ctx, models.ConversationEntry{
		SessionID: sessionID,
		Role:      models.RoleFastMeta,
		Content:   reply.EncodeMeta(),
		Language:  language,
	}); err != nil {
		o.logger.Warn("Failed to persist reply metadata",
			"session_id", sessionID, "error", err)
	}
}

// resolveStage prefers the stage declared on the request, then the stored
// session stage, then Discovery.
func (o *Orchestrator) resolveStage(ctx context.Context, sessionID, declared string) models.JourneyStage {
	if stage, ok := models.NormalizeStage(declared); ok {
		return stage
	}
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.StageDiscovery
	}
	return session.JourneyStage
}
