package orchestrator

import (
	"context"

	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/services"
)

func isValidation(err error) bool {
	return services.IsValidationError(err)
}

// FeedbackResult reports what happened to a feedback submission. Refined
// is empty for thumbs-up feedback and for refinement failures.
type FeedbackResult struct {
	FeedbackID int64
	Refined    string
}

// HandleFeedback records seller feedback on a coached reply. Negative
// feedback additionally asks the fast model for a refined suggestion so
// the seller gets something usable immediately. Storage failures are
// tolerated the same way the send path tolerates them: the refinement
// still runs and is still returned.
func (o *Orchestrator) HandleFeedback(ctx context.Context, entry models.FeedbackEntry) (*FeedbackResult, error) {
	entry.Language = models.NormalizeLanguage(entry.Language)

	feedbackID, err := o.feedback.Record(ctx, entry)
	if err != nil {
		if isValidation(err) {
			return nil, err
		}
		o.logger.Warn("Failed to persist feedback, continuing",
			"session_id", entry.SessionID, "error", err)
	}

	result := &FeedbackResult{FeedbackID: feedbackID}
	if entry.Polarity != models.FeedbackDown {
		return result, nil
	}

	refined := o.refine(ctx, entry)
	if refined == "" {
		return result, nil
	}
	result.Refined = refined

	if feedbackID != 0 {
		if err := o.feedback.SetRefined(ctx, feedbackID, refined); err != nil {
			o.logger.Warn("Failed to persist refined suggestion",
				"feedback_id", feedbackID, "error", err)
		}
	}
	return result, nil
}

// refine asks the fast model for an improved suggestion. Failures log and
// return empty; a refinement is a bonus, never a blocker.
func (o *Orchestrator) refine(ctx context.Context, entry models.FeedbackEntry) string {
	prompt := buildRefinePrompt(entry.OriginalInput, entry.BadSuggestion, entry.Comment, entry.Language)
	out, err := o.gateway.Fast(ctx, prompt)
	if err != nil {
		o.logger.Warn("Refinement failed",
			"session_id", entry.SessionID, "error", err)
		return ""
	}

	refinement, err := models.ParseRefinement([]byte(out))
	if err != nil {
		o.logger.Warn("Refinement output unparseable",
			"session_id", entry.SessionID, "error", err)
		return ""
	}
	return refinement.RefinedSuggestion
}
