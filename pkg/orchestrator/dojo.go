package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

// FeedbackTheme is one cluster of recurring complaints.
type FeedbackTheme struct {
	Theme    string   `json:"theme"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// GroupFeedback clusters negative feedback notes into themes with the fast
// model. An empty note set returns an empty theme list without a model call.
func (o *Orchestrator) GroupFeedback(ctx context.Context, language string) ([]FeedbackTheme, error) {
	entries, err := o.feedback.DownNotes(ctx, language)
	if err != nil {
		return nil, err
	}

	notes := make([]string, 0, len(entries))
	for _, entry := range entries {
		notes = append(notes, entry.Comment)
	}
	if len(notes) == 0 {
		return []FeedbackTheme{}, nil
	}

	out, err := o.gateway.Fast(ctx, buildGroupingPrompt(notes, language))
	if err != nil {
		return nil, fmt.Errorf("failed to cluster feedback: %w", err)
	}

	var parsed struct {
		Themes []FeedbackTheme `json:"themes"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse feedback themes: %w", err)
	}
	if parsed.Themes == nil {
		parsed.Themes = []FeedbackTheme{}
	}
	return parsed.Themes, nil
}
