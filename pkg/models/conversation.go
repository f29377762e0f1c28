package models

import "time"

// Role identifies who produced a conversation log entry.
type Role string

const (
	// RoleSeller is a free-form note typed by the salesperson.
	RoleSeller Role = "seller"
	// RoleFastReply is the fast path's suggested response.
	RoleFastReply Role = "fast_reply"
	// RoleFastMeta carries the remaining fast path fields (questions, style,
	// confidence) encoded as a single structured string.
	RoleFastMeta Role = "fast_meta"
)

// ConversationEntry is one append-only row of a session's conversation log.
type ConversationEntry struct {
	ID        int64     `json:"log_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
}

// AnalysisStatus is the terminal status of one slow path attempt.
type AnalysisStatus string

const (
	AnalysisSuccess AnalysisStatus = "Success"
	AnalysisError   AnalysisStatus = "Error"
)

// AnalysisEntry records one slow path attempt. Payload is the raw JSON
// document (an Opus Magnum document on success, an error descriptor on
// failure); latest-by-timestamp is considered current.
type AnalysisEntry struct {
	ID        int64          `json:"log_id"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   []byte         `json:"json_output"`
	Status    AnalysisStatus `json:"status"`
}

// FeedbackPolarity is the seller's verdict on a suggestion.
type FeedbackPolarity string

const (
	FeedbackUp   FeedbackPolarity = "up"
	FeedbackDown FeedbackPolarity = "down"
)

// FeedbackEntry stores the seller's critique of a prior suggestion, plus the
// refined suggestion when the refinement loop produced one.
type FeedbackEntry struct {
	ID                int64            `json:"feedback_id"`
	SessionID         string           `json:"session_id"`
	EntryRef          int64            `json:"log_id_ref"`
	Polarity          FeedbackPolarity `json:"polarity"`
	OriginalInput     string           `json:"original_input"`
	BadSuggestion     string           `json:"bad_suggestion"`
	Comment           string           `json:"comment"`
	Language          string           `json:"language"`
	RefinedSuggestion string           `json:"refined_suggestion,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
