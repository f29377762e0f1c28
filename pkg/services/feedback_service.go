package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ultra-dojo/coach/pkg/models"
)

// FeedbackService stores seller feedback on coached replies and the
// golden standards curated from it.
type FeedbackService struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFeedbackService creates a feedback service backed by the given database.
func NewFeedbackService(db *sql.DB, logger *slog.Logger) *FeedbackService {
	return &FeedbackService{db: db, logger: logger}
}

// Record persists a feedback entry and returns its id.
func (s *FeedbackService) Record(ctx context.Context, entry models.FeedbackEntry) (int64, error) {
	if entry.Polarity != models.FeedbackUp && entry.Polarity != models.FeedbackDown {
		return 0, NewValidationError(fmt.Sprintf("invalid feedback polarity: %q", entry.Polarity))
	}

	var entryRef any
	if entry.EntryRef != 0 {
		entryRef = entry.EntryRef
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO feedback_logs
		   (session_id, entry_ref, polarity, original_input, bad_suggestion,
		    comment, language, refined_suggestion, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING feedback_id`,
		entry.SessionID, entryRef, string(entry.Polarity), entry.OriginalInput,
		entry.BadSuggestion, entry.Comment, models.NormalizeLanguage(entry.Language),
		nullIfEmpty(entry.RefinedSuggestion), time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record feedback: %w", err)
	}

	s.logger.Info("Feedback recorded",
		"feedback_id", id, "session_id", entry.SessionID, "polarity", entry.Polarity)
	return id, nil
}

// SetRefined attaches a model-refined suggestion to an existing feedback entry.
func (s *FeedbackService) SetRefined(ctx context.Context, feedbackID int64, refined string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feedback_logs SET refined_suggestion = $1 WHERE feedback_id = $2`,
		refined, feedbackID)
	if err != nil {
		return fmt.Errorf("failed to store refined suggestion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to store refined suggestion: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DownNotes returns negative feedback entries that carry a seller comment,
// newest first, for theme clustering.
func (s *FeedbackService) DownNotes(ctx context.Context, language string) ([]models.FeedbackEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feedback_id, session_id, COALESCE(entry_ref, 0), polarity,
		        COALESCE(original_input, ''), COALESCE(bad_suggestion, ''),
		        COALESCE(comment, ''), language,
		        COALESCE(refined_suggestion, ''), created_at
		 FROM feedback_logs
		 WHERE polarity = 'down' AND language = $1
		   AND COALESCE(comment, '') <> ''
		 ORDER BY created_at DESC
		 LIMIT 200`, models.NormalizeLanguage(language))
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback notes: %w", err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

// Details returns the negative feedback entries whose comment matches the
// given theme note.
func (s *FeedbackService) Details(ctx context.Context, note, language string) ([]models.FeedbackEntry, error) {
	if strings.TrimSpace(note) == "" {
		return nil, NewValidationError("note must not be empty")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT feedback_id, session_id, COALESCE(entry_ref, 0), polarity,
		        COALESCE(original_input, ''), COALESCE(bad_suggestion, ''),
		        COALESCE(comment, ''), language,
		        COALESCE(refined_suggestion, ''), created_at
		 FROM feedback_logs
		 WHERE polarity = 'down' AND language = $1
		   AND comment ILIKE '%' || $2 || '%'
		 ORDER BY created_at DESC`, models.NormalizeLanguage(language), note)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback details: %w", err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

// CreateStandard stores a curated golden-standard response linked to the
// feedback entry it corrects.
func (s *FeedbackService) CreateStandard(ctx context.Context, feedbackID int64, situation, response, language string) (int64, error) {
	if strings.TrimSpace(situation) == "" || strings.TrimSpace(response) == "" {
		return 0, NewValidationError("situation and response must not be empty")
	}

	var ref any
	if feedbackID != 0 {
		ref = feedbackID
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO golden_standards (feedback_id, situation, response, language, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING standard_id`,
		ref, situation, response, models.NormalizeLanguage(language),
		time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create golden standard: %w", err)
	}

	s.logger.Info("Golden standard created", "standard_id", id, "feedback_id", feedbackID)
	return id, nil
}

func scanFeedback(rows *sql.Rows) ([]models.FeedbackEntry, error) {
	var entries []models.FeedbackEntry
	for rows.Next() {
		var (
			entry    models.FeedbackEntry
			polarity string
		)
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.EntryRef, &polarity,
			&entry.OriginalInput, &entry.BadSuggestion, &entry.Comment,
			&entry.Language, &entry.RefinedSuggestion, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback entry: %w", err)
		}
		entry.Polarity = models.FeedbackPolarity(polarity)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedback entries: %w", err)
	}
	return entries, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
