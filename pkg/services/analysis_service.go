package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ultra-dojo/coach/pkg/models"
)

// AnalysisService stores deep-analysis results produced by the slow path.
type AnalysisService struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAnalysisService creates an analysis service backed by the given database.
func NewAnalysisService(db *sql.DB, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{db: db, logger: logger}
}

// RecordSuccess persists a completed analysis document.
func (s *AnalysisService) RecordSuccess(ctx context.Context, sessionID string, payload []byte) (int64, error) {
	return s.record(ctx, sessionID, payload, models.AnalysisSuccess)
}

// RecordError persists a failed-analysis marker so session history shows
// the attempt.
func (s *AnalysisService) RecordError(ctx context.Context, sessionID string) (int64, error) {
	return s.record(ctx, sessionID, nil, models.AnalysisError)
}

func (s *AnalysisService) record(ctx context.Context, sessionID string, payload []byte, status models.AnalysisStatus) (int64, error) {
	var jsonOutput any
	if len(payload) > 0 {
		jsonOutput = payload
	}

	var logID int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO slow_path_logs (session_id, timestamp, json_output, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING log_id`,
		sessionID, time.Now().UTC(), jsonOutput, string(status)).Scan(&logID)
	if err != nil {
		return 0, fmt.Errorf("failed to record analysis: %w", err)
	}
	return logID, nil
}

// Latest returns the most recent analysis entry for a session.
func (s *AnalysisService) Latest(ctx context.Context, sessionID string) (*models.AnalysisEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT log_id, session_id, timestamp, json_output, status
		 FROM slow_path_logs
		 WHERE session_id = $1
		 ORDER BY timestamp DESC, log_id DESC
		 LIMIT 1`, sessionID)

	var (
		entry  models.AnalysisEntry
		raw    []byte
		status string
	)
	err := row.Scan(&entry.ID, &entry.SessionID, &entry.Timestamp, &raw, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}

	entry.Payload = raw
	entry.Status = models.AnalysisStatus(status)
	return &entry, nil
}
