// Package services implements the business logic between the HTTP API and
// the database: session lifecycle, conversation history, analysis results
// and seller feedback.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ultra-dojo/coach/pkg/models"
)

// HistoryLimit is the maximum number of conversation entries returned to
// prompt builders. Older entries are summarized as a count.
const HistoryLimit = 20

// History is a recency-bounded slice of the conversation log.
type History struct {
	Entries []models.ConversationEntry
	// Total is the full number of entries in the log, including ones
	// truncated out of Entries.
	Total int
	// FirstSellerNote is the earliest seller entry's content. Set only
	// when entries were truncated out; the truncation summary quotes it.
	FirstSellerNote string
}

// Truncated reports whether older entries were dropped.
func (h History) Truncated() bool {
	return h.Total > len(h.Entries)
}

// SessionService manages session lifecycle and the conversation log.
type SessionService struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSessionService creates a session service backed by the given database.
func NewSessionService(db *sql.DB, logger *slog.Logger) *SessionService {
	return &SessionService{db: db, logger: logger}
}

// idMintAttempts bounds how many fresh ids Create tries when the random id
// collides with an existing row.
const idMintAttempts = 3

// Create mints a committed session id and persists the session row. An id
// collision gets a fresh id and another attempt.
func (s *SessionService) Create(ctx context.Context, language string) (*models.Session, error) {
	for attempt := 1; attempt <= idMintAttempts; attempt++ {
		session := &models.Session{
			ID:           models.NewSessionID(),
			CreatedAt:    time.Now().UTC(),
			JourneyStage: models.StageDiscovery,
			Language:     models.NormalizeLanguage(language),
		}

		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (session_id, created_at, journey_stage, language)
			 VALUES ($1, $2, $3, $4)`,
			session.ID, session.CreatedAt, string(session.JourneyStage), session.Language)
		if err == nil {
			s.logger.Info("Session created", "session_id", session.ID, "language", session.Language)
			return session, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		s.logger.Warn("Session id collision, minting a fresh one",
			"session_id", session.ID, "attempt", attempt)
	}
	return nil, fmt.Errorf("failed to create session: %d id collisions in a row", idMintAttempts)
}

// isUniqueViolation reports a Postgres unique-constraint error (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// EnsureCommitted resolves a client-supplied session id to a committed one.
// Provisional ids (TEMP-*) are swapped for a freshly created session; the
// returned bool reports whether a new session was created. A well-formed
// committed id is accepted as-is even when no row exists for it, so sends
// keep working against databases that were reset underneath a client.
func (s *SessionService) EnsureCommitted(ctx context.Context, rawID, language string) (string, bool, error) {
	if models.IsProvisional(rawID) {
		session, err := s.Create(ctx, language)
		if err != nil {
			return "", false, err
		}
		s.logger.Info("Provisional session committed",
			"provisional_id", rawID, "session_id", session.ID)
		return session.ID, true, nil
	}

	if !models.IsCommitted(rawID) {
		return "", false, NewValidationError(fmt.Sprintf("malformed session id: %q", rawID))
	}
	return rawID, false, nil
}

// Get returns the session row for a committed id.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	if !models.IsCommitted(sessionID) {
		return nil, ErrInvalidSessionID
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, created_at, ended_at, outcome, journey_stage, language
		 FROM sessions WHERE session_id = $1`, sessionID)

	var (
		session models.Session
		endedAt sql.NullTime
		outcome sql.NullString
		stage   string
	)
	err := row.Scan(&session.ID, &session.CreatedAt, &endedAt, &outcome, &stage, &session.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	if outcome.Valid {
		session.Outcome = models.SessionOutcome(outcome.String)
	}
	if normalized, ok := models.NormalizeStage(stage); ok {
		session.JourneyStage = normalized
	} else {
		session.JourneyStage = models.StageDiscovery
	}
	return &session, nil
}

// Exists reports whether a session row exists for the given id.
func (s *SessionService) Exists(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE session_id = $1`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return true, nil
}

// Append writes a conversation entry and returns its log id.
func (s *SessionService) Append(ctx context.Context, entry models.ConversationEntry) (int64, error) {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var logID int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO conversation_log (session_id, timestamp, role, content, language)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING log_id`,
		entry.SessionID, ts, string(entry.Role), entry.Content,
		models.NormalizeLanguage(entry.Language)).Scan(&logID)
	if err != nil {
		return 0, fmt.Errorf("failed to append conversation entry: %w", err)
	}
	return logID, nil
}

// History returns the most recent conversation entries for a session,
// oldest first, capped at HistoryLimit, along with the total count. When
// entries fall off the front, the first seller note rides along so prompt
// builders can summarize what was cut.
func (s *SessionService) History(ctx context.Context, sessionID string) (History, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM conversation_log WHERE session_id = $1`,
		sessionID).Scan(&total)
	if err != nil {
		return History{}, fmt.Errorf("failed to count conversation log: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT log_id, session_id, timestamp, role, content, language
		 FROM (SELECT log_id, session_id, timestamp, role, content, language
		       FROM conversation_log
		       WHERE session_id = $1
		       ORDER BY timestamp DESC, log_id DESC
		       LIMIT $2) recent
		 ORDER BY timestamp ASC, log_id ASC`,
		sessionID, HistoryLimit)
	if err != nil {
		return History{}, fmt.Errorf("failed to load conversation log: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return History{}, err
	}

	h := History{Entries: entries, Total: total}
	if h.Truncated() {
		err := s.db.QueryRowContext(ctx,
			`SELECT content FROM conversation_log
			 WHERE session_id = $1 AND role = $2
			 ORDER BY timestamp ASC, log_id ASC
			 LIMIT 1`,
			sessionID, string(models.RoleSeller)).Scan(&h.FirstSellerNote)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return History{}, fmt.Errorf("failed to load opening note: %w", err)
		}
	}
	return h, nil
}

// FullHistory returns the complete conversation log for a session, oldest
// first. The deep-analysis path reads this; prompt assembly on the fast
// path uses the truncated History.
func (s *SessionService) FullHistory(ctx context.Context, sessionID string) (History, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT log_id, session_id, timestamp, role, content, language
		 FROM conversation_log
		 WHERE session_id = $1
		 ORDER BY timestamp ASC, log_id ASC`,
		sessionID)
	if err != nil {
		return History{}, fmt.Errorf("failed to load conversation log: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return History{}, err
	}
	return History{Entries: entries, Total: len(entries)}, nil
}

func collectEntries(rows *sql.Rows) ([]models.ConversationEntry, error) {
	defer rows.Close()

	var entries []models.ConversationEntry
	for rows.Next() {
		var (
			entry models.ConversationEntry
			role  string
		)
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.Timestamp,
			&role, &entry.Content, &entry.Language); err != nil {
			return nil, fmt.Errorf("failed to scan conversation entry: %w", err)
		}
		entry.Role = models.Role(role)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversation log: %w", err)
	}
	return entries, nil
}

// UpdateStage persists a new journey stage for the session. Unknown
// session ids are ignored.
func (s *SessionService) UpdateStage(ctx context.Context, sessionID string, stage models.JourneyStage) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET journey_stage = $1 WHERE session_id = $2`,
		string(stage), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update journey stage: %w", err)
	}
	return nil
}

// End marks a session finished with the given outcome. Ending an already
// ended session is a no-op that keeps the first outcome.
func (s *SessionService) End(ctx context.Context, sessionID string, outcome models.SessionOutcome) error {
	if models.IsProvisional(sessionID) {
		return ErrInvalidSessionID
	}
	if !models.IsCommitted(sessionID) {
		return ErrInvalidSessionID
	}
	if !models.ValidOutcome(string(outcome)) {
		return NewValidationError(fmt.Sprintf("invalid outcome: %q", outcome))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = COALESCE(ended_at, $1),
		        outcome = COALESCE(outcome, $2)
		 WHERE session_id = $3`,
		time.Now().UTC(), string(outcome), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}

	s.logger.Info("Session ended", "session_id", sessionID, "outcome", outcome)
	return nil
}
