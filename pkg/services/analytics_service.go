package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// PlaybookUsage counts how often a strategic play was recommended and how
// the sessions using it ended.
type PlaybookUsage struct {
	Play  string `json:"play"`
	Total int    `json:"total"`
	Won   int    `json:"won"`
	Lost  int    `json:"lost"`
}

// OutcomeBreakdown correlates a profile dimension value with session outcomes.
type OutcomeBreakdown struct {
	Value string `json:"value"`
	Total int    `json:"total"`
	Won   int    `json:"won"`
	Lost  int    `json:"lost"`
}

// Dashboard aggregates analysis payloads against session outcomes.
type Dashboard struct {
	PlaybookUsage       []PlaybookUsage    `json:"playbook_usage"`
	DISCOutcomes        []OutcomeBreakdown `json:"disc_outcomes"`
	TemperatureOutcomes []OutcomeBreakdown `json:"temperature_outcomes"`
}

// AnalyticsService computes dashboard aggregations over stored analyses.
type AnalyticsService struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAnalyticsService creates an analytics service backed by the given database.
func NewAnalyticsService(db *sql.DB, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{db: db, logger: logger}
}

// Dashboard runs the three aggregations, optionally restricted to analyses
// recorded inside [from, to].
func (s *AnalyticsService) Dashboard(ctx context.Context, from, to *time.Time) (*Dashboard, error) {
	dash := &Dashboard{
		PlaybookUsage:       []PlaybookUsage{},
		DISCOutcomes:        []OutcomeBreakdown{},
		TemperatureOutcomes: []OutcomeBreakdown{},
	}

	plays, err := s.breakdown(ctx,
		`l.json_output -> 'modules' -> 'strategic_playbook' ->> 'recommended_play'`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate playbook usage: %w", err)
	}
	for _, b := range plays {
		dash.PlaybookUsage = append(dash.PlaybookUsage, PlaybookUsage{
			Play: b.Value, Total: b.Total, Won: b.Won, Lost: b.Lost,
		})
	}

	dash.DISCOutcomes, err = s.breakdown(ctx,
		`l.json_output -> 'modules' -> 'psychometric_profile' ->> 'disc_dominant'`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate DISC outcomes: %w", err)
	}

	dash.TemperatureOutcomes, err = s.breakdown(ctx,
		`l.json_output -> 'modules' -> 'deep_motivation' ->> 'purchase_temperature'`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate temperature outcomes: %w", err)
	}

	return dash, nil
}

// breakdown groups successful analyses by a JSONB expression and joins the
// owning session's outcome. The expression is one of the fixed selectors
// above, never caller input.
func (s *AnalyticsService) breakdown(ctx context.Context, selector string, from, to *time.Time) ([]OutcomeBreakdown, error) {
	query := fmt.Sprintf(
		`SELECT %s AS value,
		        count(*) AS total,
		        count(*) FILTER (WHERE sess.outcome = 'Won') AS won,
		        count(*) FILTER (WHERE sess.outcome = 'Lost') AS lost
		 FROM slow_path_logs l
		 JOIN sessions sess ON sess.session_id = l.session_id
		 WHERE l.status = 'Success' AND %s IS NOT NULL
		   AND ($1::timestamptz IS NULL OR l.timestamp >= $1)
		   AND ($2::timestamptz IS NULL OR l.timestamp <= $2)
		 GROUP BY value
		 ORDER BY total DESC`, selector, selector)

	rows, err := s.db.QueryContext(ctx, query, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdowns := []OutcomeBreakdown{}
	for rows.Next() {
		var b OutcomeBreakdown
		if err := rows.Scan(&b.Value, &b.Total, &b.Won, &b.Lost); err != nil {
			return nil, err
		}
		breakdowns = append(breakdowns, b)
	}
	return breakdowns, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
