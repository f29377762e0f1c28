// Package models defines the domain types shared across the coach backend:
// sessions, conversation log entries, deep-analysis entries, feedback, and
// the Opus Magnum analysis document.
package models

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// ProvisionalPrefix marks client-minted session ids that have not been
// committed by the server. Provisional ids are never persisted.
const ProvisionalPrefix = "TEMP-"

// committedIDPattern is the canonical committed session id format: S-ABC-123.
var committedIDPattern = regexp.MustCompile(`^S-[A-Z]{3}-[0-9]{3}$`)

// SessionOutcome is the terminal outcome recorded when a session ends.
type SessionOutcome string

const (
	OutcomeWon  SessionOutcome = "Won"
	OutcomeLost SessionOutcome = "Lost"
)

// ValidOutcome reports whether s is one of the accepted terminal outcomes.
func ValidOutcome(s string) bool {
	switch SessionOutcome(s) {
	case OutcomeWon, OutcomeLost:
		return true
	}
	return false
}

// JourneyStage is the canonical progression label of a session.
type JourneyStage string

const (
	StageDiscovery JourneyStage = "Discovery"
	StageAnalysis  JourneyStage = "Analysis"
	StageDecision  JourneyStage = "Decision"
)

// stageAliases maps localized stage labels to the canonical set. Only the
// canonical labels exist internally; aliases are accepted at the edge and on
// the deep model's suggested_stage field.
var stageAliases = map[string]JourneyStage{
	"discovery":  StageDiscovery,
	"analysis":   StageAnalysis,
	"decision":   StageDecision,
	"odkrywanie": StageDiscovery,
	"analiza":    StageAnalysis,
	"decyzja":    StageDecision,
}

// NormalizeStage maps a stage label (canonical or localized alias, any case)
// to the canonical form. Returns false when the label is not recognized.
func NormalizeStage(s string) (JourneyStage, bool) {
	stage, ok := stageAliases[strings.ToLower(strings.TrimSpace(s))]
	return stage, ok
}

// NormalizeLanguage lowercases a declared language and defaults to "pl".
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang != "pl" && lang != "en" {
		return "pl"
	}
	return lang
}

// Session is one bounded sales conversation about a prospective client.
type Session struct {
	ID           string         `json:"session_id"`
	CreatedAt    time.Time      `json:"created_at"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
	Outcome      SessionOutcome `json:"outcome,omitempty"`
	JourneyStage JourneyStage   `json:"journey_stage"`
	Language     string         `json:"language"`
}

// NewSessionID mints a committed session id of the form S-ABC-123.
func NewSessionID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 3)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return fmt.Sprintf("S-%s-%03d", string(b), rand.IntN(1000))
}

// IsProvisional reports whether id carries the client-minted TEMP- prefix.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// IsCommitted reports whether id matches the committed format.
func IsCommitted(id string) bool {
	return committedIDPattern.MatchString(id)
}
