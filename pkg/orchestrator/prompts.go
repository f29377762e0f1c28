package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ultra-dojo/coach/pkg/llm"
	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/services"
)

// openingPrefixRunes bounds how much of the conversation's opening note the
// truncation summary quotes.
const openingPrefixRunes = 60

// formatHistory renders the conversation log for a prompt. When the log was
// truncated, a leading line tells the model how much context it is missing
// and quotes the start of the conversation's first seller note.
func formatHistory(h services.History) string {
	var b strings.Builder
	if h.Truncated() {
		fmt.Fprintf(&b, "[%d earlier entries omitted", h.Total-len(h.Entries))
		if prefix := notePrefix(h.FirstSellerNote); prefix != "" {
			fmt.Fprintf(&b, "; conversation opened with: %q", prefix)
		}
		b.WriteString("]\n")
	}
	for _, entry := range h.Entries {
		switch entry.Role {
		case models.RoleSeller:
			fmt.Fprintf(&b, "Client (reported by seller): %s\n", entry.Content)
		case models.RoleFastReply:
			fmt.Fprintf(&b, "Coach suggestion: %s\n", entry.Content)
		}
		// fast_meta entries carry structured metadata, not dialogue.
	}
	return strings.TrimSpace(b.String())
}

func buildFastPrompt(history, knowledge, userInput, language string, stage models.JourneyStage) string {
	return fmt.Sprintf(`You are an elite real-time sales coach for an EV seller.
The seller reports what the client just said; you coach the seller's next move.

Journey stage: %s
Respond in language: %s

PRODUCT KNOWLEDGE:
%s

CONVERSATION SO FAR:
%s

CLIENT JUST SAID:
%s

Reply with a single JSON object, no markdown, with exactly these fields:
{
  "suggested_response": "what the seller should say next, natural and concise",
  "suggested_questions": ["up to 3 questions the seller can ask the client"],
  "optional_followup": "optional extra move, or null",
  "seller_questions": ["up to 2 clarifying questions for the seller, if needed"],
  "client_style": "analytical|driver|amiable|expressive",
  "confidence_score": 0.0,
  "confidence_reason": "one short sentence"
}`, stage, language, knowledge, emptyFallback(history), userInput)
}

func buildDeepPrompt(history, knowledge, strategic, language string, stage models.JourneyStage) string {
	var strategicSection string
	if strategic != "" {
		strategicSection = "\n\nSTRATEGIC INTELLIGENCE:\n" + strategic
	}

	return fmt.Sprintf(`You are a master sales psychologist. Produce a deep analysis
of the client behind this sales conversation.

Journey stage: %s
Write all free text in language: %s

PRODUCT KNOWLEDGE:
%s%s

FULL CONVERSATION:
%s

Reply with a single JSON object, no markdown:
{
  "overall_confidence": 0-100,
  "suggested_stage": "Discovery|Analysis|Decision",
  "modules": {
    "dna_client": {"confidence_score": 0-100, ...},
    "tactical_indicators": {"confidence_score": 0-100, ...},
    "psychometric_profile": {"confidence_score": 0-100, "disc_dominant": "D|I|S|C", ...},
    "deep_motivation": {"confidence_score": 0-100, "purchase_temperature": "cold|warm|hot", ...},
    "predictive_paths": {"confidence_score": 0-100, ...},
    "strategic_playbook": {"confidence_score": 0-100, "recommended_play": "...", ...},
    "decision_vectors": {"confidence_score": 0-100, ...}
  }
}
Every module is required. Fill each module with your richest analysis.`,
		stage, language, knowledge, strategicSection, emptyFallback(history))
}

func buildRefinePrompt(originalInput, badSuggestion, comment, language string) string {
	return fmt.Sprintf(`A sales coach suggestion was rejected by the seller.

Client said: %s
Rejected suggestion: %s
Seller's complaint: %s

Write an improved suggestion that addresses the complaint, in language %q.
Reply with a single JSON object, no markdown: {"refined_suggestion": "..."}`,
		originalInput, badSuggestion, emptyFallback(comment), language)
}

func buildGroupingPrompt(notes []string, language string) string {
	var b strings.Builder
	for i, note := range notes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, note)
	}

	return fmt.Sprintf(`These are seller complaints about rejected coaching suggestions.
Cluster them into recurring themes.

COMPLAINTS:
%s
Write theme names in language %q. Reply with a single JSON object, no markdown:
{"themes": [{"theme": "short theme name", "count": 0, "examples": ["representative complaints"]}]}`,
		b.String(), language)
}

func notePrefix(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > openingPrefixRunes {
		return string(runes[:openingPrefixRunes]) + "..."
	}
	return s
}

func emptyFallback(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

// softFailureReply is returned on the fast path when the model cannot
// answer inside the budget. HTTP status stays 200; the client renders it
// like any other suggestion. Throttling and credential faults get their own
// text so the seller knows whether to wait or to call the administrator.
func softFailureReply(language string, kind llm.Kind) *models.FastReply {
	var text, reason string
	switch kind {
	case llm.KindRateLimited:
		reason = "rate_limited"
		text = "Asystent jest chwilowo przeciążony (limit zapytań). Kontynuuj naturalnie rozmowę i spróbuj za chwilę."
		if language == "en" {
			text = "The assistant is temporarily rate-limited. Keep the conversation going naturally and try again in a moment."
		}
	case llm.KindAuth:
		reason = "configuration"
		text = "Asystent jest błędnie skonfigurowany (uwierzytelnienie odrzucone). Powiadom administratora i kontynuuj rozmowę."
		if language == "en" {
			text = "The assistant is misconfigured (authentication rejected). Notify your administrator and continue the conversation."
		}
	default:
		reason = "fallback"
		text = "Przepraszam, mam chwilowy problem z analizą. Kontynuuj naturalnie rozmowę, wrócę za moment."
		if language == "en" {
			text = "Sorry, I'm having a momentary problem with the analysis. Keep the conversation going naturally, I'll be back shortly."
		}
	}
	return &models.FastReply{
		SuggestedResponse:  text,
		SuggestedQuestions: []string{},
		SellerQuestions:    []string{},
		ClientStyle:        models.StyleAnalytical,
		ConfidenceScore:    0,
		ConfidenceReason:   reason,
	}
}
