package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ultra-dojo/coach/pkg/llm"
	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/services"
)

func TestFormatHistory(t *testing.T) {
	t.Run("renders dialogue roles", func(t *testing.T) {
		h := services.History{
			Entries: []models.ConversationEntry{
				{Role: models.RoleSeller, Content: "Klient pyta o cenę."},
				{Role: models.RoleFastReply, Content: "Zapytaj o budżet."},
				{Role: models.RoleFastMeta, Content: `{"client_style":"driver"}`},
			},
			Total: 3,
		}

		out := formatHistory(h)

		assert.Equal(t, "Client (reported by seller): Klient pyta o cenę.\nCoach suggestion: Zapytaj o budżet.", out)
		assert.NotContains(t, out, "client_style", "metadata entries are not dialogue")
	})

	t.Run("truncation is announced", func(t *testing.T) {
		h := services.History{
			Entries: []models.ConversationEntry{{Role: models.RoleSeller, Content: "x"}},
			Total:   15,
		}

		out := formatHistory(h)
		assert.True(t, strings.HasPrefix(out, "[14 earlier entries omitted]"))
	})

	t.Run("truncation quotes the opening note", func(t *testing.T) {
		h := services.History{
			Entries:         []models.ConversationEntry{{Role: models.RoleSeller, Content: "x"}},
			Total:           15,
			FirstSellerNote: "Klient wszedł do salonu i zapytał o Model Y.",
		}

		out := formatHistory(h)
		assert.True(t, strings.HasPrefix(out,
			`[14 earlier entries omitted; conversation opened with: "Klient wszedł do salonu i zapytał o Model Y."]`))
	})

	t.Run("long opening note is cut to a prefix", func(t *testing.T) {
		h := services.History{
			Entries:         []models.ConversationEntry{{Role: models.RoleSeller, Content: "x"}},
			Total:           25,
			FirstSellerNote: strings.Repeat("ą", 100),
		}

		out := formatHistory(h)
		assert.Contains(t, out, strings.Repeat("ą", 60)+"...")
		assert.NotContains(t, out, strings.Repeat("ą", 61))
	})

	t.Run("empty history", func(t *testing.T) {
		assert.Equal(t, "", formatHistory(services.History{}))
	})
}

func TestBuildFastPrompt(t *testing.T) {
	prompt := buildFastPrompt("Client (reported by seller): x", "EV do 225k PLN",
		"Klient pyta o TCO.", "pl", models.StageAnalysis)

	assert.Contains(t, prompt, "Journey stage: Analysis")
	assert.Contains(t, prompt, "Respond in language: pl")
	assert.Contains(t, prompt, "EV do 225k PLN")
	assert.Contains(t, prompt, "Klient pyta o TCO.")
	assert.Contains(t, prompt, `"suggested_response"`)
}

func TestBuildDeepPrompt(t *testing.T) {
	t.Run("with strategic section", func(t *testing.T) {
		prompt := buildDeepPrompt("history", "knowledge", "fuel prices", "pl", models.StageDiscovery)

		assert.Contains(t, prompt, "STRATEGIC INTELLIGENCE:\nfuel prices")
		assert.Contains(t, prompt, `"strategic_playbook"`)
	})

	t.Run("without strategic section", func(t *testing.T) {
		prompt := buildDeepPrompt("history", "knowledge", "", "pl", models.StageDiscovery)
		assert.NotContains(t, prompt, "STRATEGIC INTELLIGENCE")
	})

	t.Run("empty history becomes placeholder", func(t *testing.T) {
		prompt := buildDeepPrompt("", "knowledge", "", "pl", models.StageDiscovery)
		assert.Contains(t, prompt, "FULL CONVERSATION:\n(none)")
	})
}

func TestSoftFailureReply(t *testing.T) {
	t.Run("deadline and parse failures share the generic text", func(t *testing.T) {
		pl := softFailureReply("pl", llm.KindTimeout)
		assert.Contains(t, pl.SuggestedResponse, "chwilowy problem")
		assert.Equal(t, "fallback", pl.ConfidenceReason)
		assert.Zero(t, pl.ConfidenceScore)

		en := softFailureReply("en", llm.KindParse)
		assert.Contains(t, en.SuggestedResponse, "momentary problem")
		assert.NotNil(t, en.SuggestedQuestions)
		assert.NotNil(t, en.SellerQuestions)
	})

	t.Run("rate limit names throttling", func(t *testing.T) {
		pl := softFailureReply("pl", llm.KindRateLimited)
		assert.Contains(t, pl.SuggestedResponse, "limit zapytań")
		assert.Equal(t, "rate_limited", pl.ConfidenceReason)

		en := softFailureReply("en", llm.KindRateLimited)
		assert.Contains(t, en.SuggestedResponse, "rate-limited")
	})

	t.Run("auth failure names configuration", func(t *testing.T) {
		pl := softFailureReply("pl", llm.KindAuth)
		assert.Contains(t, pl.SuggestedResponse, "skonfigurowany")
		assert.Equal(t, "configuration", pl.ConfidenceReason)

		en := softFailureReply("en", llm.KindAuth)
		assert.Contains(t, en.SuggestedResponse, "misconfigured")
	})
}
