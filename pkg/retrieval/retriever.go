// Package retrieval assembles product-knowledge context for prompts from
// the vector store. It degrades to a sentinel instead of failing: prompt
// assembly never blocks on knowledge being available.
package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ultra-dojo/coach/pkg/vector"
)

// NoKnowledgeSentinel is injected into prompts when retrieval yields
// nothing usable. Models are instructed to fall back to general technique.
const NoKnowledgeSentinel = "No specific product knowledge available. Use general sales principles."

const (
	// DefaultThreshold is the minimum cosine score for a nugget to count.
	DefaultThreshold = 0.50
	// DefaultTopK bounds how many nuggets are joined into the context.
	DefaultTopK = 3
	// MaxContextBytes caps the joined context size.
	MaxContextBytes = 2000

	delimiter = "\n---\n"
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a language-filtered similarity search.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, language string, limit int, threshold float32) ([]vector.SearchResult, error)
}

// Retriever produces the knowledge context block for a query.
type Retriever struct {
	embedder  Embedder
	store     Searcher
	threshold float32
	topK      int
	logger    *slog.Logger
}

// New creates a retriever with the default threshold and top-K.
func New(embedder Embedder, store Searcher, logger *slog.Logger) *Retriever {
	return &Retriever{
		embedder:  embedder,
		store:     store,
		threshold: DefaultThreshold,
		topK:      DefaultTopK,
		logger:    logger,
	}
}

// Context returns the knowledge block for the query in the given language.
// Any failure along the way (embedding, search, no matches) logs a warning
// and returns the sentinel; the error is never surfaced to callers.
func (r *Retriever) Context(ctx context.Context, query, language string) string {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("Knowledge retrieval skipped, embedding failed", "error", err)
		return NoKnowledgeSentinel
	}

	results, err := r.store.Search(ctx, embedding, language, r.topK, r.threshold)
	if err != nil {
		r.logger.Warn("Knowledge retrieval skipped, search failed", "error", err)
		return NoKnowledgeSentinel
	}

	var parts []string
	for _, result := range results {
		content := strings.TrimSpace(result.Content)
		if content != "" {
			parts = append(parts, content)
		}
	}
	if len(parts) == 0 {
		return NoKnowledgeSentinel
	}

	joined := strings.Join(parts, delimiter)
	if len(joined) > MaxContextBytes {
		// Back off to a rune boundary so the cap never splits UTF-8.
		cut := MaxContextBytes
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}

	r.logger.Debug("Knowledge context assembled",
		"nuggets", len(parts), "bytes", len(joined), "language", language)
	return joined
}
