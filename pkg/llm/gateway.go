// Package llm is the gateway to the two model tiers: a fast coaching model
// on the request path and a deep analysis model behind it. All failures are
// tagged with a Kind so callers can tell a timeout from a bad key.
package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// Client is a single model endpoint.
type Client interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnalysisResult carries the deep model's output plus provenance: which
// model actually produced it and whether the fallback tier was used.
type AnalysisResult struct {
	Document       []byte
	ModelUsed      string
	FallbackUsed   bool
	FallbackReason string
}

// Gateway routes prompts to the fast and deep model tiers.
type Gateway struct {
	fast   Client
	deep   Client
	logger *slog.Logger
}

// NewGateway creates a gateway over the two model clients.
func NewGateway(fast, deep Client, logger *slog.Logger) *Gateway {
	return &Gateway{fast: fast, deep: deep, logger: logger}
}

// Fast sends a prompt to the fast model with bounded retries.
func (g *Gateway) Fast(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, g.logger, g.fast.Name(), func() (string, error) {
		return g.fast.Complete(ctx, prompt)
	})
}

// Deep sends a prompt to the deep model with bounded retries.
func (g *Gateway) Deep(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, g.logger, g.deep.Name(), func() (string, error) {
		return g.deep.Complete(ctx, prompt)
	})
}

// Analyze runs the deep model and falls back to the fast model when the
// deep tier is out of reach. The result records which tier answered; an
// error is returned only when both tiers fail, and it carries both reasons.
func (g *Gateway) Analyze(ctx context.Context, prompt string) (*AnalysisResult, error) {
	out, deepErr := g.Deep(ctx, prompt)
	if deepErr == nil {
		return &AnalysisResult{
			Document:  []byte(out),
			ModelUsed: g.deep.Name(),
		}, nil
	}

	g.logger.Warn("Deep model failed, falling back to fast model",
		"deep_model", g.deep.Name(), "kind", ErrorKind(deepErr), "error", deepErr)

	out, fastErr := g.Fast(ctx, prompt)
	if fastErr != nil {
		return nil, fmt.Errorf("both model tiers failed: deep: %w; fast: %v", deepErr, fastErr)
	}

	return &AnalysisResult{
		Document:       []byte(out),
		ModelUsed:      g.fast.Name(),
		FallbackUsed:   true,
		FallbackReason: deepErr.Error(),
	}, nil
}
