package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	maxAttempts    = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 10 * time.Second
)

// withRetry runs fn up to maxAttempts times with exponential backoff,
// retrying only transient failures. The caller's deadline still binds: a
// budget that expires mid-backoff aborts the remaining attempts.
func withRetry(ctx context.Context, logger *slog.Logger, model string, fn func() (string, error)) (string, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err

		var tagged *Error
		if !errors.As(err, &tagged) || !tagged.Transient() {
			return "", err
		}
		if attempt == maxAttempts {
			break
		}

		logger.Warn("Model call failed, retrying",
			"model", model, "attempt", attempt, "kind", tagged.Kind, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", newError(model, KindTimeout, ctx.Err())
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return "", lastErr
}

// stripFences removes a Markdown code fence wrapping a JSON payload.
// Models add these despite being told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.ContainsAny(s[:idx], "{[") {
		// Drop a language tag like "json" on the opening fence line.
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
