package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence without newline", "```{\"a\":1}```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.input))
		})
	}
}

func TestWithRetry(t *testing.T) {
	logger := slog.Default()

	t.Run("transient failure retried to success", func(t *testing.T) {
		calls := 0
		out, err := withRetry(context.Background(), logger, "m", func() (string, error) {
			calls++
			if calls < 2 {
				return "", newError("m", KindUnavailable, errors.New("down"))
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 2, calls)
	})

	t.Run("non-transient failure not retried", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), logger, "m", func() (string, error) {
			calls++
			return "", newError("m", KindAuth, errors.New("bad key"))
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, KindAuth, ErrorKind(err))
	})

	t.Run("attempts bounded", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), logger, "m", func() (string, error) {
			calls++
			return "", newError("m", KindUnavailable, errors.New("503"))
		})
		require.Error(t, err)
		assert.Equal(t, maxAttempts, calls)
	})

	t.Run("rate limit surfaces without retry", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), logger, "m", func() (string, error) {
			calls++
			return "", newError("m", KindRateLimited, errors.New("429"))
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, KindRateLimited, ErrorKind(err))
	})

	t.Run("deadline expiring mid-backoff aborts", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		calls := 0
		_, err := withRetry(ctx, logger, "m", func() (string, error) {
			calls++
			return "", newError("m", KindUnavailable, errors.New("down"))
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, KindTimeout, ErrorKind(err))
	})

	t.Run("untagged error not retried", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), logger, "m", func() (string, error) {
			calls++
			return "", errors.New("plain failure")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestErrorClassification(t *testing.T) {
	assert.Equal(t, KindAuth, classifyStatus("m", 401, "").Kind)
	assert.Equal(t, KindAuth, classifyStatus("m", 403, "").Kind)
	assert.Equal(t, KindRateLimited, classifyStatus("m", 429, "").Kind)
	assert.Equal(t, KindTimeout, classifyStatus("m", 504, "").Kind)
	assert.Equal(t, KindUnavailable, classifyStatus("m", 500, "").Kind)
	assert.Equal(t, KindUnavailable, classifyStatus("m", 404, "").Kind)

	assert.Equal(t, KindTimeout, classifyTransport("m", context.DeadlineExceeded).Kind)

	assert.True(t, classifyStatus("m", 503, "").Transient())
	assert.False(t, classifyStatus("m", 401, "").Transient())
	assert.False(t, classifyStatus("m", 429, "").Transient())
	assert.Equal(t, Kind(""), ErrorKind(errors.New("plain")))
}
