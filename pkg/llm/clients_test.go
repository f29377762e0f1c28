package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiBody(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGeminiComplete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotPath, gotKey string
		var gotReq geminiRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("x-goog-api-key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.Write([]byte(geminiBody("```json\n{\"suggested_response\":\"ok\"}\n```")))
		}))
		defer server.Close()

		g := NewGemini(GeminiConfig{BaseURL: server.URL, APIKey: "k1", Model: "gemini-2.0-flash", Temperature: 0.7})
		out, err := g.Complete(context.Background(), "coach the seller")

		require.NoError(t, err)
		assert.Equal(t, `{"suggested_response":"ok"}`, out, "fences should be stripped")
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
		assert.Equal(t, "k1", gotKey)
		require.Len(t, gotReq.Contents, 1)
		assert.Equal(t, "coach the seller", gotReq.Contents[0].Parts[0].Text)
		assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMimeType)
		assert.InDelta(t, 0.7, gotReq.GenerationConfig.Temperature, 0.001)
	})

	t.Run("status classification", func(t *testing.T) {
		tests := []struct {
			status int
			kind   Kind
		}{
			{http.StatusUnauthorized, KindAuth},
			{http.StatusTooManyRequests, KindRateLimited},
			{http.StatusInternalServerError, KindUnavailable},
			{http.StatusGatewayTimeout, KindTimeout},
		}
		for _, tt := range tests {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			g := NewGemini(GeminiConfig{BaseURL: server.URL})
			_, err := g.Complete(context.Background(), "p")
			server.Close()

			require.Error(t, err, "status %d", tt.status)
			assert.Equal(t, tt.kind, ErrorKind(err), "status %d", tt.status)
		}
	})

	t.Run("empty candidates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[]}`))
		}))
		defer server.Close()

		g := NewGemini(GeminiConfig{BaseURL: server.URL})
		_, err := g.Complete(context.Background(), "p")
		require.Error(t, err)
		assert.Equal(t, KindEmpty, ErrorKind(err))
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		g := NewGemini(GeminiConfig{BaseURL: server.URL})
		_, err := g.Complete(context.Background(), "p")
		require.Error(t, err)
		assert.Equal(t, KindUnavailable, ErrorKind(err))
	})
}

func TestOllamaComplete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotReq ollamaChatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			resp := ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: `{"ok":true}`}, Done: true}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		o := NewOllama(OllamaConfig{BaseURL: server.URL, APIKey: "secret", Model: "qwen2.5:32b", Temperature: 0.4})
		out, err := o.Complete(context.Background(), "analyze")

		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, out)
		assert.Equal(t, "/api/chat", gotPath)
		assert.Equal(t, "Bearer secret", gotAuth)
		assert.Equal(t, "qwen2.5:32b", gotReq.Model)
		assert.False(t, gotReq.Stream)
		assert.Equal(t, "json", gotReq.Format)
		require.Len(t, gotReq.Messages, 1)
		assert.Equal(t, "user", gotReq.Messages[0].Role)
	})

	t.Run("no auth header without key", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Content: "{}"}})
		}))
		defer server.Close()

		o := NewOllama(OllamaConfig{BaseURL: server.URL, Model: "m"})
		_, err := o.Complete(context.Background(), "p")
		require.NoError(t, err)
		assert.Empty(t, gotAuth)
	})

	t.Run("empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Content: "   "}})
		}))
		defer server.Close()

		o := NewOllama(OllamaConfig{BaseURL: server.URL, Model: "m"})
		_, err := o.Complete(context.Background(), "p")
		require.Error(t, err)
		assert.Equal(t, KindEmpty, ErrorKind(err))
	})
}
