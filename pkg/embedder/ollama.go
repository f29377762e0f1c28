// Package embedder turns text into vectors via an Ollama-compatible
// embeddings endpoint.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Serialize embedding requests. Ollama's llama runner crashes with SIGABRT
// when it receives concurrent embedding requests.
var embedMu sync.Mutex

// Config holds embedder settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimension  int
	Timeout    time.Duration
	MaxRetries int
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Ollama is an embedder backed by the /api/embeddings endpoint.
type Ollama struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewOllama creates an embedder with sane defaults filled in.
func NewOllama(cfg Config, logger *slog.Logger) *Ollama {
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 768
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Ollama{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Dimension returns the embedding vector size.
func (e *Ollama) Dimension() int {
	return e.config.Dimension
}

// Embed returns the embedding vector for the given text.
func (e *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	embedMu.Lock()
	defer embedMu.Unlock()

	body, err := json.Marshal(embedRequest{Model: e.config.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	var resp *http.Response
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		resp, err = e.send(ctx, body)
		if err == nil {
			break
		}
		e.logger.Debug("Embedding request retry",
			"attempt", attempt+1, "error", err, "text_length", len(text))
		if attempt < e.config.MaxRetries-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reach embedding endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s",
			resp.StatusCode, string(payload))
	}

	var response embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding")
	}
	return response.Embedding, nil
}

func (e *Ollama) send(ctx context.Context, body []byte) (*http.Response, error) {
	url := strings.TrimRight(e.config.BaseURL, "/") + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}
	return e.client.Do(req)
}
