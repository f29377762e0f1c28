package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultDeepTimeout is the per-call deadline for the deep model. Deep
// analysis runs off the request path, so it gets a generous budget.
const DefaultDeepTimeout = 90 * time.Second

// OllamaConfig holds deep-model settings. APIKey is optional and only sent
// for hosted Ollama endpoints.
type OllamaConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Ollama calls an Ollama-compatible /api/chat endpoint.
type Ollama struct {
	config OllamaConfig
	client *http.Client
}

// NewOllama creates a deep-model client.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultDeepTimeout
	}
	return &Ollama{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name identifies the client in logs and analysis metadata.
func (o *Ollama) Name() string {
	return o.config.Model
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Complete sends the prompt as a single user message and returns the
// model's JSON text output.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.config.Model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Format:   "json",
		Options:  map[string]any{"temperature": o.config.Temperature},
	})
	if err != nil {
		return "", newError(o.Name(), KindParse, fmt.Errorf("failed to encode request: %w", err))
	}

	url := strings.TrimRight(o.config.BaseURL, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", newError(o.Name(), KindUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", classifyTransport(o.Name(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(o.Name(), KindUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(o.Name(), resp.StatusCode, truncateBody(payload))
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", newError(o.Name(), KindParse, fmt.Errorf("failed to decode response: %w", err))
	}

	text := strings.TrimSpace(parsed.Message.Content)
	if text == "" {
		return "", newError(o.Name(), KindEmpty, fmt.Errorf("empty message content"))
	}
	return stripFences(text), nil
}
