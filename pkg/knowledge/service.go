// Package knowledge manages the product-knowledge nuggets behind retrieval:
// admin CRUD over the vector store plus golden standards promoted from
// seller feedback.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ultra-dojo/coach/pkg/models"
	"github.com/ultra-dojo/coach/pkg/vector"
)

const listLimit = 500

// Embedder turns nugget content into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the subset of the vector store the service needs.
type VectorStore interface {
	Upsert(ctx context.Context, id string, embedding []float32, payload map[string]any) error
	List(ctx context.Context, language string, limit int) ([]vector.SearchResult, error)
	Delete(ctx context.Context, id string) error
}

// Nugget is one knowledge entry as seen by the admin API.
type Nugget struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
	Language string   `json:"language"`
	Type     string   `json:"type"`
	Tags     []string `json:"tags"`
}

// Service manages knowledge nuggets.
type Service struct {
	embedder Embedder
	store    VectorStore
	logger   *slog.Logger
}

// NewService creates a knowledge service.
func NewService(embedder Embedder, store VectorStore, logger *slog.Logger) *Service {
	return &Service{embedder: embedder, store: store, logger: logger}
}

// List returns all nuggets in the given language.
func (s *Service) List(ctx context.Context, language string) ([]Nugget, error) {
	results, err := s.store.List(ctx, models.NormalizeLanguage(language), listLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list nuggets: %w", err)
	}

	nuggets := make([]Nugget, 0, len(results))
	for _, result := range results {
		nuggets = append(nuggets, nuggetFromResult(result))
	}
	return nuggets, nil
}

// Add embeds the nugget content and stores it. The embedding text combines
// title, content and keywords so searches hit on any of them.
func (s *Service) Add(ctx context.Context, n Nugget) (string, error) {
	if strings.TrimSpace(n.Content) == "" {
		return "", fmt.Errorf("nugget content must not be empty")
	}
	n.Language = models.NormalizeLanguage(n.Language)
	if n.Type == "" {
		n.Type = "knowledge"
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	embedding, err := s.embedder.Embed(ctx, embeddingText(n))
	if err != nil {
		return "", fmt.Errorf("failed to embed nugget: %w", err)
	}

	payload := map[string]any{
		"title":      n.Title,
		"content":    n.Content,
		"keywords":   anySlice(n.Keywords),
		"language":   n.Language,
		"type":       n.Type,
		"tags":       anySlice(n.Tags),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.Upsert(ctx, n.ID, embedding, payload); err != nil {
		return "", fmt.Errorf("failed to store nugget: %w", err)
	}

	s.logger.Info("Knowledge nugget added",
		"nugget_id", n.ID, "language", n.Language, "type", n.Type)
	return n.ID, nil
}

// Delete removes a nugget by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("nugget id must not be empty")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete nugget: %w", err)
	}
	s.logger.Info("Knowledge nugget deleted", "nugget_id", id)
	return nil
}

// AddGoldenStandard stores a curated situation/response pair as a nugget of
// type golden_standard so retrieval surfaces it for similar situations.
func (s *Service) AddGoldenStandard(ctx context.Context, situation, response, language string) (string, error) {
	return s.Add(ctx, Nugget{
		Title:    "Golden standard",
		Content:  fmt.Sprintf("Situation: %s\nProven response: %s", situation, response),
		Language: language,
		Type:     "golden_standard",
	})
}

func embeddingText(n Nugget) string {
	parts := []string{n.Title, n.Content}
	if len(n.Keywords) > 0 {
		parts = append(parts, strings.Join(n.Keywords, " "))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func nuggetFromResult(result vector.SearchResult) Nugget {
	n := Nugget{
		ID:      result.ID,
		Content: result.Content,
	}
	if v, ok := result.Metadata["title"].(string); ok {
		n.Title = v
	}
	if v, ok := result.Metadata["language"].(string); ok {
		n.Language = v
	}
	if v, ok := result.Metadata["type"].(string); ok {
		n.Type = v
	}
	n.Keywords = stringSlice(result.Metadata["keywords"])
	n.Tags = stringSlice(result.Metadata["tags"])
	return n
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
