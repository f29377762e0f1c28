// Package vector wraps the Qdrant client for knowledge-nugget storage and
// similarity search.
package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// Config holds Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// VectorSize must match the embedder's output dimension.
	VectorSize uint64
}

// SearchResult is one scored knowledge nugget.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]any
}

// Store is the Qdrant-backed vector store.
type Store struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// NewStore connects to Qdrant and ensures the knowledge collection exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	store := &Store{
		client:     client,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
	}
	if err := store.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert stores a nugget vector with its payload under the given point id.
func (s *Store) Upsert(ctx context.Context, id string, embedding []float32, payload map[string]any) error {
	converted := make(map[string]*qdrant.Value, len(payload))
	for key, value := range payload {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
		}
		converted[key] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: converted,
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Search returns up to limit nuggets matching the query vector, restricted
// to the given language and filtered by the score threshold.
func (s *Store) Search(ctx context.Context, embedding []float32, language string, limit int, threshold float32) ([]SearchResult, error) {
	request := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{keywordCondition("language", language)},
		},
	}

	points, err := s.client.GetPointsClient().Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	return convertScored(points.Result), nil
}

// List scrolls the collection for all nuggets in the given language.
func (s *Store) List(ctx context.Context, language string, limit int) ([]SearchResult, error) {
	scrollLimit := uint32(limit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          &scrollLimit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{keywordCondition("language", language)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll collection: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		metadata := convertPayload(point.Payload)
		results = append(results, SearchResult{
			ID:       pointID(point.Id),
			Content:  stringField(metadata, "content"),
			Metadata: metadata,
		})
	}
	return results, nil
}

// Delete removes a nugget by point id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{
						{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point %s: %w", id, err)
	}
	return nil
}

// Healthy reports whether the collection is reachable.
func (s *Store) Healthy(ctx context.Context) error {
	if _, err := s.client.CollectionExists(ctx, s.collection); err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	return nil
}

// Close shuts down the client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func convertScored(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		metadata := convertPayload(point.Payload)
		results = append(results, SearchResult{
			ID:       pointID(point.Id),
			Content:  stringField(metadata, "content"),
			Score:    point.Score,
			Metadata: metadata,
		})
	}
	return results
}

func pointID(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		switch v := value.Kind.(type) {
		case *qdrant.Value_StringValue:
			metadata[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			metadata[key] = v.IntegerValue
		case *qdrant.Value_DoubleValue:
			metadata[key] = v.DoubleValue
		case *qdrant.Value_BoolValue:
			metadata[key] = v.BoolValue
		case *qdrant.Value_ListValue:
			if v.ListValue == nil {
				continue
			}
			list := make([]any, 0, len(v.ListValue.Values))
			for _, item := range v.ListValue.Values {
				if s, ok := item.Kind.(*qdrant.Value_StringValue); ok {
					list = append(list, s.StringValue)
				}
			}
			metadata[key] = list
		default:
			metadata[key] = value
		}
	}
	return metadata
}

func stringField(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
