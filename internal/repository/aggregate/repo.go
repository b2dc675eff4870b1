// Package aggregate maps precomputed aggregation facts onto vector store
// points and back. Every point payload carries enough fields to reconstruct
// the fact without a second lookup.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domagg "github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	"github.com/datapilot-ai/datapilot/internal/vectorstore/qdrant"
)

// PayloadType tags aggregation points so they never mix with raw documents.
const PayloadType = "aggregation"

// vectors is the consumer interface for vector store operations (ISP).
type vectors interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, vectorSize int, distance string) error
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
	Search(ctx context.Context, collection string, vector []float32, filter qdrant.Filter, limit int) ([]qdrant.Hit, error)
	Count(ctx context.Context, collection string, filter qdrant.Filter) (int64, error)
}

// Repo stores and retrieves aggregation facts.
type Repo struct {
	store      vectors
	vectorSize int
}

// New creates an aggregation repository.
func New(store vectors, vectorSize int) *Repo {
	return &Repo{store: store, vectorSize: vectorSize}
}

// CollectionName returns the per-source aggregation collection.
func CollectionName(sourceID string) string {
	return fmt.Sprintf("datasource_%s_aggregations", sourceID)
}

// EnsureCollection creates the source's aggregation collection if absent.
func (r *Repo) EnsureCollection(ctx context.Context, sourceID string) error {
	name := CollectionName(sourceID)
	exists, err := r.store.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("probe collection %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if err := r.store.CreateCollection(ctx, name, r.vectorSize, qdrant.DistanceCosine); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// UpsertBatch writes aggregation facts as points keyed by their
// deterministic IDs, overwriting previous values.
func (r *Repo) UpsertBatch(ctx context.Context, sourceID string, aggs []domagg.Aggregation) error {
	if len(aggs) == 0 {
		return nil
	}

	points := make([]qdrant.Point, 0, len(aggs))
	for _, agg := range aggs {
		if len(agg.Vector) != r.vectorSize {
			return fmt.Errorf("vector size mismatch for %s: want %d, got %d", agg.ID(), r.vectorSize, len(agg.Vector))
		}
		points = append(points, qdrant.Point{
			ID:     agg.ID(),
			Vector: agg.Vector,
			Payload: map[string]any{
				"type":        PayloadType,
				"kind":        string(agg.Kind),
				"subject":     agg.Subject,
				"subject_id":  agg.SubjectID,
				"value":       agg.Value,
				"description": agg.Description,
				"source_id":   agg.SourceID,
				"computed_at": agg.ComputedAt.UTC().Format(time.RFC3339),
			},
		})
	}

	if err := r.store.Upsert(ctx, CollectionName(sourceID), points); err != nil {
		return fmt.Errorf("upsert aggregations for %s: %w", sourceID, err)
	}
	return nil
}

// Exists reports whether at least one matching fact is stored. An absent
// collection or empty result means "does not exist", never an error.
func (r *Repo) Exists(ctx context.Context, sourceID string, kind domagg.Kind, subject string) (bool, error) {
	name := CollectionName(sourceID)
	exists, err := r.store.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("probe collection %s: %w", name, err)
	}
	if !exists {
		return false, nil
	}

	count, err := r.store.Count(ctx, name, matchFilter(kind, subject))
	if err != nil {
		return false, fmt.Errorf("count aggregations in %s: %w", name, err)
	}
	return count > 0, nil
}

// Search runs a similarity search over the source's aggregation facts,
// constrained to the kind and (when known) subject.
func (r *Repo) Search(
	ctx context.Context, sourceID string,
	vector []float32, kind domagg.Kind, subject string, limit int,
) ([]domagg.Scored, error) {
	name := CollectionName(sourceID)
	exists, err := r.store.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("probe collection %s: %w", name, err)
	}
	if !exists {
		return nil, nil
	}

	hits, err := r.store.Search(ctx, name, vector, matchFilter(kind, subject), limit)
	if err != nil {
		return nil, fmt.Errorf("search aggregations in %s: %w", name, err)
	}

	scored := make([]domagg.Scored, 0, len(hits))
	for _, hit := range hits {
		scored = append(scored, domagg.Scored{
			Aggregation: decodePayload(hit.Payload),
			Score:       hit.Score,
		})
	}
	return scored, nil
}

func matchFilter(kind domagg.Kind, subject string) qdrant.Filter {
	filter := qdrant.Filter{"type": PayloadType}
	if kind != "" {
		filter["kind"] = string(kind)
	}
	if subject != "" {
		filter["subject_id"] = domagg.SubjectID(subject)
	}
	return filter
}

// decodePayload reconstructs an aggregation fact from a point payload.
func decodePayload(payload map[string]any) domagg.Aggregation {
	agg := domagg.Aggregation{
		Kind:        domagg.Kind(stringField(payload, "kind")),
		Subject:     stringField(payload, "subject"),
		SubjectID:   stringField(payload, "subject_id"),
		Description: stringField(payload, "description"),
		SourceID:    stringField(payload, "source_id"),
	}
	if v, ok := payload["value"]; ok {
		agg.Value = toFloat(v)
	}
	if ts := stringField(payload, "computed_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			agg.ComputedAt = t
		}
	}
	return agg
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
