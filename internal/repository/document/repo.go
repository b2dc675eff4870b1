// Package document retrieves raw source documents from the vector store.
// Document points follow the ingestion payload shape: the embedded text under
// "text" and the original record under "metadata.original_data".
package document

import (
	"context"
	"fmt"

	"github.com/datapilot-ai/datapilot/internal/domain/query"
	"github.com/datapilot-ai/datapilot/internal/vectorstore/qdrant"
)

// vectors is the consumer interface for vector store operations (ISP).
type vectors interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, collection string, vector []float32, filter qdrant.Filter, limit int) ([]qdrant.Hit, error)
}

// Repo retrieves source documents by similarity.
type Repo struct {
	store vectors
}

// New creates a document repository.
func New(store vectors) *Repo {
	return &Repo{store: store}
}

// CollectionName returns the per-source document collection.
func CollectionName(sourceID string) string {
	return fmt.Sprintf("datasource_%s", sourceID)
}

// Search runs a similarity search over the source's documents, optionally
// constrained by equality conditions on the original record fields. An
// absent collection yields an empty result.
func (r *Repo) Search(
	ctx context.Context, sourceID string,
	vector []float32, conditions map[string]string, limit int,
) ([]query.Record, error) {
	name := CollectionName(sourceID)
	exists, err := r.store.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("probe collection %s: %w", name, err)
	}
	if !exists {
		return nil, nil
	}

	hits, err := r.store.Search(ctx, name, vector, conditionFilter(conditions), limit)
	if err != nil {
		return nil, fmt.Errorf("search documents in %s: %w", name, err)
	}

	records := make([]query.Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, query.Record{
			ID:      hit.ID,
			Score:   hit.Score,
			Content: textField(hit.Payload),
			Payload: originalData(hit.Payload),
		})
	}
	return records, nil
}

// conditionFilter maps logical record fields onto the nested payload keys
// used by the ingestion pipeline.
func conditionFilter(conditions map[string]string) qdrant.Filter {
	if len(conditions) == 0 {
		return nil
	}
	filter := make(qdrant.Filter, len(conditions))
	for field, value := range conditions {
		filter["metadata.original_data."+field] = value
	}
	return filter
}

func textField(payload map[string]any) string {
	if v, ok := payload["text"].(string); ok {
		return v
	}
	return ""
}

func originalData(payload map[string]any) map[string]any {
	meta, ok := payload["metadata"].(map[string]any)
	if !ok {
		return nil
	}
	data, ok := meta["original_data"].(map[string]any)
	if !ok {
		return nil
	}
	return data
}
