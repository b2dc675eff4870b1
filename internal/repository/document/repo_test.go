package document

import (
	"context"
	"errors"
	"testing"

	"github.com/datapilot-ai/datapilot/internal/vectorstore/qdrant"
)

// --- Mocks ---

type stubVectors struct {
	existsFn func(ctx context.Context, name string) (bool, error)
	searchFn func(ctx context.Context, collection string, vector []float32, filter qdrant.Filter, limit int) ([]qdrant.Hit, error)
}

func (s *stubVectors) CollectionExists(ctx context.Context, name string) (bool, error) {
	if s.existsFn == nil {
		return false, nil
	}
	return s.existsFn(ctx, name)
}

func (s *stubVectors) Search(ctx context.Context, collection string, vector []float32, filter qdrant.Filter, limit int) ([]qdrant.Hit, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, collection, vector, filter, limit)
}

// --- Tests ---

func TestSearch_AbsentCollectionIsEmpty(t *testing.T) {
	store := &stubVectors{
		existsFn: func(_ context.Context, name string) (bool, error) {
			if name != "datasource_sales" {
				t.Errorf("collection: got %q", name)
			}
			return false, nil
		},
		searchFn: func(_ context.Context, _ string, _ []float32, _ qdrant.Filter, _ int) ([]qdrant.Hit, error) {
			t.Fatal("search called for absent collection")
			return nil, nil
		},
	}
	repo := New(store)

	records, err := repo.Search(context.Background(), "sales", []float32{0.1}, nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestSearch_MapsHitsToRecords(t *testing.T) {
	store := &stubVectors{
		existsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		searchFn: func(_ context.Context, _ string, _ []float32, filter qdrant.Filter, limit int) ([]qdrant.Hit, error) {
			if filter != nil {
				t.Errorf("expected nil filter without conditions, got %v", filter)
			}
			if limit != 5 {
				t.Errorf("limit: got %d, want 5", limit)
			}
			return []qdrant.Hit{{
				ID:    "doc-1",
				Score: 0.88,
				Payload: map[string]any{
					"text": "Espresso sold 10 units at 2.50.",
					"metadata": map[string]any{
						"original_data": map[string]any{
							"product": "Espresso",
							"price":   2.5,
						},
					},
				},
			}}, nil
		},
	}
	repo := New(store)

	records, err := repo.Search(context.Background(), "sales", []float32{0.1}, nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	if records[0].ID != "doc-1" || records[0].Score != 0.88 {
		t.Errorf("record head: got %+v", records[0])
	}
	if records[0].Content != "Espresso sold 10 units at 2.50." {
		t.Errorf("content: got %q", records[0].Content)
	}
	if records[0].Payload["product"] != "Espresso" {
		t.Errorf("payload: got %v", records[0].Payload)
	}
}

func TestSearch_ConditionsMapToPayloadFields(t *testing.T) {
	store := &stubVectors{
		existsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		searchFn: func(_ context.Context, _ string, _ []float32, filter qdrant.Filter, _ int) ([]qdrant.Hit, error) {
			if filter["metadata.original_data.category"] != "beverages" {
				t.Errorf("category condition: got %v", filter)
			}
			return nil, nil
		},
	}
	repo := New(store)

	_, err := repo.Search(context.Background(), "sales", []float32{0.1}, map[string]string{"category": "beverages"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearch_MalformedPayloadYieldsBareRecord(t *testing.T) {
	store := &stubVectors{
		existsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		searchFn: func(_ context.Context, _ string, _ []float32, _ qdrant.Filter, _ int) ([]qdrant.Hit, error) {
			return []qdrant.Hit{{ID: "doc-2", Score: 0.4, Payload: map[string]any{"metadata": "garbage"}}}, nil
		},
	}
	repo := New(store)

	records, err := repo.Search(context.Background(), "sales", []float32{0.1}, nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	if records[0].Content != "" || records[0].Payload != nil {
		t.Errorf("expected bare record, got %+v", records[0])
	}
}

func TestSearch_StoreErrorPropagates(t *testing.T) {
	searchErr := errors.New("store down")
	store := &stubVectors{
		existsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		searchFn: func(_ context.Context, _ string, _ []float32, _ qdrant.Filter, _ int) ([]qdrant.Hit, error) {
			return nil, searchErr
		},
	}
	repo := New(store)

	_, err := repo.Search(context.Background(), "sales", []float32{0.1}, nil, 5)
	if !errors.Is(err, searchErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
