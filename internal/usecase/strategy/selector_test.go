package strategy

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/domain"
	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	"github.com/datapilot-ai/datapilot/internal/domain/classification"
	domstrat "github.com/datapilot-ai/datapilot/internal/domain/strategy"
)

// --- Mocks ---

type mockClassifier struct {
	cls classification.Classification
}

func (m *mockClassifier) Classify(_ string) classification.Classification {
	return m.cls
}

type mockFinder struct {
	exists bool
	err    error
	called bool
}

func (m *mockFinder) Exists(_ context.Context, _ string, _ aggregate.Kind, _ string) (bool, error) {
	m.called = true
	return m.exists, m.err
}

func aggregationCls() classification.Classification {
	return classification.Classification{
		Type:             classification.TypeAggregation,
		Entities:         classification.Entities{Product: "espresso"},
		Function:         aggregate.FuncSum,
		Kind:             aggregate.KindTotalByProduct,
		Confidence:       0.9,
		NeedsPrecomputed: true,
	}
}

// --- Tests ---

func TestSelect_SemanticForUnstructured(t *testing.T) {
	finder := &mockFinder{}
	sel := New(&mockClassifier{cls: classification.Classification{
		Type: classification.TypeSemantic,
	}}, finder, zap.NewNop())

	strat, err := sel.Select(context.Background(), "tell me about sales", Options{SourceID: "src"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if strat.Type != domstrat.TypeSemanticSearch {
		t.Errorf("expected %q, got %q", domstrat.TypeSemanticSearch, strat.Type)
	}
	if finder.called {
		t.Error("semantic selection must not probe the aggregation store")
	}
}

func TestSelect_PrecomputedWhenFactExists(t *testing.T) {
	finder := &mockFinder{exists: true}
	sel := New(&mockClassifier{cls: aggregationCls()}, finder, zap.NewNop())

	strat, err := sel.Select(context.Background(), "total sales of espresso", Options{SourceID: "src"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if strat.Type != domstrat.TypePrecomputedAggregation {
		t.Errorf("expected %q, got %q", domstrat.TypePrecomputedAggregation, strat.Type)
	}
	if strat.Plan.Subject != "espresso" {
		t.Errorf("expected subject espresso, got %q", strat.Plan.Subject)
	}
}

func TestSelect_FullScanWhenNoFact(t *testing.T) {
	finder := &mockFinder{exists: false}
	sel := New(&mockClassifier{cls: aggregationCls()}, finder, zap.NewNop())

	strat, err := sel.Select(context.Background(), "total sales of espresso", Options{SourceID: "src"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if strat.Type != domstrat.TypeFullScanAggregation {
		t.Errorf("expected %q, got %q", domstrat.TypeFullScanAggregation, strat.Type)
	}
	if !strat.Plan.ParallelScan {
		t.Error("expected parallel scan with a concrete subject")
	}
}

func TestSelect_SourceRequiredForLookup(t *testing.T) {
	sel := New(&mockClassifier{cls: aggregationCls()}, &mockFinder{exists: true}, zap.NewNop())

	_, err := sel.Select(context.Background(), "total sales of espresso", Options{})
	if !errors.Is(err, domain.ErrSourceRequired) {
		t.Errorf("expected ErrSourceRequired, got %v", err)
	}
}

func TestSelect_FinderErrorPropagates(t *testing.T) {
	finder := &mockFinder{err: errors.New("store down")}
	sel := New(&mockClassifier{cls: aggregationCls()}, finder, zap.NewNop())

	_, err := sel.Select(context.Background(), "total sales of espresso", Options{SourceID: "src"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSelect_MetadataFilter(t *testing.T) {
	finder := &mockFinder{}
	sel := New(&mockClassifier{cls: classification.Classification{
		Type:     classification.TypeFilter,
		Entities: classification.Entities{Category: "beverages"},
	}}, finder, zap.NewNop())

	strat, err := sel.Select(context.Background(), "records in category beverages", Options{SourceID: "src"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if strat.Type != domstrat.TypeMetadataFilter {
		t.Errorf("expected %q, got %q", domstrat.TypeMetadataFilter, strat.Type)
	}
	if strat.Plan.Conditions["category"] != "beverages" {
		t.Errorf("expected category condition, got %v", strat.Plan.Conditions)
	}
	if finder.called {
		t.Error("filter selection must not probe the aggregation store")
	}
}

func TestSelect_FilterWithoutEntitiesFallsBackToSemantic(t *testing.T) {
	sel := New(&mockClassifier{cls: classification.Classification{
		Type: classification.TypeFilter,
	}}, &mockFinder{}, zap.NewNop())

	strat, err := sel.Select(context.Background(), "filter things", Options{SourceID: "src"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if strat.Type != domstrat.TypeSemanticSearch {
		t.Errorf("expected %q, got %q", domstrat.TypeSemanticSearch, strat.Type)
	}
}

func TestSelect_ForceBypassesDecisionTable(t *testing.T) {
	finder := &mockFinder{exists: true}
	sel := New(&mockClassifier{cls: aggregationCls()}, finder, zap.NewNop())

	strat, err := sel.Select(context.Background(), "total sales of espresso", Options{
		SourceID: "src",
		Force:    domstrat.TypeSemanticSearch,
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if strat.Type != domstrat.TypeSemanticSearch {
		t.Errorf("expected forced %q, got %q", domstrat.TypeSemanticSearch, strat.Type)
	}
	if finder.called {
		t.Error("forced selection must not probe the aggregation store")
	}
	// Classification still present for downstream consumers.
	if strat.Classification.Kind != aggregate.KindTotalByProduct {
		t.Errorf("expected classification kept, got %+v", strat.Classification)
	}
}

func TestSelect_ForceUnknownStrategy(t *testing.T) {
	sel := New(&mockClassifier{cls: aggregationCls()}, &mockFinder{}, zap.NewNop())

	_, err := sel.Select(context.Background(), "q", Options{
		SourceID: "src",
		Force:    domstrat.Type("quantum"),
	})
	if !errors.Is(err, domain.ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestSelect_HybridWithoutFact(t *testing.T) {
	finder := &mockFinder{exists: false}
	sel := New(&mockClassifier{cls: classification.Classification{
		Type:     classification.TypeHybrid,
		Entities: classification.Entities{Category: "beverages"},
		Function: aggregate.FuncSum,
		Kind:     aggregate.KindTotalByCategory,
	}}, finder, zap.NewNop())

	strat, err := sel.Select(context.Background(), "total sales where category is beverages", Options{SourceID: "src"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if strat.Type != domstrat.TypeHybrid {
		t.Errorf("expected %q, got %q", domstrat.TypeHybrid, strat.Type)
	}
	if strat.Plan.Conditions["category"] != "beverages" {
		t.Errorf("expected conditions, got %v", strat.Plan.Conditions)
	}
}
