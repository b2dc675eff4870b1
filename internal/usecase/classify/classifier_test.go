package classify

import (
	"testing"

	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	"github.com/datapilot-ai/datapilot/internal/domain/classification"
)

func TestClassify_TotalSalesOfProduct(t *testing.T) {
	c := New()
	cls := c.Classify("What is the total sales of espresso?")

	if cls.Type != classification.TypeAggregation {
		t.Errorf("expected type %q, got %q", classification.TypeAggregation, cls.Type)
	}
	if cls.Function != aggregate.FuncSum {
		t.Errorf("expected function %q, got %q", aggregate.FuncSum, cls.Function)
	}
	if cls.Entities.Product != "espresso" {
		t.Errorf("expected product %q, got %q", "espresso", cls.Entities.Product)
	}
	if cls.Kind != aggregate.KindTotalByProduct {
		t.Errorf("expected kind %q, got %q", aggregate.KindTotalByProduct, cls.Kind)
	}
	if !cls.NeedsPrecomputed {
		t.Error("expected NeedsPrecomputed to be set")
	}
}

func TestClassify_FilterByCategory(t *testing.T) {
	c := New()
	cls := c.Classify("Show records where category is beverages")

	if cls.Type != classification.TypeFilter {
		t.Errorf("expected type %q, got %q", classification.TypeFilter, cls.Type)
	}
	if cls.Entities.Category != "beverages" {
		t.Errorf("expected category %q, got %q", "beverages", cls.Entities.Category)
	}
	if cls.Function != "" {
		t.Errorf("expected no function, got %q", cls.Function)
	}

	conds := cls.Entities.Conditions()
	if conds["category"] != "beverages" {
		t.Errorf("expected category condition, got %v", conds)
	}
}

func TestClassify_Hybrid(t *testing.T) {
	c := New()
	cls := c.Classify("What is the total sales where category is beverages?")

	if cls.Type != classification.TypeHybrid {
		t.Errorf("expected type %q, got %q", classification.TypeHybrid, cls.Type)
	}
	if cls.Function != aggregate.FuncSum {
		t.Errorf("expected function %q, got %q", aggregate.FuncSum, cls.Function)
	}
}

func TestClassify_SemanticByDefault(t *testing.T) {
	c := New()
	cls := c.Classify("Tell me about our best sellers")

	if cls.Type != classification.TypeSemantic {
		t.Errorf("expected type %q, got %q", classification.TypeSemantic, cls.Type)
	}
	if cls.Kind != "" {
		t.Errorf("expected no kind, got %q", cls.Kind)
	}
}

func TestClassify_AveragePrice(t *testing.T) {
	c := New()
	cls := c.Classify("What is the average price of latte?")

	if cls.Function != aggregate.FuncAvg {
		t.Errorf("expected function %q, got %q", aggregate.FuncAvg, cls.Function)
	}
	if cls.Kind != aggregate.KindAveragePriceByProduct {
		t.Errorf("expected kind %q, got %q", aggregate.KindAveragePriceByProduct, cls.Kind)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New()
	questions := []string{
		"What is the total sales of espresso?",
		"Show records where category is beverages",
		"Compare espresso and latte sales over time",
		"",
	}
	for _, q := range questions {
		first := c.Classify(q)
		for i := 0; i < 5; i++ {
			if got := c.Classify(q); got != first {
				t.Errorf("classification of %q not deterministic: %+v vs %+v", q, first, got)
			}
		}
	}
}

func TestClassify_ConfidenceBounds(t *testing.T) {
	c := New()
	questions := []string{
		"What is the total sales of espresso?",
		"total sum count average max min of everything",
		"Show records where category is beverages",
		"hello",
		"",
	}
	for _, q := range questions {
		cls := c.Classify(q)
		if cls.Confidence < 0 || cls.Confidence > 1 {
			t.Errorf("confidence out of bounds for %q: %f", q, cls.Confidence)
		}
	}
}

func TestClassify_ComplexityHigh(t *testing.T) {
	c := New()
	cls := c.Classify("Compare the sales trend of espresso over time")

	if cls.Complexity != classification.ComplexityHigh {
		t.Errorf("expected complexity %q, got %q", classification.ComplexityHigh, cls.Complexity)
	}
}

func TestClassify_CountByCategory(t *testing.T) {
	c := New()
	cls := c.Classify("How many orders are in the category beverages?")

	if cls.Function != aggregate.FuncCount {
		t.Errorf("expected function %q, got %q", aggregate.FuncCount, cls.Function)
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	c := New()
	cls := c.Classify("")

	if cls.Type != classification.TypeSemantic {
		t.Errorf("expected type %q, got %q", classification.TypeSemantic, cls.Type)
	}
	if !cls.Entities.IsEmpty() {
		t.Errorf("expected no entities, got %+v", cls.Entities)
	}
}
