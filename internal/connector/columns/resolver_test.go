package columns

import (
	"testing"

	"github.com/datapilot-ai/datapilot/internal/connector"
)

func cols(names ...string) []connector.Column {
	out := make([]connector.Column, len(names))
	for i, n := range names {
		out[i] = connector.Column{Name: n, Type: "text"}
	}
	return out
}

func TestNewSubstringResolver_ImplementsResolver(t *testing.T) {
	var r Resolver = NewSubstringResolver()

	m := r.Resolve(cols("product", "qty"))
	if m.Product != "product" {
		t.Errorf("product: got %q", m.Product)
	}
	if m.Quantity != "qty" {
		t.Errorf("quantity: got %q", m.Quantity)
	}
}

func TestResolve_TypicalSalesSchema(t *testing.T) {
	m := SubstringResolver{}.Resolve(cols("id", "product_name", "quantity", "unit_price", "order_date", "category"))

	if m.Product != "product_name" {
		t.Errorf("product: got %q", m.Product)
	}
	if m.Quantity != "quantity" {
		t.Errorf("quantity: got %q", m.Quantity)
	}
	if m.Price != "unit_price" {
		t.Errorf("price: got %q", m.Price)
	}
	if m.Date != "order_date" {
		t.Errorf("date: got %q", m.Date)
	}
	if m.Category != "category" {
		t.Errorf("category: got %q", m.Category)
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	m := SubstringResolver{}.Resolve(cols("Product_Name", "QTY", "Price"))

	if m.Product != "Product_Name" {
		t.Errorf("product: got %q", m.Product)
	}
	if m.Quantity != "QTY" {
		t.Errorf("quantity: got %q", m.Quantity)
	}
	if m.Price != "Price" {
		t.Errorf("price: got %q", m.Price)
	}
}

func TestResolve_PriorityOrder(t *testing.T) {
	// "product_name" outranks a generic "name" column.
	m := SubstringResolver{}.Resolve(cols("name", "product_name"))
	if m.Product != "product_name" {
		t.Errorf("product: got %q, want product_name", m.Product)
	}

	// "unit_price" outranks "total".
	m = SubstringResolver{}.Resolve(cols("total", "unit_price"))
	if m.Price != "unit_price" {
		t.Errorf("price: got %q, want unit_price", m.Price)
	}
}

func TestResolve_UnresolvedFieldsEmpty(t *testing.T) {
	m := SubstringResolver{}.Resolve(cols("foo", "bar"))

	if m != (Mapping{}) {
		t.Errorf("expected empty mapping, got %+v", m)
	}
}

func TestResolve_EmptySchema(t *testing.T) {
	m := SubstringResolver{}.Resolve(nil)
	if m != (Mapping{}) {
		t.Errorf("expected empty mapping, got %+v", m)
	}
}
