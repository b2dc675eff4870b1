// Package columns resolves logical aggregation fields (product, quantity,
// price, date, category) onto a source's physical columns. The resolution
// strategy is pluggable so stricter schemas can replace the substring
// heuristics without touching the aggregation control flow.
package columns

import (
	"strings"

	"github.com/datapilot-ai/datapilot/internal/connector"
)

// Mapping holds the resolved physical column per logical field. Unresolved
// fields are empty strings.
type Mapping struct {
	Product  string
	Quantity string
	Price    string
	Date     string
	Category string
}

// Resolver maps a source schema onto the logical aggregation fields.
type Resolver interface {
	Resolve(cols []connector.Column) Mapping
}

// SubstringResolver resolves columns by case-insensitive substring matching,
// first candidate wins.
type SubstringResolver struct{}

// NewSubstringResolver creates the default substring-matching resolver.
func NewSubstringResolver() SubstringResolver {
	return SubstringResolver{}
}

// Candidate substrings per logical field, in priority order.
var (
	productCandidates  = []string{"product_name", "product", "item", "sku", "name"}
	quantityCandidates = []string{"quantity", "qty", "units", "count"}
	priceCandidates    = []string{"unit_price", "price", "amount", "revenue", "total"}
	dateCandidates     = []string{"order_date", "date", "created", "timestamp", "time"}
	categoryCandidates = []string{"category", "type", "group", "segment"}
)

// Resolve implements Resolver.
func (SubstringResolver) Resolve(cols []connector.Column) Mapping {
	return Mapping{
		Product:  match(cols, productCandidates),
		Quantity: match(cols, quantityCandidates),
		Price:    match(cols, priceCandidates),
		Date:     match(cols, dateCandidates),
		Category: match(cols, categoryCandidates),
	}
}

func match(cols []connector.Column, candidates []string) string {
	for _, cand := range candidates {
		for _, col := range cols {
			if strings.Contains(strings.ToLower(col.Name), cand) {
				return col.Name
			}
		}
	}
	return ""
}
