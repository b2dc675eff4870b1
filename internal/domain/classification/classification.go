// Package classification holds the structured interpretation of a raw query:
// type, entities, aggregation hint, confidence, and complexity.
package classification

import (
	"fmt"
	"strings"

	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
)

// Type is the classified query intent.
type Type string

// Query type constants.
const (
	TypeSemantic    Type = "semantic"
	TypeFilter      Type = "filter"
	TypeAggregation Type = "aggregation"
	TypeHybrid      Type = "hybrid"
)

// Complexity is the estimated query complexity.
type Complexity string

// Complexity constants.
const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Entities is the fixed-shape set of extracted query entities. Absent
// entities are empty strings.
type Entities struct {
	Product  string
	Date     string
	Location string
	Category string
}

// IsEmpty reports whether no entity was extracted.
func (e Entities) IsEmpty() bool {
	return e.Product == "" && e.Date == "" && e.Location == "" && e.Category == ""
}

// Count returns the number of extracted entities.
func (e Entities) Count() int {
	n := 0
	for _, v := range []string{e.Product, e.Date, e.Location, e.Category} {
		if v != "" {
			n++
		}
	}
	return n
}

// Conditions returns the non-empty entities as equality filter conditions.
func (e Entities) Conditions() map[string]string {
	conds := make(map[string]string)
	if e.Product != "" {
		conds["product"] = e.Product
	}
	if e.Date != "" {
		conds["date"] = e.Date
	}
	if e.Location != "" {
		conds["location"] = e.Location
	}
	if e.Category != "" {
		conds["category"] = e.Category
	}
	return conds
}

// Classification is the structured interpretation of one query. Produced
// fresh per query, never persisted.
type Classification struct {
	Type             Type
	Entities         Entities
	Function         aggregate.Function // empty when no aggregation verb matched
	Kind             aggregate.Kind     // empty when no precomputed family applies
	Confidence       float64
	Complexity       Complexity
	NeedsPrecomputed bool
}

// Summary renders a short human-readable line for prompt context and logs.
func (c Classification) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "query type: %s, complexity: %s, confidence: %.2f", c.Type, c.Complexity, c.Confidence)
	if c.Function != "" {
		fmt.Fprintf(&sb, ", aggregation: %s", c.Function)
	}
	if c.Kind != "" {
		fmt.Fprintf(&sb, " (%s)", c.Kind)
	}
	if conds := c.Entities.Conditions(); len(conds) > 0 {
		sb.WriteString(", entities:")
		for _, key := range []string{"product", "date", "location", "category"} {
			if v, ok := conds[key]; ok {
				fmt.Fprintf(&sb, " %s=%s", key, v)
			}
		}
	}
	return sb.String()
}
