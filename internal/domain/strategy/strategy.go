// Package strategy holds the closed set of execution strategies and the plan
// passed from the selector to the execution engine.
package strategy

import (
	"github.com/datapilot-ai/datapilot/internal/domain/classification"
)

// Type is the execution strategy.
type Type string

// Execution strategy constants.
const (
	// TypeSemanticSearch answers via plain vector similarity search.
	TypeSemanticSearch Type = "semantic_search"
	// TypeMetadataFilter constrains similarity search with equality filters.
	TypeMetadataFilter Type = "metadata_filter"
	// TypePrecomputedAggregation serves a cached numeric fact via vector lookup.
	TypePrecomputedAggregation Type = "precomputed_aggregation"
	// TypeFullScanAggregation computes the aggregate live from source data.
	TypeFullScanAggregation Type = "full_scan_aggregation"
	// TypeHybrid combines filtering with a live aggregation.
	TypeHybrid Type = "hybrid"
)

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	switch t {
	case TypeSemanticSearch, TypeMetadataFilter, TypePrecomputedAggregation,
		TypeFullScanAggregation, TypeHybrid:
		return true
	}
	return false
}

// Plan carries strategy-specific execution parameters. Built once by the
// selector, consumed once by the engine.
type Plan struct {
	// Conditions are equality filters applied to document payloads.
	Conditions map[string]string
	// TargetField names the logical field a live aggregation reduces over.
	TargetField string
	// ParallelScan flags that a full scan may fan out across subjects.
	ParallelScan bool
	// Subject is the concrete entity a precomputed or scanned fact is about.
	Subject string
}

// Strategy is the unit passed between the selector and the engine.
type Strategy struct {
	Type           Type
	Classification classification.Classification
	Plan           Plan
}
