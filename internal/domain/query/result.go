// Package query holds the per-call execution result and its provenance.
package query

import (
	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	"github.com/datapilot-ai/datapilot/internal/domain/strategy"
)

// Timing phase keys recorded by the execution engine.
const (
	PhaseEmbed   = "embed"
	PhaseSearch  = "search"
	PhaseCompute = "compute"
	PhaseTotal   = "total"
)

// Record is one retrieved document.
type Record struct {
	ID      string
	Score   float64
	Content string
	Payload map[string]any
}

// AggregateValue is a numeric answer found or computed during execution.
type AggregateValue struct {
	Kind        aggregate.Kind
	Subject     string
	Value       float64
	Description string
}

// Details is the execution provenance returned with every result.
//
// Rerouted and FallbackUsed are deliberately separate: a confidence re-route
// (precomputed hit below threshold, escalated to a full scan) is expected
// behavior, while FallbackUsed marks a hard execution failure that was
// re-run as semantic search. Only the latter carries Error.
type Details struct {
	Strategy     strategy.Type
	Timings      map[string]int64 // milliseconds per phase
	Confidence   float64
	Rerouted     bool
	FallbackUsed bool
	Error        string
}

// Result is the ephemeral outcome of executing one strategy.
type Result struct {
	Records []Record
	// Aggregate is set when an aggregation strategy produced a value.
	Aggregate *AggregateValue
	// NotComputed marks a valid, non-error "not yet supported" outcome from a
	// live computation path.
	NotComputed bool
	Details     Details
}
