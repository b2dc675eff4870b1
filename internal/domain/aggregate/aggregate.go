// Package aggregate holds the precomputed numeric fact domain: aggregation
// kinds, functions, and the stored fact itself.
package aggregate

import "time"

// Aggregation is a precomputed numeric fact retrievable by similarity search
// over its natural-language description.
type Aggregation struct {
	SourceID    string
	Kind        Kind
	Subject     string
	SubjectID   string
	Value       float64
	Description string
	Vector      []float32
	ComputedAt  time.Time
}

// ID returns the deterministic storage key for the fact.
func (a Aggregation) ID() string {
	return PointID(a.SourceID, a.Kind, a.SubjectID)
}

// Scored pairs an aggregation with its similarity score from a vector lookup.
type Scored struct {
	Aggregation
	Score float64
}
