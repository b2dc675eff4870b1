// Package answer holds the orchestrator's final response shape.
package answer

import (
	"time"

	"github.com/datapilot-ai/datapilot/internal/domain/classification"
	"github.com/datapilot-ai/datapilot/internal/domain/query"
)

// Source is a normalized evidence document included in the answer.
type Source struct {
	ID      string
	Content string
	Score   float64
}

// Metadata carries observability data about how the answer was produced.
type Metadata struct {
	Classification classification.Classification
	Model          string
	TotalTokens    int
	AnsweredAt     time.Time
}

// Answer is the orchestrator's response: generated text plus provenance.
type Answer struct {
	Text     string
	Sources  []Source
	Details  query.Details
	Metadata Metadata
}
