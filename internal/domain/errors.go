package domain

import "errors"

var (
	// ErrSourceRequired signals a call that needs a data source scope without one.
	ErrSourceRequired = errors.New("data source id is required")
	// ErrSourceNotFound signals a missing data source.
	ErrSourceNotFound = errors.New("data source not found")
	// ErrRebuildInProgress signals a concurrent rebuild for the same source.
	ErrRebuildInProgress = errors.New("aggregation rebuild already in progress")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrScanUnsupported signals a live aggregation the source cannot compute.
	ErrScanUnsupported = errors.New("live aggregation not supported for this source")
	// ErrColumnNotResolved signals that the column heuristics found no usable column.
	ErrColumnNotResolved = errors.New("required column not resolved")
	// ErrUnknownStrategy signals a forced strategy outside the closed set.
	ErrUnknownStrategy = errors.New("unknown execution strategy")
)
