// Package connector defines the narrow query/describe contract through which
// data sources are consumed, whether the backing store is a SQL warehouse or
// a cached file preview.
package connector

import "context"

// Subject is a candidate aggregation subject (e.g. a product).
type Subject struct {
	ID       string
	Name     string
	Category string
}

// Column describes one column of a source table.
type Column struct {
	Name string
	Type string
}

// Row is one source record keyed by column name.
type Row = map[string]any

// Connector is the uniform data source contract.
type Connector interface {
	// ListSubjects returns the candidate subjects available from the source.
	ListSubjects(ctx context.Context, sourceID string) ([]Subject, error)
	// DescribeColumns returns the source's column schema. An empty table name
	// selects the connector's default table.
	DescribeColumns(ctx context.Context, sourceID, table string) ([]Column, error)
	// Query executes a source-appropriate read and returns raw rows. The
	// statement is advisory: SQL backends execute it, preview backends return
	// their cached rows.
	Query(ctx context.Context, sourceID, statement string) ([]Row, error)
}
