// Package preview implements connector.Connector over cached file previews.
// The upload pipeline (out of scope here) parses uploaded files and caches
// their rows as JSON; this connector serves the same narrow query/describe
// contract as the warehouse connector from that cache.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/connector"
	"github.com/datapilot-ai/datapilot/internal/connector/columns"
	"github.com/datapilot-ai/datapilot/internal/db"
	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
)

// KeyPrefix namespaces preview row cache keys.
const KeyPrefix = "preview:"

// Compile-time check: Connector implements connector.Connector.
var _ connector.Connector = (*Connector)(nil)

// Connector reads cached preview rows from the KV store.
type Connector struct {
	store    db.Store
	resolver columns.Resolver
	logger   *zap.Logger
}

// New creates a preview connector.
func New(store db.Store, resolver columns.Resolver, logger *zap.Logger) *Connector {
	return &Connector{store: store, resolver: resolver, logger: logger}
}

// Key returns the cache key holding a source's preview rows.
func Key(sourceID string) string {
	return KeyPrefix + sourceID
}

func (c *Connector) rows(ctx context.Context, sourceID string) ([]connector.Row, error) {
	data, err := c.store.Get(ctx, Key(sourceID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", connector.ErrPreviewNotFound, sourceID)
		}
		return nil, fmt.Errorf("read preview %s: %w", sourceID, err)
	}

	var rows []connector.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode preview %s: %w", sourceID, err)
	}
	return rows, nil
}

// Query returns all cached rows. The statement is ignored: preview sources
// have no query engine, so reductions happen at the caller.
func (c *Connector) Query(ctx context.Context, sourceID, _ string) ([]connector.Row, error) {
	return c.rows(ctx, sourceID)
}

// DescribeColumns infers the schema from the first cached row.
func (c *Connector) DescribeColumns(ctx context.Context, sourceID, _ string) ([]connector.Column, error) {
	rows, err := c.rows(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]connector.Column, len(names))
	for i, name := range names {
		cols[i] = connector.Column{Name: name, Type: inferType(rows[0][name])}
	}
	return cols, nil
}

// ListSubjects returns distinct values of the resolved product column.
func (c *Connector) ListSubjects(ctx context.Context, sourceID string) ([]connector.Subject, error) {
	rows, err := c.rows(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	cols, err := c.DescribeColumns(ctx, sourceID, "")
	if err != nil {
		return nil, err
	}

	mapping := c.resolver.Resolve(cols)
	if mapping.Product == "" {
		return nil, fmt.Errorf("%w: no product column in source %s", connector.ErrNoSubjectColumn, sourceID)
	}

	seen := make(map[string]struct{})
	var subjects []connector.Subject
	for _, row := range rows {
		name, _ := row[mapping.Product].(string)
		if name == "" {
			continue
		}
		id := aggregate.SubjectID(name)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		category := ""
		if mapping.Category != "" {
			category, _ = row[mapping.Category].(string)
		}
		subjects = append(subjects, connector.Subject{ID: id, Name: name, Category: category})
	}
	return subjects, nil
}

// CacheRows stores preview rows for a source. Used by the upload pipeline
// and tests.
func (c *Connector) CacheRows(ctx context.Context, sourceID string, rows []connector.Row) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode preview %s: %w", sourceID, err)
	}
	if err := c.store.Set(ctx, Key(sourceID), data); err != nil {
		return fmt.Errorf("cache preview %s: %w", sourceID, err)
	}
	return nil
}

func inferType(v any) string {
	switch v.(type) {
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "string"
	}
}
