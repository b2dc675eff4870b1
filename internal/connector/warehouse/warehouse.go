// Package warehouse implements connector.Connector over a SQL warehouse via
// database/sql. Individual warehouse specifics stay behind the driver; this
// connector only issues schema reads, distinct-subject listings, and row
// scans.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/connector"
	"github.com/datapilot-ai/datapilot/internal/connector/columns"
	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
)

// Compile-time check: Connector implements connector.Connector.
var _ connector.Connector = (*Connector)(nil)

// Connector reads from a SQL warehouse.
type Connector struct {
	db       *sql.DB
	table    string
	resolver columns.Resolver
	logger   *zap.Logger
}

// New creates a warehouse connector. table is the default table queried for
// sources that do not carry their own; when empty, the source id is used as
// the table name.
func New(db *sql.DB, table string, resolver columns.Resolver, logger *zap.Logger) *Connector {
	return &Connector{db: db, table: table, resolver: resolver, logger: logger}
}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (c *Connector) tableFor(sourceID, table string) (string, error) {
	name := table
	if name == "" {
		name = c.table
	}
	if name == "" {
		name = sourceID
	}
	if !identRegex.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

// DescribeColumns returns the table schema using a zero-row probe.
func (c *Connector) DescribeColumns(ctx context.Context, sourceID, table string) ([]connector.Column, error) {
	name, err := c.tableFor(sourceID, table)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", name))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", name, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types for %s: %w", name, err)
	}

	cols := make([]connector.Column, len(types))
	for i, t := range types {
		cols[i] = connector.Column{Name: t.Name(), Type: t.DatabaseTypeName()}
	}
	return cols, rows.Err()
}

// ListSubjects returns distinct values of the resolved product column,
// with categories when a category column resolves too.
func (c *Connector) ListSubjects(ctx context.Context, sourceID string) ([]connector.Subject, error) {
	cols, err := c.DescribeColumns(ctx, sourceID, "")
	if err != nil {
		return nil, err
	}

	mapping := c.resolver.Resolve(cols)
	if mapping.Product == "" {
		return nil, fmt.Errorf("%w: no product column in source %s", connector.ErrNoSubjectColumn, sourceID)
	}

	name, err := c.tableFor(sourceID, "")
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT DISTINCT %s FROM %s", mapping.Product, name)
	if mapping.Category != "" {
		stmt = fmt.Sprintf("SELECT DISTINCT %s, %s FROM %s", mapping.Product, mapping.Category, name)
	}

	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list subjects from %s: %w", name, err)
	}
	defer rows.Close()

	var subjects []connector.Subject
	for rows.Next() {
		var product sql.NullString
		var category sql.NullString
		if mapping.Category != "" {
			err = rows.Scan(&product, &category)
		} else {
			err = rows.Scan(&product)
		}
		if err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		if !product.Valid || product.String == "" {
			continue
		}
		subjects = append(subjects, connector.Subject{
			ID:       aggregate.SubjectID(product.String),
			Name:     product.String,
			Category: category.String,
		})
	}
	return subjects, rows.Err()
}

// Query executes the statement and returns generic rows.
func (c *Connector) Query(ctx context.Context, sourceID, statement string) ([]connector.Row, error) {
	rows, err := c.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("query source %s: %w", sourceID, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []connector.Row
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(connector.Row, len(names))
		for i, name := range names {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[name] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
