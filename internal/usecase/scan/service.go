// Package scan computes aggregations live from source data. It backs both
// the aggregation store builder (per-subject precomputation) and the
// execution engine's full-scan and hybrid paths.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/connector"
	"github.com/datapilot-ai/datapilot/internal/connector/columns"
	"github.com/datapilot-ai/datapilot/internal/domain"
	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
)

// DateRange bounds a computation to rows inside [From, To).
type DateRange struct {
	From time.Time
	To   time.Time
}

// Options tunes one computation.
type Options struct {
	// Table overrides the source's default table.
	Table string
	// DateRange restricts rows by the resolved date column, when present.
	DateRange *DateRange
}

// Service computes aggregate values by scanning source rows.
type Service struct {
	conn     connector.Connector
	resolver columns.Resolver
	logger   *zap.Logger
}

// New creates a scan service.
func New(conn connector.Connector, resolver columns.Resolver, logger *zap.Logger) *Service {
	return &Service{conn: conn, resolver: resolver, logger: logger}
}

// ComputeSubject computes the value of one (kind, subject) pair. Missing
// required columns surface as domain.ErrColumnNotResolved so callers can
// choose between "store zero" (builder) and "not computed" (engine). Empty
// row matches yield 0.
func (s *Service) ComputeSubject(
	ctx context.Context, sourceID string,
	kind aggregate.Kind, subject string, opts Options,
) (float64, error) {
	mapping, rows, err := s.load(ctx, sourceID, opts)
	if err != nil {
		return 0, err
	}

	subjectCol, err := subjectColumn(kind, mapping)
	if err != nil {
		return 0, err
	}
	if err := checkValueColumn(kind, mapping); err != nil {
		return 0, err
	}

	var sum, count float64
	fn := kind.Function()
	for _, row := range rows {
		if !subjectMatches(kind, row, subjectCol, subject) {
			continue
		}
		if !s.inDateRange(row, mapping, opts.DateRange) {
			continue
		}
		sum += valueForRow(kind, mapping, row)
		count++
	}

	if count == 0 {
		s.logger.Debug("no rows matched subject",
			zap.String("source_id", sourceID),
			zap.String("kind", string(kind)),
			zap.String("subject", subject),
		)
		return 0, nil
	}

	switch fn {
	case aggregate.FuncAvg:
		return sum / count, nil
	case aggregate.FuncCount:
		return count, nil
	default:
		return sum, nil
	}
}

// ComputeFiltered reduces the target field with fn over rows matching all
// equality conditions. Returns the value and the number of matched rows.
func (s *Service) ComputeFiltered(
	ctx context.Context, sourceID string,
	fn aggregate.Function, target string,
	conditions map[string]string, opts Options,
) (float64, int, error) {
	if !fn.IsValid() {
		return 0, 0, fmt.Errorf("%w: no aggregation function", domain.ErrScanUnsupported)
	}

	mapping, rows, err := s.load(ctx, sourceID, opts)
	if err != nil {
		return 0, 0, err
	}

	condCols := make(map[string]string, len(conditions))
	for field, value := range conditions {
		col := logicalColumn(mapping, field)
		if col == "" {
			return 0, 0, fmt.Errorf("%w: no column for filter field %q", domain.ErrColumnNotResolved, field)
		}
		condCols[col] = value
	}

	valueCol := logicalColumn(mapping, target)
	if fn != aggregate.FuncCount && valueCol == "" && target != "revenue" {
		return 0, 0, fmt.Errorf("%w: no column for target field %q", domain.ErrColumnNotResolved, target)
	}
	if target == "revenue" && mapping.Quantity == "" && mapping.Price == "" {
		return 0, 0, fmt.Errorf("%w: no revenue columns", domain.ErrColumnNotResolved)
	}

	var sum, count float64
	var best float64
	haveBest := false
	for _, row := range rows {
		if !conditionsMatch(row, condCols) {
			continue
		}
		if !s.inDateRange(row, mapping, opts.DateRange) {
			continue
		}

		var v float64
		if target == "revenue" {
			v = revenueValue(mapping, row)
		} else if valueCol != "" {
			v, _ = toFloat(row[valueCol])
		}

		count++
		sum += v
		if !haveBest || (fn == aggregate.FuncMax && v > best) || (fn == aggregate.FuncMin && v < best) {
			best = v
			haveBest = true
		}
	}

	if count == 0 {
		return 0, 0, nil
	}

	switch fn {
	case aggregate.FuncAvg:
		return sum / count, int(count), nil
	case aggregate.FuncCount:
		return count, int(count), nil
	case aggregate.FuncMax, aggregate.FuncMin:
		return best, int(count), nil
	default:
		return sum, int(count), nil
	}
}

// load resolves the schema and fetches rows, translating connector
// sentinels into scan-level ones.
func (s *Service) load(ctx context.Context, sourceID string, opts Options) (columns.Mapping, []connector.Row, error) {
	cols, err := s.conn.DescribeColumns(ctx, sourceID, opts.Table)
	if err != nil {
		return columns.Mapping{}, nil, translate(err, "describe columns")
	}
	mapping := s.resolver.Resolve(cols)

	table := opts.Table
	if table == "" {
		table = sourceID
	}
	rows, err := s.conn.Query(ctx, sourceID, "SELECT * FROM "+table)
	if err != nil {
		return columns.Mapping{}, nil, translate(err, "query rows")
	}
	return mapping, rows, nil
}

func translate(err error, op string) error {
	if errors.Is(err, connector.ErrPreviewNotFound) || errors.Is(err, connector.ErrNoSubjectColumn) {
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrScanUnsupported)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func subjectColumn(kind aggregate.Kind, mapping columns.Mapping) (string, error) {
	switch kind {
	case aggregate.KindTotalByCategory, aggregate.KindCountByCategory:
		if mapping.Category == "" {
			return "", fmt.Errorf("%w: no category column", domain.ErrColumnNotResolved)
		}
		return mapping.Category, nil
	case aggregate.KindTotalByDate:
		if mapping.Date == "" {
			return "", fmt.Errorf("%w: no date column", domain.ErrColumnNotResolved)
		}
		return mapping.Date, nil
	default:
		if mapping.Product == "" {
			return "", fmt.Errorf("%w: no product column", domain.ErrColumnNotResolved)
		}
		return mapping.Product, nil
	}
}

func checkValueColumn(kind aggregate.Kind, mapping columns.Mapping) error {
	switch kind {
	case aggregate.KindAveragePriceByProduct:
		if mapping.Price == "" {
			return fmt.Errorf("%w: no price column", domain.ErrColumnNotResolved)
		}
	case aggregate.KindCountByProduct, aggregate.KindCountByCategory:
		// counting needs no value column
	default:
		if mapping.Quantity == "" && mapping.Price == "" {
			return fmt.Errorf("%w: no quantity or price column", domain.ErrColumnNotResolved)
		}
	}
	return nil
}

// subjectMatches compares the row's subject cell against the wanted subject.
// Date subjects match by token containment ("2024", "january"); everything
// else matches by normalized identity.
func subjectMatches(kind aggregate.Kind, row connector.Row, subjectCol, subject string) bool {
	cell := fmt.Sprint(row[subjectCol])
	if cell == "" || cell == "<nil>" {
		return false
	}
	if kind == aggregate.KindTotalByDate {
		return strings.Contains(strings.ToLower(cell), strings.ToLower(strings.TrimSpace(subject)))
	}
	return aggregate.SubjectID(cell) == aggregate.SubjectID(subject)
}

func valueForRow(kind aggregate.Kind, mapping columns.Mapping, row connector.Row) float64 {
	switch kind {
	case aggregate.KindAveragePriceByProduct:
		v, _ := toFloat(row[mapping.Price])
		return v
	case aggregate.KindCountByProduct, aggregate.KindCountByCategory:
		return 1
	default:
		return revenueValue(mapping, row)
	}
}

// revenueValue is quantity times price when both resolve, otherwise
// whichever numeric column is present.
func revenueValue(mapping columns.Mapping, row connector.Row) float64 {
	qty, hasQty := toFloat(row[mapping.Quantity])
	price, hasPrice := toFloat(row[mapping.Price])
	switch {
	case hasQty && hasPrice:
		return qty * price
	case hasPrice:
		return price
	case hasQty:
		return qty
	default:
		return 0
	}
}

func logicalColumn(mapping columns.Mapping, field string) string {
	switch field {
	case "product":
		return mapping.Product
	case "category":
		return mapping.Category
	case "date":
		return mapping.Date
	case "price":
		return mapping.Price
	case "quantity":
		return mapping.Quantity
	default:
		return ""
	}
}

func conditionsMatch(row connector.Row, condCols map[string]string) bool {
	for col, want := range condCols {
		cell := fmt.Sprint(row[col])
		if !strings.EqualFold(strings.TrimSpace(cell), strings.TrimSpace(want)) &&
			aggregate.SubjectID(cell) != aggregate.SubjectID(want) {
			return false
		}
	}
	return true
}

func (s *Service) inDateRange(row connector.Row, mapping columns.Mapping, dr *DateRange) bool {
	if dr == nil {
		return true
	}
	if mapping.Date == "" {
		return true
	}
	t, ok := parseTime(row[mapping.Date])
	if !ok {
		return true
	}
	if !dr.From.IsZero() && t.Before(dr.From) {
		return false
	}
	if !dr.To.IsZero() && !t.Before(dr.To) {
		return false
	}
	return true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
