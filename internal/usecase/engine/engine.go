// Package engine executes a selected strategy against the vector stores
// and the live scan computer, with per-phase timing, internal rerouting
// and a single semantic-search fallback on hard failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/domain"
	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	"github.com/datapilot-ai/datapilot/internal/domain/query"
	domstrat "github.com/datapilot-ai/datapilot/internal/domain/strategy"
	"github.com/datapilot-ai/datapilot/internal/metrics"
	"github.com/datapilot-ai/datapilot/internal/usecase/scan"
)

const (
	defaultTopK           = 5
	defaultScoreThreshold = 0.7
)

// DocumentSearcher searches the document collection of a source.
type DocumentSearcher interface {
	Search(ctx context.Context, sourceID string, vector []float32, conditions map[string]string, limit int) ([]query.Record, error)
}

// AggregateSearcher searches the aggregation collection of a source.
type AggregateSearcher interface {
	Search(ctx context.Context, sourceID string, vector []float32, kind aggregate.Kind, subject string, limit int) ([]aggregate.Scored, error)
}

// Scanner computes aggregations live from source rows.
type Scanner interface {
	ComputeSubject(ctx context.Context, sourceID string, kind aggregate.Kind, subject string, opts scan.Options) (float64, error)
	ComputeFiltered(ctx context.Context, sourceID string, fn aggregate.Function, target string, conditions map[string]string, opts scan.Options) (float64, int, error)
}

// Options tunes one execution.
type Options struct {
	// SourceID is required.
	SourceID string
	// Limit caps retrieved documents; zero means the engine default.
	Limit int
	// Table overrides the source's default table for scan strategies.
	Table string
}

// Engine runs strategies.
type Engine struct {
	docs    DocumentSearcher
	aggs    AggregateSearcher
	scanner Scanner
	embed   domain.Embedder
	logger  *zap.Logger

	topK           int
	scoreThreshold float64
}

// New creates an engine with default retrieval settings.
func New(docs DocumentSearcher, aggs AggregateSearcher, scanner Scanner, embed domain.Embedder, logger *zap.Logger) *Engine {
	return &Engine{
		docs:           docs,
		aggs:           aggs,
		scanner:        scanner,
		embed:          embed,
		logger:         logger,
		topK:           defaultTopK,
		scoreThreshold: defaultScoreThreshold,
	}
}

// WithTopK overrides the default document limit.
func (e *Engine) WithTopK(k int) *Engine {
	if k > 0 {
		e.topK = k
	}
	return e
}

// WithScoreThreshold overrides the minimum similarity score a precomputed
// fact must reach before it is trusted.
func (e *Engine) WithScoreThreshold(t float64) *Engine {
	if t > 0 {
		e.scoreThreshold = t
	}
	return e
}

// Execute runs the strategy and always returns a result whose details
// record what actually happened. A result with FallbackUsed set carries
// the fallback's records and the original failure message; an error is
// returned only when the fallback itself fails or the context is done.
func (e *Engine) Execute(ctx context.Context, text string, strat domstrat.Strategy, opts Options) (query.Result, error) {
	if opts.SourceID == "" {
		return query.Result{}, domain.ErrSourceRequired
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = e.topK
	}

	start := time.Now()
	timings := map[string]int64{}

	res, err := e.run(ctx, text, strat, opts, limit, timings)
	if err != nil {
		if ctx.Err() != nil {
			// A canceled context fails the whole query; retrying
			// with another strategy would race the same deadline.
			metrics.QueryRequestsTotal.WithLabelValues(string(strat.Type), "failed").Inc()
			return query.Result{}, err
		}

		e.logger.Warn("strategy failed, falling back to semantic search",
			zap.String("strategy", string(strat.Type)),
			zap.String("source_id", opts.SourceID),
			zap.Error(err),
		)
		metrics.QueryFallbacksTotal.Inc()

		records, fbErr := e.searchDocuments(ctx, text, opts.SourceID, nil, limit, timings)
		if fbErr != nil {
			metrics.QueryRequestsTotal.WithLabelValues(string(strat.Type), "failed").Inc()
			return query.Result{}, fmt.Errorf("fallback semantic search: %w", fbErr)
		}
		res = query.Result{
			Records: records,
			Details: query.Details{
				Strategy:     domstrat.TypeSemanticSearch,
				FallbackUsed: true,
				Error:        err.Error(),
			},
		}
	}

	timings[query.PhaseTotal] = time.Since(start).Milliseconds()
	res.Details.Timings = timings
	res.Details.Confidence = strat.Classification.Confidence

	for phase, ms := range timings {
		metrics.QueryPhaseDuration.WithLabelValues(phase).Observe(float64(ms) / 1000)
	}
	metrics.QueryRequestsTotal.WithLabelValues(string(res.Details.Strategy), "ok").Inc()
	return res, nil
}

func (e *Engine) run(ctx context.Context, text string, strat domstrat.Strategy, opts Options, limit int, timings map[string]int64) (query.Result, error) {
	switch strat.Type {
	case domstrat.TypeSemanticSearch:
		records, err := e.searchDocuments(ctx, text, opts.SourceID, nil, limit, timings)
		if err != nil {
			return query.Result{}, err
		}
		return query.Result{
			Records: records,
			Details: query.Details{Strategy: domstrat.TypeSemanticSearch},
		}, nil

	case domstrat.TypeMetadataFilter:
		records, err := e.searchDocuments(ctx, text, opts.SourceID, strat.Plan.Conditions, limit, timings)
		if err != nil {
			return query.Result{}, err
		}
		return query.Result{
			Records: records,
			Details: query.Details{Strategy: domstrat.TypeMetadataFilter},
		}, nil

	case domstrat.TypePrecomputedAggregation:
		return e.runPrecomputed(ctx, text, strat, opts, timings)

	case domstrat.TypeFullScanAggregation:
		return e.runFullScan(ctx, strat, opts, timings)

	case domstrat.TypeHybrid:
		return e.runHybrid(ctx, strat, opts, timings)

	default:
		return query.Result{}, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, strat.Type)
	}
}

// runPrecomputed looks up the stored fact. A miss or a low-scoring best
// hit reroutes to a live full scan; that is an internal reroute, not a
// fallback, and the result says so.
func (e *Engine) runPrecomputed(ctx context.Context, text string, strat domstrat.Strategy, opts Options, timings map[string]int64) (query.Result, error) {
	vector, err := e.embedQuery(ctx, text, timings)
	if err != nil {
		return query.Result{}, err
	}

	searchStart := time.Now()
	hits, err := e.aggs.Search(ctx, opts.SourceID, vector, strat.Classification.Kind, strat.Plan.Subject, 1)
	timings[query.PhaseSearch] += time.Since(searchStart).Milliseconds()
	if err != nil {
		return query.Result{}, fmt.Errorf("search aggregations: %w", err)
	}

	if len(hits) > 0 && hits[0].Score >= e.scoreThreshold {
		best := hits[0]
		return query.Result{
			Records: []query.Record{{
				ID:      best.ID(),
				Score:   best.Score,
				Content: best.Description,
			}},
			Aggregate: &query.AggregateValue{
				Kind:        best.Kind,
				Subject:     best.Subject,
				Value:       best.Value,
				Description: best.Description,
			},
			Details: query.Details{Strategy: domstrat.TypePrecomputedAggregation},
		}, nil
	}

	score := 0.0
	if len(hits) > 0 {
		score = hits[0].Score
	}
	e.logger.Info("precomputed hit below threshold, rerouting to full scan",
		zap.String("source_id", opts.SourceID),
		zap.String("kind", string(strat.Classification.Kind)),
		zap.Float64("score", score),
		zap.Float64("threshold", e.scoreThreshold),
	)
	metrics.QueryReroutesTotal.Inc()

	res, err := e.runFullScan(ctx, strat, opts, timings)
	if err != nil {
		return query.Result{}, err
	}
	res.Details.Rerouted = true
	return res, nil
}

// runFullScan computes the value live. Sources that cannot support the
// computation produce a valid "not computed" result instead of an error.
func (e *Engine) runFullScan(ctx context.Context, strat domstrat.Strategy, opts Options, timings map[string]int64) (query.Result, error) {
	kind := strat.Classification.Kind
	if kind == "" {
		return notComputed(domstrat.TypeFullScanAggregation), nil
	}

	computeStart := time.Now()
	value, err := e.scanner.ComputeSubject(ctx, opts.SourceID, kind, strat.Plan.Subject, scan.Options{Table: opts.Table})
	timings[query.PhaseCompute] += time.Since(computeStart).Milliseconds()
	if err != nil {
		if errors.Is(err, domain.ErrScanUnsupported) || errors.Is(err, domain.ErrColumnNotResolved) {
			e.logger.Warn("full scan not supported for source",
				zap.String("source_id", opts.SourceID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			return notComputed(domstrat.TypeFullScanAggregation), nil
		}
		return query.Result{}, fmt.Errorf("compute aggregation: %w", err)
	}

	return query.Result{
		Aggregate: &query.AggregateValue{
			Kind:        kind,
			Subject:     strat.Plan.Subject,
			Value:       value,
			Description: kind.Describe(strat.Plan.Subject, value),
		},
		Details: query.Details{Strategy: domstrat.TypeFullScanAggregation},
	}, nil
}

// runHybrid filters rows by the plan's conditions and reduces the target
// field live.
func (e *Engine) runHybrid(ctx context.Context, strat domstrat.Strategy, opts Options, timings map[string]int64) (query.Result, error) {
	fn := strat.Classification.Function
	if fn == "" {
		return notComputed(domstrat.TypeHybrid), nil
	}

	computeStart := time.Now()
	value, matched, err := e.scanner.ComputeFiltered(ctx, opts.SourceID, fn, strat.Plan.TargetField, strat.Plan.Conditions, scan.Options{Table: opts.Table})
	timings[query.PhaseCompute] += time.Since(computeStart).Milliseconds()
	if err != nil {
		if errors.Is(err, domain.ErrScanUnsupported) || errors.Is(err, domain.ErrColumnNotResolved) {
			e.logger.Warn("hybrid scan not supported for source",
				zap.String("source_id", opts.SourceID),
				zap.Error(err),
			)
			return notComputed(domstrat.TypeHybrid), nil
		}
		return query.Result{}, fmt.Errorf("compute filtered aggregation: %w", err)
	}

	subject := strat.Plan.Subject
	if subject == "" {
		subject = "the matching records"
	}
	return query.Result{
		Aggregate: &query.AggregateValue{
			Kind:        strat.Classification.Kind,
			Subject:     strat.Plan.Subject,
			Value:       value,
			Description: fmt.Sprintf("The %s over %s is %.2f (%d rows matched).", fn, subject, value, matched),
		},
		Details: query.Details{Strategy: domstrat.TypeHybrid},
	}, nil
}

func (e *Engine) searchDocuments(ctx context.Context, text, sourceID string, conditions map[string]string, limit int, timings map[string]int64) ([]query.Record, error) {
	vector, err := e.embedQuery(ctx, text, timings)
	if err != nil {
		return nil, err
	}

	searchStart := time.Now()
	records, err := e.docs.Search(ctx, sourceID, vector, conditions, limit)
	timings[query.PhaseSearch] += time.Since(searchStart).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return records, nil
}

func (e *Engine) embedQuery(ctx context.Context, text string, timings map[string]int64) ([]float32, error) {
	embedStart := time.Now()
	res, err := e.embed.Embed(ctx, text)
	timings[query.PhaseEmbed] += time.Since(embedStart).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return res.Embedding, nil
}

func notComputed(t domstrat.Type) query.Result {
	return query.Result{
		NotComputed: true,
		Details:     query.Details{Strategy: t},
	}
}
