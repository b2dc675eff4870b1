// Package aggregate rebuilds the precomputed aggregation store for a data
// source: list subjects, compute each value, describe it in natural
// language, embed the descriptions and upsert the facts.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/datapilot-ai/datapilot/internal/connector"
	"github.com/datapilot-ai/datapilot/internal/domain"
	domagg "github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	"github.com/datapilot-ai/datapilot/internal/metrics"
	"github.com/datapilot-ai/datapilot/internal/usecase/scan"
)

const defaultConcurrency = 4

// Store persists aggregation facts.
type Store interface {
	EnsureCollection(ctx context.Context, sourceID string) error
	UpsertBatch(ctx context.Context, sourceID string, aggs []domagg.Aggregation) error
}

// SubjectLister enumerates the candidate subjects of a source.
type SubjectLister interface {
	ListSubjects(ctx context.Context, sourceID string) ([]connector.Subject, error)
}

// Computer computes one subject's value.
type Computer interface {
	ComputeSubject(ctx context.Context, sourceID string, kind domagg.Kind, subject string, opts scan.Options) (float64, error)
}

// Options tunes one rebuild.
type Options struct {
	// Kinds restricts the rebuild; empty means every supported kind.
	Kinds []domagg.Kind
	// Table overrides the source's default table.
	Table string
	// DateRange restricts the computed values to rows inside the range.
	DateRange *scan.DateRange
}

// SubjectError records one subject that failed without stopping the batch.
type SubjectError struct {
	Kind    domagg.Kind `json:"kind"`
	Subject string      `json:"subject"`
	Err     string      `json:"error"`
}

// Report summarizes a rebuild.
type Report struct {
	Generated int                 `json:"generated"`
	PerKind   map[domagg.Kind]int `json:"per_kind"`
	Errors    []SubjectError      `json:"errors,omitempty"`
}

// Builder rebuilds aggregation stores. At most one rebuild runs per
// source at a time; concurrent attempts are rejected.
type Builder struct {
	store    Store
	subjects SubjectLister
	computer Computer
	embed    domain.Embedder
	logger   *zap.Logger

	concurrency int

	mu     sync.Mutex
	active map[string]struct{}
}

// New creates a builder.
func New(store Store, subjects SubjectLister, computer Computer, embed domain.Embedder, logger *zap.Logger) *Builder {
	return &Builder{
		store:       store,
		subjects:    subjects,
		computer:    computer,
		embed:       embed,
		logger:      logger,
		concurrency: defaultConcurrency,
		active:      make(map[string]struct{}),
	}
}

// WithConcurrency bounds the per-subject worker pool.
func (b *Builder) WithConcurrency(n int) *Builder {
	if n > 0 {
		b.concurrency = n
	}
	return b
}

// Rebuild recomputes the aggregation facts of one source. Rebuilding the
// same source twice produces the same point set: point identity is
// derived from (source, kind, subject), so reruns overwrite in place.
func (b *Builder) Rebuild(ctx context.Context, sourceID string, opts Options) (Report, error) {
	if sourceID == "" {
		return Report{}, domain.ErrSourceRequired
	}
	if err := b.acquire(sourceID); err != nil {
		return Report{}, err
	}
	defer b.release(sourceID)

	start := time.Now()
	defer func() {
		metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	}()

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = domagg.All()
	}

	if err := b.store.EnsureCollection(ctx, sourceID); err != nil {
		return Report{}, fmt.Errorf("ensure collection: %w", err)
	}

	subjects, err := b.subjects.ListSubjects(ctx, sourceID)
	if err != nil {
		return Report{}, fmt.Errorf("list subjects: %w", err)
	}

	report := Report{PerKind: make(map[domagg.Kind]int, len(kinds))}
	var facts []domagg.Aggregation

	for _, kind := range kinds {
		if !kind.IsValid() {
			report.Errors = append(report.Errors, SubjectError{
				Kind: kind,
				Err:  fmt.Sprintf("unknown aggregation kind %q", kind),
			})
			continue
		}

		targets := subjectsFor(kind, subjects)
		if len(targets) == 0 {
			b.logger.Warn("no subjects for kind, skipping",
				zap.String("source_id", sourceID),
				zap.String("kind", string(kind)),
			)
			report.PerKind[kind] = 0
			continue
		}

		kindFacts, kindErrs := b.computeKind(ctx, sourceID, kind, targets, opts)
		facts = append(facts, kindFacts...)
		report.Errors = append(report.Errors, kindErrs...)
		report.PerKind[kind] = len(kindFacts)
	}

	if len(facts) == 0 {
		report.Generated = 0
		b.logger.Info("rebuild produced no facts", zap.String("source_id", sourceID))
		return report, nil
	}

	if err := b.embedFacts(ctx, facts); err != nil {
		return report, fmt.Errorf("embed descriptions: %w", err)
	}
	if err := b.store.UpsertBatch(ctx, sourceID, facts); err != nil {
		return report, fmt.Errorf("upsert aggregations: %w", err)
	}

	report.Generated = len(facts)
	b.logger.Info("rebuild finished",
		zap.String("source_id", sourceID),
		zap.Int("generated", report.Generated),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}

// computeKind computes every subject of one kind with a bounded worker
// pool. A failing subject is recorded and skipped; a missing column
// stores a zero value per the warehouse convention.
func (b *Builder) computeKind(
	ctx context.Context, sourceID string,
	kind domagg.Kind, targets []connector.Subject, opts Options,
) ([]domagg.Aggregation, []SubjectError) {
	var (
		mu    sync.Mutex
		facts []domagg.Aggregation
		errs  []SubjectError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	now := time.Now().UTC()
	for _, target := range targets {
		g.Go(func() error {
			value, err := b.computer.ComputeSubject(gctx, sourceID, kind, target.Name, scan.Options{
				Table:     opts.Table,
				DateRange: opts.DateRange,
			})
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrColumnNotResolved):
				b.logger.Warn("value column not resolved, storing zero",
					zap.String("source_id", sourceID),
					zap.String("kind", string(kind)),
					zap.String("subject", target.Name),
				)
				value = 0
			default:
				metrics.RebuildSubjectsTotal.WithLabelValues(string(kind), "error").Inc()
				mu.Lock()
				errs = append(errs, SubjectError{Kind: kind, Subject: target.Name, Err: err.Error()})
				mu.Unlock()
				return nil
			}

			metrics.RebuildSubjectsTotal.WithLabelValues(string(kind), "ok").Inc()
			mu.Lock()
			facts = append(facts, domagg.Aggregation{
				SourceID:    sourceID,
				Kind:        kind,
				Subject:     target.Name,
				SubjectID:   target.ID,
				Value:       value,
				Description: kind.Describe(target.Name, value),
				ComputedAt:  now,
			})
			mu.Unlock()
			return nil
		})
	}
	// Workers report per-subject failures through the report, never
	// through the group.
	_ = g.Wait()

	return facts, errs
}

func (b *Builder) embedFacts(ctx context.Context, facts []domagg.Aggregation) error {
	texts := make([]string, len(facts))
	for i, f := range facts {
		texts[i] = f.Description
	}

	var (
		res domain.BatchEmbeddingResult
		err error
	)
	if batcher, ok := b.embed.(domain.BatchEmbedder); ok {
		res, err = batcher.BatchEmbed(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, b.embed, texts)
	}
	if err != nil {
		return err
	}
	if len(res.Embeddings) != len(facts) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(res.Embeddings), len(facts))
	}
	for i := range facts {
		facts[i].Vector = res.Embeddings[i]
	}
	return nil
}

// subjectsFor maps a kind onto its subject set. Product kinds use the
// listing as is, category kinds collapse it to distinct categories, and
// date kinds have no listable subjects so they stay live-scan only.
func subjectsFor(kind domagg.Kind, subjects []connector.Subject) []connector.Subject {
	switch kind {
	case domagg.KindTotalByCategory, domagg.KindCountByCategory:
		seen := map[string]struct{}{}
		var out []connector.Subject
		for _, s := range subjects {
			if s.Category == "" {
				continue
			}
			id := domagg.SubjectID(s.Category)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, connector.Subject{ID: id, Name: s.Category})
		}
		return out
	case domagg.KindTotalByDate:
		return nil
	default:
		return subjects
	}
}

func (b *Builder) acquire(sourceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, busy := b.active[sourceID]; busy {
		return fmt.Errorf("source %q: %w", sourceID, domain.ErrRebuildInProgress)
	}
	b.active[sourceID] = struct{}{}
	return nil
}

func (b *Builder) release(sourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.active, sourceID)
}
