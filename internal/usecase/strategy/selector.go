// Package strategy selects the execution strategy for a classified
// question. The only I/O is an existence probe against the aggregation
// store, and only when the classification points at a precomputed kind.
package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/domain"
	"github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	"github.com/datapilot-ai/datapilot/internal/domain/classification"
	domstrat "github.com/datapilot-ai/datapilot/internal/domain/strategy"
)

// Classifier produces a classification for a question.
type Classifier interface {
	Classify(text string) classification.Classification
}

// AggregateFinder checks whether a precomputed fact exists.
type AggregateFinder interface {
	Exists(ctx context.Context, sourceID string, kind aggregate.Kind, subject string) (bool, error)
}

// Options tunes one selection.
type Options struct {
	// SourceID scopes the aggregation store lookup.
	SourceID string
	// Force bypasses the decision table. The question is still
	// classified so downstream consumers keep their entity context.
	Force domstrat.Type
}

// Selector picks strategies.
type Selector struct {
	classifier Classifier
	aggs       AggregateFinder
	logger     *zap.Logger
}

// New creates a selector.
func New(classifier Classifier, aggs AggregateFinder, logger *zap.Logger) *Selector {
	return &Selector{classifier: classifier, aggs: aggs, logger: logger}
}

// Select classifies the question and resolves a strategy with a plan.
func (s *Selector) Select(ctx context.Context, text string, opts Options) (domstrat.Strategy, error) {
	cls := s.classifier.Classify(text)

	if opts.Force != "" {
		if !opts.Force.IsValid() {
			return domstrat.Strategy{}, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, opts.Force)
		}
		s.logger.Debug("strategy forced", zap.String("strategy", string(opts.Force)))
		return domstrat.Strategy{
			Type:           opts.Force,
			Classification: cls,
			Plan:           planFor(opts.Force, cls),
		}, nil
	}

	switch cls.Type {
	case classification.TypeAggregation:
		return s.selectAggregation(ctx, cls, opts)
	case classification.TypeFilter:
		return s.selectFilter(cls), nil
	case classification.TypeHybrid:
		return s.selectHybrid(ctx, cls, opts)
	default:
		return semanticStrategy(cls), nil
	}
}

func (s *Selector) selectAggregation(ctx context.Context, cls classification.Classification, opts Options) (domstrat.Strategy, error) {
	if cls.Kind != "" {
		exists, err := s.precomputedExists(ctx, cls, opts)
		if err != nil {
			return domstrat.Strategy{}, err
		}
		if exists {
			return precomputedStrategy(cls), nil
		}
	}
	return fullScanStrategy(cls), nil
}

func (s *Selector) selectFilter(cls classification.Classification) domstrat.Strategy {
	conditions := cls.Entities.Conditions()
	if len(conditions) == 0 {
		// Filter intent with nothing concrete to filter on.
		return semanticStrategy(cls)
	}
	return domstrat.Strategy{
		Type:           domstrat.TypeMetadataFilter,
		Classification: cls,
		Plan:           domstrat.Plan{Conditions: conditions},
	}
}

func (s *Selector) selectHybrid(ctx context.Context, cls classification.Classification, opts Options) (domstrat.Strategy, error) {
	if cls.Kind != "" {
		exists, err := s.precomputedExists(ctx, cls, opts)
		if err != nil {
			return domstrat.Strategy{}, err
		}
		if exists {
			return precomputedStrategy(cls), nil
		}
	}
	return domstrat.Strategy{
		Type:           domstrat.TypeHybrid,
		Classification: cls,
		Plan: domstrat.Plan{
			Conditions:  cls.Entities.Conditions(),
			TargetField: targetFor(cls),
			Subject:     subjectFor(cls),
		},
	}, nil
}

func (s *Selector) precomputedExists(ctx context.Context, cls classification.Classification, opts Options) (bool, error) {
	if opts.SourceID == "" {
		return false, fmt.Errorf("aggregation lookup: %w", domain.ErrSourceRequired)
	}
	subject := subjectFor(cls)
	exists, err := s.aggs.Exists(ctx, opts.SourceID, cls.Kind, subject)
	if err != nil {
		return false, fmt.Errorf("check precomputed aggregation: %w", err)
	}
	s.logger.Debug("precomputed aggregation probed",
		zap.String("source_id", opts.SourceID),
		zap.String("kind", string(cls.Kind)),
		zap.String("subject", subject),
		zap.Bool("exists", exists),
	)
	return exists, nil
}

func planFor(t domstrat.Type, cls classification.Classification) domstrat.Plan {
	switch t {
	case domstrat.TypeMetadataFilter:
		return domstrat.Plan{Conditions: cls.Entities.Conditions()}
	case domstrat.TypePrecomputedAggregation:
		return domstrat.Plan{Subject: subjectFor(cls), TargetField: targetFor(cls)}
	case domstrat.TypeFullScanAggregation:
		return domstrat.Plan{
			Subject:      subjectFor(cls),
			TargetField:  targetFor(cls),
			ParallelScan: subjectFor(cls) != "",
		}
	case domstrat.TypeHybrid:
		return domstrat.Plan{
			Conditions:  cls.Entities.Conditions(),
			TargetField: targetFor(cls),
			Subject:     subjectFor(cls),
		}
	default:
		return domstrat.Plan{}
	}
}

func semanticStrategy(cls classification.Classification) domstrat.Strategy {
	return domstrat.Strategy{Type: domstrat.TypeSemanticSearch, Classification: cls}
}

func precomputedStrategy(cls classification.Classification) domstrat.Strategy {
	return domstrat.Strategy{
		Type:           domstrat.TypePrecomputedAggregation,
		Classification: cls,
		Plan:           domstrat.Plan{Subject: subjectFor(cls), TargetField: targetFor(cls)},
	}
}

func fullScanStrategy(cls classification.Classification) domstrat.Strategy {
	return domstrat.Strategy{
		Type:           domstrat.TypeFullScanAggregation,
		Classification: cls,
		Plan: domstrat.Plan{
			Subject:      subjectFor(cls),
			TargetField:  targetFor(cls),
			ParallelScan: subjectFor(cls) != "",
		},
	}
}

// subjectFor picks the aggregation subject from the extracted entities,
// preferring the most specific one.
func subjectFor(cls classification.Classification) string {
	switch {
	case cls.Entities.Product != "":
		return cls.Entities.Product
	case cls.Entities.Category != "":
		return cls.Entities.Category
	case cls.Entities.Date != "":
		return cls.Entities.Date
	default:
		return ""
	}
}

func targetFor(cls classification.Classification) string {
	switch cls.Function {
	case aggregate.FuncAvg:
		return "price"
	case aggregate.FuncCount:
		return ""
	default:
		return "revenue"
	}
}
