// Package answer composes the full question pipeline: select a strategy,
// execute it, assemble the retrieved evidence into a grounded context and
// generate the final response.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/domain"
	domanswer "github.com/datapilot-ai/datapilot/internal/domain/answer"
	"github.com/datapilot-ai/datapilot/internal/domain/query"
	domstrat "github.com/datapilot-ai/datapilot/internal/domain/strategy"
	engineuc "github.com/datapilot-ai/datapilot/internal/usecase/engine"
	strategyuc "github.com/datapilot-ai/datapilot/internal/usecase/strategy"
)

const (
	defaultContextDocs = 5

	systemInstruction = "You are a data analyst assistant. Answer using only the " +
		"information in the provided context. When the context contains an exact " +
		"aggregation value, prefer it over any estimate and state it explicitly. " +
		"If the context does not contain the answer, say so. Respond in clear, " +
		"structured prose."
)

// Selector resolves the execution strategy for a question.
type Selector interface {
	Select(ctx context.Context, text string, opts strategyuc.Options) (domstrat.Strategy, error)
}

// Executor runs a strategy and returns the retrieval result.
type Executor interface {
	Execute(ctx context.Context, text string, strat domstrat.Strategy, opts engineuc.Options) (query.Result, error)
}

// Options tunes one answer request.
type Options struct {
	// SourceID is required.
	SourceID string
	// Force pins the execution strategy, bypassing selection.
	Force domstrat.Type
	// Limit caps retrieved documents; zero means the engine default.
	Limit int
	// Table overrides the source's default table for scan strategies.
	Table string
}

// Orchestrator answers questions over a data source.
type Orchestrator struct {
	selector  Selector
	engine    Executor
	completer domain.Completer
	logger    *zap.Logger

	model       string
	temperature float32
	maxTokens   int
	contextDocs int
}

// New creates an orchestrator.
func New(selector Selector, engine Executor, completer domain.Completer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		selector:    selector,
		engine:      engine,
		completer:   completer,
		logger:      logger,
		contextDocs: defaultContextDocs,
	}
}

// WithModel sets the completion model parameters.
func (o *Orchestrator) WithModel(model string, temperature float32, maxTokens int) *Orchestrator {
	o.model = model
	o.temperature = temperature
	o.maxTokens = maxTokens
	return o
}

// WithContextDocs caps how many retrieved documents enter the prompt.
func (o *Orchestrator) WithContextDocs(n int) *Orchestrator {
	if n > 0 {
		o.contextDocs = n
	}
	return o
}

// Answer runs the pipeline end to end.
func (o *Orchestrator) Answer(ctx context.Context, text string, opts Options) (domanswer.Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domanswer.Answer{}, fmt.Errorf("question text is required")
	}
	if opts.SourceID == "" {
		return domanswer.Answer{}, domain.ErrSourceRequired
	}

	strat, err := o.selector.Select(ctx, text, strategyuc.Options{
		SourceID: opts.SourceID,
		Force:    opts.Force,
	})
	if err != nil {
		return domanswer.Answer{}, fmt.Errorf("select strategy: %w", err)
	}

	res, err := o.engine.Execute(ctx, text, strat, engineuc.Options{
		SourceID: opts.SourceID,
		Limit:    opts.Limit,
		Table:    opts.Table,
	})
	if err != nil {
		return domanswer.Answer{}, fmt.Errorf("execute strategy: %w", err)
	}

	prompt := o.buildContext(strat, res)
	completion, err := o.completer.Complete(ctx,
		[]domain.Message{
			{Role: domain.RoleSystem, Content: systemInstruction},
			{Role: domain.RoleUser, Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", prompt, text)},
		},
		domain.CompletionParams{
			Model:       o.model,
			Temperature: o.temperature,
			MaxTokens:   o.maxTokens,
		},
	)
	if err != nil {
		return domanswer.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	o.logger.Info("question answered",
		zap.String("source_id", opts.SourceID),
		zap.String("strategy", string(res.Details.Strategy)),
		zap.Bool("rerouted", res.Details.Rerouted),
		zap.Bool("fallback_used", res.Details.FallbackUsed),
		zap.Int("sources", len(res.Records)),
		zap.Int("total_tokens", completion.TotalTokens),
	)

	return domanswer.Answer{
		Text:    completion.Text,
		Sources: sourcesFrom(res.Records),
		Details: res.Details,
		Metadata: domanswer.Metadata{
			Classification: strat.Classification,
			Model:          completion.Model,
			TotalTokens:    completion.TotalTokens,
			AnsweredAt:     time.Now().UTC(),
		},
	}, nil
}

// buildContext assembles the evidence block the model answers from.
func (o *Orchestrator) buildContext(strat domstrat.Strategy, res query.Result) string {
	var sb strings.Builder

	sb.WriteString("Query classification: ")
	sb.WriteString(strat.Classification.Summary())
	sb.WriteString("\nExecution: ")
	sb.WriteString(string(res.Details.Strategy))
	if res.Details.Rerouted {
		sb.WriteString(" (rerouted from precomputed lookup)")
	}
	if res.Details.FallbackUsed {
		sb.WriteString(" (fallback after strategy failure)")
	}
	sb.WriteString("\n")

	if res.Aggregate != nil {
		sb.WriteString("Aggregation result: ")
		if res.Aggregate.Description != "" {
			sb.WriteString(res.Aggregate.Description)
		} else {
			sb.WriteString(fmt.Sprintf("%s = %.2f", res.Aggregate.Subject, res.Aggregate.Value))
		}
		sb.WriteString("\n")
	}
	if res.NotComputed {
		sb.WriteString("Aggregation result: not available; live computation is " +
			"not supported for this source.\n")
	}

	limit := o.contextDocs
	if limit > len(res.Records) {
		limit = len(res.Records)
	}
	if limit > 0 {
		sb.WriteString("Retrieved documents:\n")
		for i, rec := range res.Records[:limit] {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec.Content))
		}
	}
	return sb.String()
}

func sourcesFrom(records []query.Record) []domanswer.Source {
	if len(records) == 0 {
		return nil
	}
	sources := make([]domanswer.Source, len(records))
	for i, rec := range records {
		sources[i] = domanswer.Source{
			ID:      rec.ID,
			Content: rec.Content,
			Score:   rec.Score,
		}
	}
	return sources
}
