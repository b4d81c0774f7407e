// Package pipeline runs one query end to end: parse, optional feedback
// expansion, evaluation and metrics.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/feedback"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
)

// Outcome is the result of one query.
type Outcome struct {
	QueryID   string             `json:"query_id"`
	Query     string             `json:"query"`
	Tree      string             `json:"tree"`
	Expansion string             `json:"expansion,omitempty"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFeedback enables query expansion. When initial is nil the initial
// ranking is computed by evaluating the original query.
func WithFeedback(x *feedback.Expander, initial feedback.InitialRanking) Option {
	return func(p *Pipeline) {
		p.expander = x
		p.initial = initial
	}
}

// WithMetrics records query outcomes and latency in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline evaluates queries against one executor.
type Pipeline struct {
	exec     *executor.Executor
	expander *feedback.Expander
	initial  feedback.InitialRanking
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New returns a Pipeline. Feedback expansion combines queries with #wand,
// so it requires the Indri model.
func New(exec *executor.Executor, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		exec:   exec,
		logger: slog.Default().With("component", "search-pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.expander != nil && exec.Model().Kind != ranker.Indri {
		return nil, apperrors.Unsupportedf("query expansion is not supported by the %s model", exec.Model().Kind)
	}
	return p, nil
}

// Search evaluates q for query qid.
func (p *Pipeline) Search(ctx context.Context, qid, q string) (*Outcome, error) {
	ctx = logger.WithQueryID(ctx, qid)
	start := time.Now()
	out, err := p.search(ctx, qid, q)
	p.record(ctx, out, err, time.Since(start))
	return out, err
}

func (p *Pipeline) search(ctx context.Context, qid, q string) (*Outcome, error) {
	tree, err := p.exec.Parse(q)
	if err != nil {
		return nil, err
	}
	out := &Outcome{QueryID: qid, Query: q, Results: []ranker.ScoredDoc{}}
	if tree == nil {
		return out, nil
	}

	if p.expander != nil {
		var initial []ranker.ScoredDoc
		if p.initial != nil {
			initial = p.initial.Top(qid, p.expander.Params().Docs)
		} else if initial, err = p.exec.Evaluate(ctx, tree); err != nil {
			return nil, err
		}
		exp, err := p.expander.Expand(ctx, initial)
		if err != nil {
			return nil, err
		}
		if len(exp.Terms) > 0 {
			out.Expansion = exp.String()
			if tree, err = feedback.Combine(tree, exp, p.expander.Params().OrigWeight); err != nil {
				return nil, err
			}
		}
	}

	result, err := p.exec.Run(ctx, tree)
	if err != nil {
		return nil, err
	}
	out.Tree = result.Tree
	out.TotalHits = result.TotalHits
	out.Results = result.Results
	return out, nil
}

func (p *Pipeline) record(ctx context.Context, out *Outcome, err error, elapsed time.Duration) {
	outcome := Classify(err, out)
	log := logger.Enrich(ctx, p.logger)
	if err != nil {
		log.Warn("query failed", "outcome", outcome, "error", err)
	} else {
		log.Debug("query completed", "results", len(out.Results), "elapsed", elapsed)
	}
	if p.metrics == nil {
		return
	}
	p.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	p.metrics.QueryLatency.WithLabelValues(p.exec.Model().Kind.String()).Observe(elapsed.Seconds())
	if err == nil {
		p.metrics.QueryResultsCount.Observe(float64(len(out.Results)))
	}
}

// Classify labels a query result for metrics and logs.
func Classify(err error, out *Outcome) string {
	switch {
	case err == nil && len(out.Results) == 0:
		return metrics.OutcomeEmpty
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, apperrors.ErrSyntax):
		return metrics.OutcomeSyntax
	case errors.Is(err, apperrors.ErrUnsupportedOperator):
		return metrics.OutcomeUnsupported
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, apperrors.ErrTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
