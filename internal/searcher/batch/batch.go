// Package batch evaluates a query file and writes a TREC-format run.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/pipeline"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/logger"
)

// Query is one line of a query file.
type Query struct {
	ID   string
	Text string
}

// ReadQueries parses "queryId:query" lines. Blank lines are skipped; a line
// without ':' is a syntax error.
func ReadQueries(r io.Reader) ([]Query, error) {
	var queries []Query
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		qid, text, ok := strings.Cut(line, ":")
		if !ok {
			return nil, apperrors.Syntaxf("query line %d: missing ':'", lineNo)
		}
		queries = append(queries, Query{ID: strings.TrimSpace(qid), Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	return queries, nil
}

// Searcher evaluates one query.
type Searcher interface {
	Search(ctx context.Context, qid, q string) (*pipeline.Outcome, error)
}

// Recorder persists a ranked list.
type Recorder interface {
	Save(ctx context.Context, runID, qid string, docs []ranker.ScoredDoc) error
}

// Options controls a batch run.
type Options struct {
	RunID string
	// Concurrency bounds the number of queries evaluated at once.
	Concurrency int
	// Timeout bounds each query; zero means no limit.
	Timeout time.Duration
	// SkipInvalidQueries turns syntax and unsupported-operator errors into
	// empty results instead of failing the run.
	SkipInvalidQueries bool
}

// Runner evaluates query files.
type Runner struct {
	searcher Searcher
	recorder Recorder
	opts     Options
	logger   *slog.Logger
}

// NewRunner returns a Runner. recorder may be nil.
func NewRunner(searcher Searcher, recorder Recorder, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{
		searcher: searcher,
		recorder: recorder,
		opts:     opts,
		logger:   slog.Default().With("component", "batch-runner"),
	}
}

// Run evaluates queries and returns their outcomes in input order. The
// first fatal error cancels the remaining queries.
func (r *Runner) Run(ctx context.Context, queries []Query) ([]*pipeline.Outcome, error) {
	outcomes := make([]*pipeline.Outcome, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, q := range queries {
		g.Go(func() error {
			out, err := r.runOne(gctx, q)
			if err != nil {
				return fmt.Errorf("query %s: %w", q.ID, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.logger.Info("batch completed", "run_id", r.opts.RunID, "queries", len(queries))
	return outcomes, nil
}

func (r *Runner) runOne(ctx context.Context, q Query) (*pipeline.Outcome, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	out, err := r.searcher.Search(ctx, q.ID, q.Text)
	if err != nil {
		if !r.opts.SkipInvalidQueries || !apperrors.IsQueryError(err) {
			return nil, err
		}
		logger.Enrich(logger.WithQueryID(ctx, q.ID), r.logger).Warn("skipping invalid query", "error", err)
		out = &pipeline.Outcome{QueryID: q.ID, Query: q.Text, Results: []ranker.ScoredDoc{}}
	}

	if r.recorder != nil {
		if err := r.recorder.Save(ctx, r.opts.RunID, q.ID, out.Results); err != nil {
			return nil, fmt.Errorf("storing ranking: %w", err)
		}
	}
	return out, nil
}

// WriteRun writes "queryId Q0 externalDocId rank score runId" lines. A
// query without results gets a single "dummy" line so every query appears
// in the run.
func WriteRun(w io.Writer, runID string, outcomes []*pipeline.Outcome) error {
	bw := bufio.NewWriter(w)
	for _, out := range outcomes {
		if len(out.Results) == 0 {
			fmt.Fprintf(bw, "%s Q0 dummy 1 0 %s\n", out.QueryID, runID)
			continue
		}
		for i, d := range out.Results {
			fmt.Fprintf(bw, "%s Q0 %s %d %s %s\n",
				out.QueryID, d.ExternalID, i+1, strconv.FormatFloat(d.Score, 'g', -1, 64), runID)
		}
	}
	return bw.Flush()
}

// WriteExpansions writes one "queryId : #wand( ... )" line per expanded
// query.
func WriteExpansions(w io.Writer, outcomes []*pipeline.Outcome) error {
	bw := bufio.NewWriter(w)
	for _, out := range outcomes {
		if out.Expansion == "" {
			continue
		}
		fmt.Fprintf(bw, "%s : %s\n", out.QueryID, out.Expansion)
	}
	return bw.Flush()
}
