// Package executor evaluates optimised query trees document-at-a-time
// against an index.Reader under one retrieval model.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/logger"
)

// SearchResult is the outcome of one query.
type SearchResult struct {
	Query     string             `json:"query"`
	Tree      string             `json:"tree"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
}

// Executor evaluates queries. It holds no per-query state and is safe for
// concurrent use when the reader is.
type Executor struct {
	reader     index.Reader
	model      ranker.Model
	parser     *parser.Parser
	maxResults int
	logger     *slog.Logger
}

// New returns an Executor that keeps at most maxResults documents per
// query; a non-positive value means ranker.DefaultMaxResults.
func New(reader index.Reader, model ranker.Model, maxResults int) *Executor {
	if maxResults <= 0 {
		maxResults = ranker.DefaultMaxResults
	}
	return &Executor{
		reader:     reader,
		model:      model,
		parser:     parser.New(model.DefaultOperator()),
		maxResults: maxResults,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

// Model returns the retrieval model queries are scored with.
func (e *Executor) Model() ranker.Model { return e.model }

// Reader returns the index the executor reads.
func (e *Executor) Reader() index.Reader { return e.reader }

// Parse parses and optimises q with the model's default operator.
func (e *Executor) Parse(q string) (*query.Node, error) {
	return e.parser.ParseAndOptimize(q)
}

// Execute parses q and evaluates it.
func (e *Executor) Execute(ctx context.Context, q string) (*SearchResult, error) {
	tree, err := e.Parse(q)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		logger.Enrich(ctx, e.logger).Debug("query has no terms after normalisation", "query", q)
	}
	result, err := e.Run(ctx, tree)
	if err != nil {
		return nil, err
	}
	result.Query = q
	return result, nil
}

// Run evaluates an optimised tree. A nil tree matches nothing.
func (e *Executor) Run(ctx context.Context, tree *query.Node) (*SearchResult, error) {
	result := &SearchResult{Results: []ranker.ScoredDoc{}}
	if tree == nil {
		return result, nil
	}
	docs, total, err := e.evaluate(ctx, tree)
	if err != nil {
		return nil, err
	}
	result.Tree = tree.String()
	result.Results = docs
	result.TotalHits = total
	return result, nil
}

// Evaluate returns only the ranked documents of Run.
func (e *Executor) Evaluate(ctx context.Context, tree *query.Node) ([]ranker.ScoredDoc, error) {
	result, err := e.Run(ctx, tree)
	if err != nil {
		return nil, err
	}
	return result.Results, nil
}

func (e *Executor) evaluate(ctx context.Context, tree *query.Node) ([]ranker.ScoredDoc, int, error) {
	ev := &evaluation{
		reader: e.reader,
		model:  e.model,
		fields: make(map[string]fieldStats),
	}
	root, err := ev.compile(ctx, tree)
	if err != nil {
		return nil, 0, err
	}

	var scores ranker.ScoreList
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("evaluating %s: %w", tree.Kind, err)
		}
		docID, ok := root.current()
		if !ok {
			break
		}
		scores.Add(docID, ev.score(root, docID))
		root.advancePast(docID)
	}

	docs, err := scores.Finalize(e.reader, e.maxResults)
	if err != nil {
		return nil, 0, err
	}
	logger.Enrich(ctx, e.logger).Debug("query evaluated",
		"model", e.model.Kind.String(),
		"matched", scores.Len(),
		"returned", len(docs),
	)
	return docs, scores.Len(), nil
}

// evaluation is the state of one query evaluation.
type evaluation struct {
	reader index.Reader
	model  ranker.Model
	// fields caches per-field document counts and lengths; BM25 idf and
	// average length are both taken over the documents that have the field.
	fields map[string]fieldStats
}

type fieldStats struct {
	docCount  int
	sumLength int64
}

func (s fieldStats) avgLength() float64 {
	if s.docCount == 0 {
		return 0
	}
	return float64(s.sumLength) / float64(s.docCount)
}

func (e *evaluation) field(name string) fieldStats {
	if s, ok := e.fields[name]; ok {
		return s
	}
	s := fieldStats{docCount: e.reader.DocCount(name), sumLength: e.reader.SumFieldLengths(name)}
	e.fields[name] = s
	return s
}

func (e *evaluation) score(n *opNode, docID int) float64 {
	return n.scoreFn(e, n, docID)
}

func (e *evaluation) defaultScore(n *opNode, docID int) float64 {
	return n.defaultFn(e, n, docID)
}
