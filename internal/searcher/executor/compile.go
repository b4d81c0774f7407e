package executor

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// compile builds the evaluation tree for an optimised query tree. Posting
// lists of #syn, #near and #window are materialised here, and every
// operator is checked against the model's score tables.
func (e *evaluation) compile(ctx context.Context, n *query.Node) (*opNode, error) {
	switch {
	case n.Kind == query.KindScore:
		return e.compileScore(ctx, n.Args[0])
	case n.Kind.ProducesPostings():
		return e.compileScore(ctx, n)
	}

	op := &opNode{kind: n.Kind, policy: e.policy(n.Kind)}
	if err := e.bind(op); err != nil {
		return nil, err
	}
	for _, arg := range n.Args {
		child, err := e.compile(ctx, arg)
		if err != nil {
			return nil, err
		}
		op.args = append(op.args, child)
	}
	if n.Kind.Weighted() {
		op.weights = normalize(n.Weights)
	}
	return op, nil
}

func (e *evaluation) compileScore(ctx context.Context, n *query.Node) (*opNode, error) {
	leaf, err := e.compileList(ctx, n)
	if err != nil {
		return nil, err
	}
	op := &opNode{kind: query.KindScore, policy: matchFirst, leaf: leaf}
	if err := e.bind(op); err != nil {
		return nil, err
	}
	return op, nil
}

// compileList returns the posting list a posting-producing node stands
// for. All arguments of one list operator must share a field.
func (e *evaluation) compileList(ctx context.Context, n *query.Node) (*invList, error) {
	if n.Kind == query.KindTerm {
		postings, err := e.reader.Postings(n.Term, n.Field)
		if err != nil {
			return nil, err
		}
		stats, err := e.reader.TermStats(n.Term, n.Field)
		if err != nil {
			return nil, err
		}
		return &invList{field: n.Field, df: stats.DocFreq, ctf: stats.CollectionFreq, postings: postings}, nil
	}
	if !n.Kind.ProducesPostings() {
		return nil, apperrors.Syntaxf("%s cannot be used where a posting list is required", n.Kind)
	}

	args := make([]*invList, 0, len(n.Args))
	for _, arg := range n.Args {
		l, err := e.compileList(ctx, arg)
		if err != nil {
			return nil, err
		}
		if len(args) > 0 && l.field != args[0].field {
			return nil, apperrors.Syntaxf("%s arguments use different fields %q and %q", n.Kind, args[0].field, l.field)
		}
		args = append(args, l)
	}
	field := args[0].field

	switch n.Kind {
	case query.KindSyn:
		return mergeSyn(ctx, field, args)
	case query.KindNear:
		return mergeProximity(ctx, field, args, n.Distance, nearMatches)
	default:
		return mergeProximity(ctx, field, args, n.Distance, windowMatches)
	}
}

// bind attaches the model's score functions to op.
func (e *evaluation) bind(op *opNode) error {
	fn, ok := scoreTable[scoreKey{kind: op.kind, model: e.model.Kind}]
	if !ok {
		return apperrors.Unsupportedf("%s is not supported by the %s model", op.kind, e.model.Kind)
	}
	op.scoreFn = fn
	if e.model.Kind == ranker.Indri {
		op.defaultFn, ok = defaultScoreTable[op.kind]
		if !ok {
			return apperrors.Unsupportedf("%s has no default score in the %s model", op.kind, e.model.Kind)
		}
	}
	return nil
}

// policy is matchAll for #and except under Indri, where documents missing
// some arguments still score through default scores.
func (e *evaluation) policy(kind query.Kind) matchPolicy {
	if kind == query.KindAnd && e.model.Kind != ranker.Indri {
		return matchAll
	}
	return matchMin
}

func normalize(weights []float64) []float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / total
	}
	return out
}
