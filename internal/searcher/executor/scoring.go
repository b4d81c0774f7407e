package executor

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
)

// scoreFunc scores a node at a document. For score functions the node is
// positioned on docID; for default score functions it is not.
type scoreFunc func(e *evaluation, n *opNode, docID int) float64

type scoreKey struct {
	kind  query.Kind
	model ranker.ModelKind
}

// scoreTable lists every supported (operator, model) pair. Pairs that are
// missing are rejected before evaluation starts.
var scoreTable = map[scoreKey]scoreFunc{
	{query.KindScore, ranker.UnrankedBoolean}: constantScore,
	{query.KindScore, ranker.RankedBoolean}:   termFrequencyScore,
	{query.KindScore, ranker.BM25}:            bm25Score,
	{query.KindScore, ranker.Indri}:           indriScore,

	{query.KindAnd, ranker.UnrankedBoolean}: constantScore,
	{query.KindAnd, ranker.RankedBoolean}:   minArgScore,
	{query.KindAnd, ranker.Indri}:           indriAndScore,

	{query.KindOr, ranker.UnrankedBoolean}: constantScore,
	{query.KindOr, ranker.RankedBoolean}:   maxMatchingArgScore,

	{query.KindSum, ranker.BM25}: sumMatchingArgScore,

	{query.KindWand, ranker.Indri}: indriWandScore,
	{query.KindWsum, ranker.Indri}: indriWsumScore,
}

// defaultScoreTable gives Indri operators a score for documents they do
// not match.
var defaultScoreTable = map[query.Kind]scoreFunc{
	query.KindScore: indriDefaultScore,
	query.KindAnd:   indriAndDefault,
	query.KindWand:  indriWandDefault,
	query.KindWsum:  indriWsumDefault,
}

func constantScore(*evaluation, *opNode, int) float64 { return 1 }

func termFrequencyScore(_ *evaluation, n *opNode, _ int) float64 {
	return float64(n.leaf.tf())
}

func bm25Score(e *evaluation, n *opNode, docID int) float64 {
	l := n.leaf
	stats := e.field(l.field)
	return ranker.BM25TermScore(e.model.BM25, l.tf(), l.df, stats.docCount,
		float64(e.reader.FieldLength(l.field, docID)), stats.avgLength())
}

func indriScore(e *evaluation, n *opNode, docID int) float64 {
	l := n.leaf
	prior := ranker.CollectionPrior(l.ctf, e.field(l.field).sumLength)
	return ranker.IndriTermScore(e.model.Indri, l.tf(), prior, float64(e.reader.FieldLength(l.field, docID)))
}

func indriDefaultScore(e *evaluation, n *opNode, docID int) float64 {
	l := n.leaf
	prior := ranker.CollectionPrior(l.ctf, e.field(l.field).sumLength)
	return ranker.IndriTermScore(e.model.Indri, 0, prior, float64(e.reader.FieldLength(l.field, docID)))
}

func minArgScore(e *evaluation, n *opNode, docID int) float64 {
	best := math.Inf(1)
	for _, a := range n.args {
		best = math.Min(best, e.score(a, docID))
	}
	return best
}

func maxMatchingArgScore(e *evaluation, n *opNode, docID int) float64 {
	best := 0.0
	for _, a := range n.args {
		if a.matches(docID) {
			best = math.Max(best, e.score(a, docID))
		}
	}
	return best
}

func sumMatchingArgScore(e *evaluation, n *opNode, docID int) float64 {
	total := 0.0
	for _, a := range n.args {
		if a.matches(docID) {
			total += e.score(a, docID)
		}
	}
	return total
}

// argScoreOrDefault is the argument's score when it matches docID and its
// default score otherwise.
func argScoreOrDefault(e *evaluation, a *opNode, docID int) float64 {
	if a.matches(docID) {
		return e.score(a, docID)
	}
	return e.defaultScore(a, docID)
}

func indriAndScore(e *evaluation, n *opNode, docID int) float64 {
	return geometricMean(n, func(a *opNode) float64 { return argScoreOrDefault(e, a, docID) }, nil)
}

func indriAndDefault(e *evaluation, n *opNode, docID int) float64 {
	return geometricMean(n, func(a *opNode) float64 { return e.defaultScore(a, docID) }, nil)
}

func indriWandScore(e *evaluation, n *opNode, docID int) float64 {
	return geometricMean(n, func(a *opNode) float64 { return argScoreOrDefault(e, a, docID) }, n.weights)
}

func indriWandDefault(e *evaluation, n *opNode, docID int) float64 {
	return geometricMean(n, func(a *opNode) float64 { return e.defaultScore(a, docID) }, n.weights)
}

func indriWsumScore(e *evaluation, n *opNode, docID int) float64 {
	return weightedSum(n, func(a *opNode) float64 { return argScoreOrDefault(e, a, docID) })
}

func indriWsumDefault(e *evaluation, n *opNode, docID int) float64 {
	return weightedSum(n, func(a *opNode) float64 { return e.defaultScore(a, docID) })
}

// geometricMean is Π s_i^w_i, with equal weights 1/n when weights is nil.
func geometricMean(n *opNode, score func(*opNode) float64, weights []float64) float64 {
	result := 1.0
	for i, a := range n.args {
		w := 1 / float64(len(n.args))
		if weights != nil {
			w = weights[i]
		}
		result *= math.Pow(score(a), w)
	}
	return result
}

func weightedSum(n *opNode, score func(*opNode) float64) float64 {
	total := 0.0
	for i, a := range n.args {
		total += n.weights[i] * score(a)
	}
	return total
}
