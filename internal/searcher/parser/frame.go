package parser

import (
	"math"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// frame is an operator whose argument list is still open. For weighted
// operators, arguments alternate weight then expression; hasWeight is set
// between the two.
type frame struct {
	node      *query.Node
	hasWeight bool
	weight    float64
}

func (f *frame) wantsWeight() bool {
	return f.node.Kind.Weighted() && !f.hasWeight
}

func (f *frame) setWeight(tok string) error {
	w, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return apperrors.Syntaxf("%s expected a weight, got %q", f.node.Kind, tok)
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return apperrors.Syntaxf("%s weight %q is not a finite non-negative number", f.node.Kind, tok)
	}
	f.weight = w
	f.hasWeight = true
	return nil
}

// expectArgument fails when a weighted operator receives an expression
// where its weight should be.
func (f *frame) expectArgument(tok string) error {
	if f.wantsWeight() {
		return apperrors.Syntaxf("%s expected a weight before %q", f.node.Kind, tok)
	}
	return nil
}

func (f *frame) add(arg *query.Node) {
	f.node.Args = append(f.node.Args, arg)
	if f.node.Kind.Weighted() {
		f.node.Weights = append(f.node.Weights, f.weight)
		f.hasWeight = false
	}
}

// addTerms appends the leaves of one query token. Each leaf gets a copy of
// the pending weight; a token that normalises to nothing discards it.
func (f *frame) addTerms(terms []*query.Node) {
	if len(terms) == 0 {
		f.hasWeight = false
		return
	}
	weight := f.weight
	for _, t := range terms {
		if f.node.Kind.Weighted() {
			f.weight = weight
			f.hasWeight = true
		}
		f.add(t)
	}
}

func (f *frame) close() error {
	if f.node.Kind.Weighted() {
		if f.hasWeight {
			return apperrors.Syntaxf("%s weight without an argument", f.node.Kind)
		}
		if len(f.node.Weights) > 0 {
			total := 0.0
			for _, w := range f.node.Weights {
				total += w
			}
			if total == 0 {
				return apperrors.Syntaxf("%s weights are all zero", f.node.Kind)
			}
		}
	}
	return nil
}
