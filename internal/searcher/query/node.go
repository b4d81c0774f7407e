// Package query defines the immutable operator tree produced by the parser
// and the optimizer that simplifies it before evaluation.
package query

import (
	"math"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// Kind is the closed set of query tree node types.
type Kind int

const (
	KindTerm Kind = iota
	KindSyn
	KindAnd
	KindOr
	KindNear
	KindWindow
	KindWand
	KindWsum
	KindSum
	KindScore
)

var kindNames = [...]string{
	KindTerm:   "term",
	KindSyn:    "#syn",
	KindAnd:    "#and",
	KindOr:     "#or",
	KindNear:   "#near",
	KindWindow: "#window",
	KindWand:   "#wand",
	KindWsum:   "#wsum",
	KindSum:    "#sum",
	KindScore:  "#score",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ProducesPostings reports whether nodes of this kind evaluate to a posting
// list (terms and the operators that derive synthetic lists) rather than to
// a score.
func (k Kind) ProducesPostings() bool {
	switch k {
	case KindTerm, KindSyn, KindNear, KindWindow:
		return true
	}
	return false
}

// Weighted reports whether nodes of this kind carry one weight per argument.
func (k Kind) Weighted() bool {
	return k == KindWand || k == KindWsum
}

// Node is one operator or term in a query tree. Trees are never mutated
// after the parser returns them; Optimize builds a new tree.
type Node struct {
	Kind     Kind
	Term     string
	Field    string
	Distance int
	Weights  []float64
	Args     []*Node
}

// NewTerm returns a term leaf.
func NewTerm(term, field string) *Node {
	return &Node{Kind: KindTerm, Term: term, Field: field}
}

// NewOperator returns an operator node over args.
func NewOperator(kind Kind, args ...*Node) *Node {
	return &Node{Kind: kind, Args: args}
}

// NewWeighted returns a #wand or #wsum node. weights pairs with args.
func NewWeighted(kind Kind, weights []float64, args ...*Node) *Node {
	return &Node{Kind: kind, Weights: weights, Args: args}
}

// String renders n in the query language.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n.Kind == KindTerm {
		sb.WriteString(n.Term)
		sb.WriteByte('.')
		sb.WriteString(n.Field)
		return
	}
	sb.WriteString(n.Kind.String())
	if n.Kind == KindNear || n.Kind == KindWindow {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(n.Distance))
	}
	sb.WriteByte('(')
	for i, arg := range n.Args {
		sb.WriteByte(' ')
		if n.Kind.Weighted() && i < len(n.Weights) {
			sb.WriteString(strconv.FormatFloat(n.Weights[i], 'g', -1, 64))
			sb.WriteByte(' ')
		}
		arg.write(sb)
	}
	sb.WriteString(" )")
}

// Validate checks the structural invariants evaluation relies on.
func (n *Node) Validate() error {
	if n == nil {
		return nil
	}
	if n.Kind == KindTerm {
		if n.Term == "" || n.Field == "" {
			return apperrors.Syntaxf("term leaf without term or field")
		}
		return nil
	}
	if len(n.Args) == 0 {
		return apperrors.Syntaxf("%s has no arguments", n.Kind)
	}
	if n.Kind == KindScore && len(n.Args) != 1 {
		return apperrors.Syntaxf("#score takes exactly one argument")
	}
	if (n.Kind == KindNear || n.Kind == KindWindow) && n.Distance < 1 {
		return apperrors.Syntaxf("%s distance must be positive, got %d", n.Kind, n.Distance)
	}
	if n.Kind.Weighted() {
		if len(n.Weights) != len(n.Args) {
			return apperrors.Syntaxf("%s has %d weights for %d arguments", n.Kind, len(n.Weights), len(n.Args))
		}
		if err := checkWeights(n.Kind, n.Weights); err != nil {
			return err
		}
	}
	for _, arg := range n.Args {
		if err := arg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func checkWeights(kind Kind, weights []float64) error {
	total := 0.0
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return apperrors.Syntaxf("%s weight %v is not a finite non-negative number", kind, w)
		}
		total += w
	}
	if total == 0 {
		return apperrors.Syntaxf("%s weights are all zero", kind)
	}
	return nil
}

// Terms returns the distinct (term, field) leaves under n in first-seen
// order.
func (n *Node) Terms() []*Node {
	seen := make(map[[2]string]bool)
	var out []*Node
	var walk func(*Node)
	walk = func(m *Node) {
		if m == nil {
			return
		}
		if m.Kind == KindTerm {
			key := [2]string{m.Term, m.Field}
			if !seen[key] {
				seen[key] = true
				out = append(out, m)
			}
			return
		}
		for _, a := range m.Args {
			walk(a)
		}
	}
	walk(n)
	return out
}
