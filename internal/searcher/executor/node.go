package executor

import (
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/query"
)

// matchPolicy decides which document a score operator is positioned on.
type matchPolicy int

const (
	// matchFirst follows the single posting list of a #score node.
	matchFirst matchPolicy = iota
	// matchAll requires every argument to contain the document.
	matchAll
	// matchMin takes the smallest document any argument contains.
	matchMin
)

// opNode is the per-evaluation state of one score-producing operator. A
// #score node wraps one posting list; every other operator has opNode
// arguments and, for weighted operators, weights normalised to sum to 1.
// The model's score functions are bound when the node is compiled.
type opNode struct {
	kind      query.Kind
	policy    matchPolicy
	leaf      *invList
	args      []*opNode
	weights   []float64
	scoreFn   scoreFunc
	defaultFn scoreFunc
}

// current returns the document the node is positioned on, or false when
// it has no more matches. matchAll nodes advance their arguments until
// they agree.
func (n *opNode) current() (int, bool) {
	switch n.policy {
	case matchFirst:
		return n.leaf.current()
	case matchAll:
		return alignAll(n.args)
	default:
		minDoc, found := 0, false
		for _, a := range n.args {
			if doc, ok := a.current(); ok && (!found || doc < minDoc) {
				minDoc, found = doc, true
			}
		}
		return minDoc, found
	}
}

// matches reports whether the node is positioned on docID.
func (n *opNode) matches(docID int) bool {
	doc, ok := n.current()
	return ok && doc == docID
}

// advancePast moves every cursor under the node beyond docID.
func (n *opNode) advancePast(docID int) {
	if n.leaf != nil {
		n.leaf.advancePast(docID)
		return
	}
	for _, a := range n.args {
		a.advancePast(docID)
	}
}
