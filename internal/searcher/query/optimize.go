package query

// Optimize returns a simplified copy of n, or nil when nothing evaluable
// remains. Children are simplified before their parent. An argument that
// simplifies to nil is dropped together with its weight, an operator left
// without arguments becomes nil, and an operator left with a single
// argument is replaced by it unless it is a #score node.
func Optimize(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == KindTerm {
		return n
	}

	out := &Node{Kind: n.Kind, Distance: n.Distance}
	args := make([]*Node, len(n.Args))
	var weights []float64
	if n.Kind.Weighted() {
		weights = make([]float64, len(n.Weights))
		copy(weights, n.Weights)
	}
	copy(args, n.Args)

	for i := len(args) - 1; i >= 0; i-- {
		opt := Optimize(args[i])
		if opt != nil {
			args[i] = opt
			continue
		}
		args = append(args[:i], args[i+1:]...)
		if weights != nil && i < len(weights) {
			weights = append(weights[:i], weights[i+1:]...)
		}
	}

	switch {
	case len(args) == 0:
		return nil
	case len(args) == 1 && n.Kind != KindScore:
		return args[0]
	}
	out.Args = args
	out.Weights = weights
	return out
}
