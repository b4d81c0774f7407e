package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

func TestOptimizeCollapsesNestedSingleArgs(t *testing.T) {
	a := NewTerm("a", "body")
	tree := NewOperator(KindAnd, NewOperator(KindAnd, a))
	assert.Same(t, a, Optimize(tree))
}

func TestOptimizePrunesEmptyOperators(t *testing.T) {
	// #or( #and() dog ) where #and lost all of its stopword arguments.
	dog := NewTerm("dog", "body")
	tree := NewOperator(KindOr, NewOperator(KindAnd), dog)
	assert.Same(t, dog, Optimize(tree))

	assert.Nil(t, Optimize(NewOperator(KindAnd, NewOperator(KindSyn))))
	assert.Nil(t, Optimize(nil))
}

func TestOptimizeDropsWeightWithArgument(t *testing.T) {
	tree := NewWeighted(KindWand, []float64{0.2, 0.3, 0.5},
		NewTerm("a", "body"),
		NewOperator(KindOr),
		NewTerm("c", "title"),
	)
	got := Optimize(tree)
	want := NewWeighted(KindWand, []float64{0.2, 0.5}, NewTerm("a", "body"), NewTerm("c", "title"))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("optimized tree mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, tree.Args, 3, "input tree must not be modified")
	assert.Equal(t, []float64{0.2, 0.3, 0.5}, tree.Weights)
}

func TestOptimizeKeepsSingleArgScore(t *testing.T) {
	tree := NewOperator(KindScore, NewTerm("a", "body"))
	got := Optimize(tree)
	require.NotNil(t, got)
	assert.Equal(t, KindScore, got.Kind)
	assert.Len(t, got.Args, 1)
}

func TestOptimizeKeepsDistance(t *testing.T) {
	tree := &Node{Kind: KindNear, Distance: 3, Args: []*Node{NewTerm("a", "body"), NewTerm("b", "body")}}
	got := Optimize(tree)
	assert.Equal(t, 3, got.Distance)
	assert.Equal(t, "#near/3( a.body b.body )", got.String())
}

func TestString(t *testing.T) {
	tree := NewWeighted(KindWand, []float64{0.7, 0.3},
		NewOperator(KindAnd, NewTerm("dog", "body"), NewTerm("cat", "title")),
		NewTerm("pet", "body"),
	)
	assert.Equal(t, "#wand( 0.7 #and( dog.body cat.title ) 0.3 pet.body )", tree.String())
}

func TestValidate(t *testing.T) {
	ok := NewWeighted(KindWsum, []float64{1, 0}, NewTerm("a", "body"), NewTerm("b", "body"))
	assert.NoError(t, ok.Validate())

	cases := map[string]*Node{
		"zero weights":   NewWeighted(KindWand, []float64{0, 0}, NewTerm("a", "body"), NewTerm("b", "body")),
		"weight count":   NewWeighted(KindWand, []float64{1}, NewTerm("a", "body"), NewTerm("b", "body")),
		"negative":       NewWeighted(KindWsum, []float64{-1, 2}, NewTerm("a", "body"), NewTerm("b", "body")),
		"empty operator": NewOperator(KindOr),
		"near distance":  {Kind: KindNear, Args: []*Node{NewTerm("a", "body"), NewTerm("b", "body")}},
		"score arity":    NewOperator(KindScore, NewTerm("a", "body"), NewTerm("b", "body")),
	}
	for name, n := range cases {
		assert.ErrorIs(t, n.Validate(), apperrors.ErrSyntax, name)
	}
}

func TestTermsDeduplicates(t *testing.T) {
	tree := NewOperator(KindOr,
		NewTerm("a", "body"),
		NewOperator(KindAnd, NewTerm("a", "body"), NewTerm("a", "title")),
	)
	terms := tree.Terms()
	require.Len(t, terms, 2)
	assert.Equal(t, "title", terms[1].Field)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "#window", KindWindow.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
	assert.True(t, KindSyn.ProducesPostings())
	assert.False(t, KindSum.ProducesPostings())
	assert.True(t, KindWsum.Weighted())
}
