package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

func term(t, field string) *query.Node { return query.NewTerm(t, field) }

func TestParseWrapsInDefaultOperator(t *testing.T) {
	tree, err := New("#sum").Parse("dogs cats")
	require.NoError(t, err)
	assert.Equal(t, "#sum( dog.body cat.body )", tree.String())
}

func TestParseNestedOperatorsAndFields(t *testing.T) {
	tree, err := New("#and").Parse("#OR(apple.title #near/2(red fruit.url)) banana.inlink")
	require.NoError(t, err)

	want := query.NewOperator(query.KindAnd,
		query.NewOperator(query.KindOr,
			term("appl", "title"),
			&query.Node{Kind: query.KindNear, Distance: 2, Args: []*query.Node{term("red", "body"), term("fruit", "url")}},
		),
		term("banana", "inlink"),
	)
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestParseUnknownFieldFallsBackToBody(t *testing.T) {
	p := New("#or").WithNormalizer(func(s string) []string { return []string{strings.ToLower(s)} })
	tree, err := p.Parse("obama.family")
	require.NoError(t, err)
	require.Len(t, tree.Args, 1)
	assert.Equal(t, term("obama.family", "body"), tree.Args[0])
}

func TestParseWeightedOperators(t *testing.T) {
	tree, err := New("#and").Parse("#wand(0.7 #and(dog cat) 0.3 2010)")
	require.NoError(t, err)
	wand := tree.Args[0]
	assert.Equal(t, query.KindWand, wand.Kind)
	assert.Equal(t, []float64{0.7, 0.3}, wand.Weights)
	require.Len(t, wand.Args, 2)
	assert.Equal(t, term("2010", "body"), wand.Args[1])
}

func TestParseWeightedTermExpandsToSeveralLeaves(t *testing.T) {
	tree, err := New("#and").Parse("#wsum(2 near-death 1 the 1 cat)")
	require.NoError(t, err)
	wsum := tree.Args[0]
	assert.Equal(t, []float64{2, 2, 1}, wsum.Weights)
	assert.Equal(t, "#wsum( 2 near.body 2 death.body 1 cat.body )", wsum.String())
}

func TestParseSyntaxErrors(t *testing.T) {
	cases := map[string]string{
		"unmatched close":    "dog)",
		"missing close":      "#and(dog",
		"unknown operator":   "#max(dog cat)",
		"near without slash": "#near(a b)",
		"near bad distance":  "#near/x(a b)",
		"window zero":        "#window/0(a b)",
		"missing weight":     "#wand(dog 0.5 cat)",
		"weight no argument": "#wsum(0.5 dog 0.5)",
		"operator no weight": "#wand(#and(a b))",
		"all zero weights":   "#wand(0 dog 0 cat)",
		"negative weight":    "#wsum(-1 dog 2 cat)",
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New("#or").Parse(q)
			assert.ErrorIs(t, err, apperrors.ErrSyntax)
		})
	}
}

func TestParseAndOptimizeStopwordsOnly(t *testing.T) {
	tree, err := New("#and").ParseAndOptimize("#and(the of) dog")
	require.NoError(t, err)
	assert.Equal(t, term("dog", "body"), tree)

	tree, err = New("#and").ParseAndOptimize("the of")
	require.NoError(t, err)
	assert.Nil(t, tree)
}

func TestParseAndOptimizeNestedSingleton(t *testing.T) {
	tree, err := New("#or").ParseAndOptimize("#and(#and(dog))")
	require.NoError(t, err)
	assert.Equal(t, term("dog", "body"), tree)
}

func TestParseAndOptimizeRejectsZeroWeightsAfterPruning(t *testing.T) {
	_, err := New("#and").ParseAndOptimize("#wand(0 dog 0 cat 1 #and(the))")
	assert.ErrorIs(t, err, apperrors.ErrSyntax)
}

func TestTokenize(t *testing.T) {
	got := tokenize("#near/3(a, b)\tc")
	assert.Equal(t, []string{"#near", "/", "3", "(", "a", "b", ")", "c"}, got)
}
