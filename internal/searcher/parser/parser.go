// Package parser turns structured query strings into raw query trees.
//
// The whole string is wrapped in the retrieval model's default operator and
// read token by token with an explicit operator stack. Terms are normalised
// by the same tokenizer that built the index, so one query token may
// produce zero, one or several term leaves.
package parser

import (
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

const delimiters = " \t\n\r,()/"

var operators = map[string]query.Kind{
	"#or":     query.KindOr,
	"#and":    query.KindAnd,
	"#syn":    query.KindSyn,
	"#sum":    query.KindSum,
	"#near":   query.KindNear,
	"#window": query.KindWindow,
	"#wand":   query.KindWand,
	"#wsum":   query.KindWsum,
}

// Normalizer maps one query token to zero or more index terms.
type Normalizer func(text string) []string

// Parser parses query strings for one retrieval model.
type Parser struct {
	defaultOp string
	normalize Normalizer
}

// New returns a Parser that wraps every query in defaultOp (for example
// "#and") and normalises terms with tokenizer.Terms.
func New(defaultOp string) *Parser {
	return &Parser{defaultOp: defaultOp, normalize: tokenizer.Terms}
}

// WithNormalizer replaces the term normaliser.
func (p *Parser) WithNormalizer(n Normalizer) *Parser {
	return &Parser{defaultOp: p.defaultOp, normalize: n}
}

// Parse returns the raw, unoptimised tree for q.
func (p *Parser) Parse(q string) (*query.Node, error) {
	tokens := tokenize(p.defaultOp + "(" + q + ")")
	var stack []*frame

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "(":
			continue

		case tok == ")":
			if len(stack) == 0 {
				return nil, apperrors.Syntaxf("unmatched ')'")
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if err := top.close(); err != nil {
				return nil, err
			}
			if len(stack) == 0 {
				if i+1 < len(tokens) {
					return nil, apperrors.Syntaxf("unexpected %q after end of query", tokens[i+1])
				}
				return top.node, nil
			}
			stack[len(stack)-1].add(top.node)

		case strings.HasPrefix(tok, "#"):
			kind, ok := operators[strings.ToLower(tok)]
			if !ok {
				return nil, apperrors.Syntaxf("unknown operator %q", tok)
			}
			node := query.NewOperator(kind)
			if kind == query.KindNear || kind == query.KindWindow {
				distance, next, err := readDistance(tokens, i, tok)
				if err != nil {
					return nil, err
				}
				node.Distance = distance
				i = next
			}
			if len(stack) > 0 {
				if err := stack[len(stack)-1].expectArgument(tok); err != nil {
					return nil, err
				}
			}
			stack = append(stack, &frame{node: node})

		default:
			if len(stack) == 0 {
				return nil, apperrors.Syntaxf("unexpected %q after end of query", tok)
			}
			top := stack[len(stack)-1]
			if top.wantsWeight() {
				if err := top.setWeight(tok); err != nil {
					return nil, err
				}
				continue
			}
			top.addTerms(p.terms(tok))
		}
	}
	return nil, apperrors.Syntaxf("missing ')'")
}

// ParseAndOptimize parses q and simplifies the result. A nil tree with a
// nil error means every term was removed by normalisation.
func (p *Parser) ParseAndOptimize(q string) (*query.Node, error) {
	raw, err := p.Parse(q)
	if err != nil {
		return nil, err
	}
	tree := query.Optimize(raw)
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

// terms splits a bare token into term and field, then normalises the term.
// An unknown field suffix is kept as part of a body term.
func (p *Parser) terms(tok string) []*query.Node {
	text, field := tok, index.DefaultField
	if dot := strings.IndexByte(tok, '.'); dot >= 0 {
		if f := strings.ToLower(tok[dot+1:]); index.IsField(f) {
			text, field = tok[:dot], f
		}
	}
	normalized := p.normalize(text)
	nodes := make([]*query.Node, 0, len(normalized))
	for _, t := range normalized {
		nodes = append(nodes, query.NewTerm(t, field))
	}
	return nodes
}

func readDistance(tokens []string, i int, op string) (int, int, error) {
	if i+2 >= len(tokens) || tokens[i+1] != "/" {
		return 0, 0, apperrors.Syntaxf("%s requires /N distance", op)
	}
	distance, err := strconv.Atoi(tokens[i+2])
	if err != nil || distance < 1 {
		return 0, 0, apperrors.Syntaxf("%s distance %q is not a positive integer", op, tokens[i+2])
	}
	return distance, i + 2, nil
}

// tokenize splits on delimiters, keeping "(", ")" and "/" as tokens and
// dropping whitespace and commas.
func tokenize(s string) []string {
	var tokens []string
	start := -1
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(delimiters, s[i]) < 0 {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, s[start:i])
			start = -1
		}
		switch s[i] {
		case '(', ')', '/':
			tokens = append(tokens, s[i:i+1])
		}
	}
	if start >= 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}
