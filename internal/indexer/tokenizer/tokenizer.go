// Package tokenizer provides the lexical processing shared by indexing and
// query parsing. It lower-cases input, splits on non-alphanumeric
// boundaries, drops stop-words and stems what is left with the Snowball
// English (Porter2) stemmer.
//
// Positions count every word of the input, including the ones that are
// dropped, so proximity operators see the same gaps the original text had.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token represents a single normalised term and its word position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into stemmed, lower-cased Tokens with stop-words
// removed. Token positions are strictly ascending.
func Tokenize(text string) []Token {
	words := splitWords(text)
	tokens := make([]Token, 0, len(words)/2)
	for pos, word := range words {
		term, ok := normalize(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
	}
	return tokens
}

// Terms returns the normalised terms of text without positions. The parser
// uses it to turn one query token into zero or more index terms.
func Terms(text string) []string {
	words := splitWords(text)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if term, ok := normalize(word); ok {
			terms = append(terms, term)
		}
	}
	return terms
}

// IsStopWord reports whether the lower-cased word is dropped during
// tokenisation.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(word string) (string, bool) {
	if len(word) < 2 {
		return "", false
	}
	if _, isStop := stopWords[word]; isStop {
		return "", false
	}
	stemmed := stem(word)
	if stemmed == "" {
		return "", false
	}
	return stemmed, true
}

func stem(word string) string {
	return english.Stem(word, false)
}
