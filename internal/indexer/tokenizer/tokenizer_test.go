package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeKeepsWordPositions(t *testing.T) {
	tokens := Tokenize("The dogs and the cats")
	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Term: "dog", Position: 1}, tokens[0])
	assert.Equal(t, Token{Term: "cat", Position: 4}, tokens[1])
}

func TestTokenizeSplitsOnPunctuation(t *testing.T) {
	tokens := Tokenize("near-death, experience!")
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, tok.Term)
	}
	assert.Equal(t, []string{"near", "death", "experi"}, terms)
}

func TestTermsDropsStopWords(t *testing.T) {
	assert.Empty(t, Terms("of the"))
	assert.Equal(t, []string{"dog"}, Terms("Dogs"))
	assert.Equal(t, []string{"2010"}, Terms("2010"))
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"dogs":       "dog",
		"class":      "class",
		"studies":    "studi",
		"running":    "run",
		"relational": "relat",
		"cat":        "cat",
		"2010":       "2010",
	}
	for in, want := range cases {
		assert.Equal(t, want, stem(in), in)
	}
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("The"))
	assert.False(t, IsStopWord("dog"))
}

var benchTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"long": strings.Repeat(`Information retrieval systems combine tokenization, stemming and
        stop word removal to normalize text into searchable terms. The inverted index maps
        each term to the documents containing it, with positions for proximity queries. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTermsParallel(b *testing.B) {
	text := benchTexts["long"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Terms(text)
		}
	})
}
