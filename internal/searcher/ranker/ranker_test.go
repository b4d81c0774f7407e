package ranker

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

func TestParseModelKind(t *testing.T) {
	kind, err := ParseModelKind("bm25")
	require.NoError(t, err)
	assert.Equal(t, BM25, kind)

	kind, err = ParseModelKind("RankedBoolean")
	require.NoError(t, err)
	assert.Equal(t, RankedBoolean, kind)

	_, err = ParseModelKind("tfidf")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFromConfigAndDefaultOperator(t *testing.T) {
	m, err := FromConfig(config.RetrievalConfig{
		Algorithm: "Indri",
		Indri:     config.IndriConfig{Mu: 2500, Lambda: 0.4},
	})
	require.NoError(t, err)
	assert.Equal(t, Indri, m.Kind)
	assert.Equal(t, 2500.0, m.Indri.Mu)
	assert.Equal(t, "#and", m.DefaultOperator())

	assert.Equal(t, "#sum", Model{Kind: BM25}.DefaultOperator())
	assert.Equal(t, "#or", Model{Kind: UnrankedBoolean}.DefaultOperator())
	assert.Equal(t, "#or", Model{Kind: RankedBoolean}.DefaultOperator())
}

func TestIDFNeverNegative(t *testing.T) {
	assert.Equal(t, 0.0, IDF(10, 9))
	assert.Equal(t, 0.0, IDF(10, 10))
	assert.InDelta(t, math.Log(9.5/1.5), IDF(10, 1), 1e-12)
}

func TestBM25TermScore(t *testing.T) {
	p := BM25Params{K1: 1.2, B: 0.75}
	assert.Equal(t, 0.0, BM25TermScore(p, 0, 1, 10, 5, 5))

	// doclen equal to the average leaves tf/(tf+k1).
	got := BM25TermScore(p, 2, 1, 10, 5, 5)
	assert.InDelta(t, IDF(10, 1)*2/3.2, got, 1e-12)

	// A term in most documents has zero idf and contributes nothing.
	assert.Equal(t, 0.0, BM25TermScore(p, 3, 8, 10, 5, 5))
}

func TestIndriTermScore(t *testing.T) {
	p := IndriParams{Mu: 2500, Lambda: 0.4}
	prior := CollectionPrior(3, 100)
	want := 0.6*(2+2500*0.03)/(10+2500) + 0.4*0.03
	assert.InDelta(t, want, IndriTermScore(p, 2, prior, 10), 1e-12)

	assert.Equal(t, 0.0, CollectionPrior(0, 100))
	assert.Equal(t, 0.0, IndriTermScore(p, 0, 0, 10))
}

type idReader struct {
	index.Reader
	missing int
}

func (r idReader) ExternalID(docID int) (string, error) {
	if docID == r.missing {
		return "", apperrors.ErrDocumentNotFound
	}
	return fmt.Sprintf("doc-%03d", docID), nil
}

func TestScoreListTruncatesAndBreaksTies(t *testing.T) {
	var list ScoreList
	for i := 149; i >= 0; i-- {
		list.Add(i, float64(i%3))
	}
	assert.Equal(t, 150, list.Len())

	got, err := list.Finalize(idReader{missing: -1}, DefaultMaxResults)
	require.NoError(t, err)
	require.Len(t, got, DefaultMaxResults)

	assert.Equal(t, "doc-002", got[0].ExternalID)
	assert.Equal(t, "doc-005", got[1].ExternalID)
	for i := 1; i < len(got); i++ {
		assert.True(t, Better(got[i-1], got[i]) || got[i-1] == got[i], "rank %d out of order", i)
	}
	assert.Equal(t, 1.0, got[len(got)-1].Score)
}

func TestScoreListUnknownDocument(t *testing.T) {
	var list ScoreList
	list.Add(7, 1)
	_, err := list.Finalize(idReader{missing: 7}, DefaultMaxResults)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}
