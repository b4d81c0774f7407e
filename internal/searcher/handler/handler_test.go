package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/pipeline"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/middleware"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	idx := index.NewMemoryIndex()
	for id, body := range map[string]string{"d1": "red apple", "d2": "green apple", "d3": "red car"} {
		_, err := idx.AddDocument(index.Document{ID: id, Fields: map[string]string{index.FieldBody: body}})
		require.NoError(t, err)
	}
	p, err := pipeline.New(executor.New(idx, ranker.Model{Kind: ranker.RankedBoolean}, 0))
	require.NoError(t, err)
	return New(p, 100)
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearch(t *testing.T) {
	h := middleware.RequestID(http.HandlerFunc(newHandler(t).Search))
	rec := get(h, "/api/v1/search?q=%23and(red+apple)&qid=q1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	var out pipeline.Outcome
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "q1", out.QueryID)
	assert.Equal(t, "#and( red.body appl.body )", out.Tree)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "d1", out.Results[0].ExternalID)
}

func TestSearchLimit(t *testing.T) {
	h := http.HandlerFunc(newHandler(t).Search)
	rec := get(h, "/api/v1/search?q=red+apple&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var out pipeline.Outcome
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, 3, out.TotalHits)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, "d1", out.Results[0].ExternalID)
}

func TestSearchRejectsBadInput(t *testing.T) {
	h := http.HandlerFunc(newHandler(t).Search)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=red&limit=0",
		"/api/v1/search?q=%23and(red",
		"/api/v1/search?q=%23wand(1+red+1+car)",
	} {
		rec := get(h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "error", target)
	}
}

type failingSearcher struct{ err error }

func (f failingSearcher) Search(context.Context, string, string) (*pipeline.Outcome, error) {
	return nil, f.err
}

func TestSearchInternalErrorsAreHidden(t *testing.T) {
	h := http.HandlerFunc(New(failingSearcher{err: apperrors.ErrCorruptSegment}, 100).Search)
	rec := get(h, "/api/v1/search?q=red")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "corrupt")

	h = http.HandlerFunc(New(failingSearcher{err: context.DeadlineExceeded}, 100).Search)
	assert.Equal(t, http.StatusGatewayTimeout, get(h, "/api/v1/search?q=red").Code)
}
