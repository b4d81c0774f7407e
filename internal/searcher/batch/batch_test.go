package batch

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/pipeline"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

func TestReadQueries(t *testing.T) {
	queries, err := ReadQueries(strings.NewReader("10:#and(dog cat)\n\n 11 :bird\n"))
	require.NoError(t, err)
	assert.Equal(t, []Query{{ID: "10", Text: "#and(dog cat)"}, {ID: "11", Text: "bird"}}, queries)

	_, err = ReadQueries(strings.NewReader("10:dog\n11 bird\n"))
	assert.ErrorIs(t, err, apperrors.ErrSyntax)
}

func TestWriteRun(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRun(&buf, "run-1", []*pipeline.Outcome{
		{QueryID: "10", Results: []ranker.ScoredDoc{{ExternalID: "d2", Score: 2.5}, {ExternalID: "d1", Score: 1}}},
		{QueryID: "11", Results: []ranker.ScoredDoc{}},
	})
	require.NoError(t, err)
	assert.Equal(t, "10 Q0 d2 1 2.5 run-1\n10 Q0 d1 2 1 run-1\n11 Q0 dummy 1 0 run-1\n", buf.String())
}

func TestWriteExpansions(t *testing.T) {
	var buf bytes.Buffer
	err := WriteExpansions(&buf, []*pipeline.Outcome{
		{QueryID: "10", Expansion: "#wand( 0.5 dog )"},
		{QueryID: "11"},
	})
	require.NoError(t, err)
	assert.Equal(t, "10 : #wand( 0.5 dog )\n", buf.String())
}

func newSearcher(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	idx := index.NewMemoryIndex()
	for id, body := range map[string]string{"d1": "dog cat", "d2": "dog", "d3": "bird"} {
		_, err := idx.AddDocument(index.Document{ID: id, Fields: map[string]string{index.FieldBody: body}})
		require.NoError(t, err)
	}
	p, err := pipeline.New(executor.New(idx, ranker.Model{Kind: ranker.RankedBoolean}, 0))
	require.NoError(t, err)
	return p
}

type memoryRecorder struct {
	mu   sync.Mutex
	runs map[string]int
}

func (m *memoryRecorder) Save(_ context.Context, runID, qid string, docs []ranker.ScoredDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID+"/"+qid] = len(docs)
	return nil
}

func TestRunKeepsInputOrder(t *testing.T) {
	rec := &memoryRecorder{runs: make(map[string]int)}
	r := NewRunner(newSearcher(t), rec, Options{RunID: "run-1", Concurrency: 3, Timeout: time.Second})
	queries := []Query{{"1", "dog"}, {"2", "#and(dog cat)"}, {"3", "fish"}, {"4", "bird"}}

	outcomes, err := r.Run(context.Background(), queries)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	for i, out := range outcomes {
		assert.Equal(t, queries[i].ID, out.QueryID)
	}
	assert.Len(t, outcomes[0].Results, 2)
	assert.Len(t, outcomes[1].Results, 1)
	assert.Empty(t, outcomes[2].Results)
	assert.Equal(t, map[string]int{"run-1/1": 2, "run-1/2": 1, "run-1/3": 0, "run-1/4": 1}, rec.runs)
}

func TestRunFailsOnInvalidQuery(t *testing.T) {
	r := NewRunner(newSearcher(t), nil, Options{RunID: "run-1", Concurrency: 2})
	_, err := r.Run(context.Background(), []Query{{"1", "dog"}, {"2", "#and(dog"}})
	assert.ErrorIs(t, err, apperrors.ErrSyntax)
}

func TestRunCanSkipInvalidQueries(t *testing.T) {
	r := NewRunner(newSearcher(t), nil, Options{RunID: "run-1", SkipInvalidQueries: true})
	outcomes, err := r.Run(context.Background(), []Query{{"1", "#and(dog"}, {"2", "#wand(1 dog 1 cat)"}, {"3", "dog"}})
	require.NoError(t, err)
	assert.Empty(t, outcomes[0].Results)
	assert.Empty(t, outcomes[1].Results)
	assert.Len(t, outcomes[2].Results, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, "run-1", outcomes))
	assert.True(t, strings.HasPrefix(buf.String(), "1 Q0 dummy 1 0 run-1\n2 Q0 dummy 1 0 run-1\n3 Q0 d1 1 1 run-1\n"))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(newSearcher(t), nil, Options{RunID: "run-1", SkipInvalidQueries: true})
	_, err := r.Run(ctx, []Query{{"1", "dog"}})
	assert.ErrorIs(t, err, context.Canceled)
}
