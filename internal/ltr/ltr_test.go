package ltr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/batch"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/pipeline"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
)

var bm25Indri = ranker.Model{
	Kind:  ranker.BM25,
	BM25:  ranker.BM25Params{K1: 1.2, B: 0.75},
	Indri: ranker.IndriParams{Mu: 2500, Lambda: 0.4},
}

func webIndex(t *testing.T) *index.MemoryIndex {
	t.Helper()
	idx := index.NewMemoryIndex()
	docs := []index.Document{
		{
			ID:         "wiki-dog",
			Fields:     map[string]string{index.FieldBody: "dog breed dog kennel", index.FieldTitle: "dog"},
			Attributes: map[string]string{"score": "75", "rawUrl": "http://en.wikipedia.org/wiki/Dog"},
		},
		{
			ID:         "pet-shop",
			Fields:     map[string]string{index.FieldBody: "cat food dog food"},
			Attributes: map[string]string{"score": "20", "rawUrl": "http://pets.example.com/shop"},
		},
		{
			ID:     "car",
			Fields: map[string]string{index.FieldBody: "engine wheel"},
		},
	}
	for _, d := range docs {
		_, err := idx.AddDocument(d)
		require.NoError(t, err)
	}
	return idx
}

func TestExtract(t *testing.T) {
	idx := webIndex(t)
	x := NewExtractor(idx, bm25Indri, map[string]float64{"wiki-dog": 3.5}, nil)

	v, err := x.Extract([]string{"dog", "kennel"}, "wiki-dog")
	require.NoError(t, err)
	assert.Equal(t, 75.0, v[FeatureSpam-1])
	assert.Equal(t, 4.0, v[FeatureURLDepth-1])
	assert.Equal(t, 1.0, v[FeatureWikipedia-1])
	assert.Equal(t, 3.5, v[FeaturePageRank-1])

	assert.Greater(t, v[FeatureBodyBM25-1], 0.0)
	assert.Greater(t, v[FeatureBodyBM25], 0.0)
	assert.Equal(t, 1.0, v[FeatureBodyBM25+1], "body overlap")
	assert.Equal(t, 0.5, v[FeatureBodyBM25+4], "title overlap")
	for f := 11; f <= NumFeatures; f++ {
		assert.True(t, IsUnavailable(v[f-1]), "feature %d has no field to score", f)
	}
}

func TestBM25FeatureCountsOnlyDocumentsWithTheField(t *testing.T) {
	idx := webIndex(t)
	x := NewExtractor(idx, bm25Indri, nil, nil)
	v, err := x.Extract([]string{"dog"}, "wiki-dog")
	require.NoError(t, err)

	// Only wiki-dog has a title, and "dog" is in it, so its idf is zero.
	require.Equal(t, 1, idx.DocCount(index.FieldTitle))
	assert.Equal(t, 0.0, v[FeatureBodyBM25+2], "title bm25")

	got, err := x.bm25Feature([]string{"dog"}, map[string]int{"dog": 2}, 0, index.FieldBody)
	require.NoError(t, err)
	avg := float64(idx.SumFieldLengths(index.FieldBody)) / float64(idx.DocCount(index.FieldBody))
	want := ranker.BM25TermScore(bm25Indri.BM25, 2, 2, idx.DocCount(index.FieldBody), 4, avg)
	assert.InDelta(t, want, got, 1e-12)
}

func TestExtractIndriZeroWithoutMatches(t *testing.T) {
	x := NewExtractor(webIndex(t), bm25Indri, nil, nil)
	v, err := x.Extract([]string{"dog"}, "car")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v[FeatureBodyBM25])
	assert.Equal(t, 0.0, v[FeatureBodyBM25+1])
	assert.True(t, IsUnavailable(v[FeatureSpam-1]))
	assert.True(t, IsUnavailable(v[FeaturePageRank-1]))
}

func TestExtractMissingDocument(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	x := NewExtractor(webIndex(t), bm25Indri, nil, m)
	v, err := x.Extract([]string{"dog"}, "nowhere")
	require.NoError(t, err)
	for _, f := range v {
		assert.True(t, IsUnavailable(f))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LTRUnavailableFeature.WithLabelValues("document")))
}

func TestNormalize(t *testing.T) {
	var a, b, c Vector
	a[0], b[0], c[0] = 10, 20, 15
	a[1], b[1], c[1] = 5, 5, 5
	a[2], b[2], c[2] = Unavailable, 2, 4
	samples := []Sample{{QueryID: "1", Features: a}, {QueryID: "1", Features: b}, {QueryID: "2", Features: c}}

	Normalize(samples)
	assert.Equal(t, 0.0, samples[0].Features[0])
	assert.Equal(t, 1.0, samples[1].Features[0])
	assert.Equal(t, 0.0, samples[2].Features[0], "single sample query")
	assert.Equal(t, 0.0, samples[0].Features[1], "constant feature")
	assert.Equal(t, 0.0, samples[0].Features[2], "unavailable")
	assert.Equal(t, 0.0, samples[1].Features[2], "only one available value")
}

func TestWriteFeatures(t *testing.T) {
	var v Vector
	v[0], v[1] = 1, 0.25
	samples := []Sample{
		{QueryID: "10", ExternalID: "d2", Label: "2", Features: v},
		{QueryID: "9", ExternalID: "d1", Label: "0"},
	}
	SortByQuery(samples)

	var buf bytes.Buffer
	disabled := map[int]bool{}
	for f := 3; f <= NumFeatures; f++ {
		disabled[f] = true
	}
	require.NoError(t, WriteFeatures(&buf, samples, disabled))
	assert.Equal(t, "0 qid:9 1:0 2:0 # d1\n2 qid:10 1:1 2:0.25 # d2\n", buf.String())
}

func TestReadQrelsAndScores(t *testing.T) {
	qrels, err := ReadQrels(strings.NewReader("1 0 d1 2\n1 0 d2 0\n\n2 0 d3 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []Judgment{{"d1", "2"}, {"d2", "0"}}, qrels["1"])
	assert.Len(t, qrels["2"], 1)

	_, err = ReadQrels(strings.NewReader("1 0 d1\n"))
	assert.Error(t, err)

	scores, err := ReadScores(strings.NewReader("1.5\n-0.25\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -0.25}, scores)

	ranks, err := ReadPageRank(strings.NewReader("d1 0.5\nd2\t1e-3\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"d1": 0.5, "d2": 0.001}, ranks)
}

// reverseRanker scores later lines higher and records the calls.
type reverseRanker struct {
	trained bool
}

func (r *reverseRanker) Train(_ context.Context, featureFile, modelFile string) error {
	if _, err := os.Stat(featureFile); err != nil {
		return err
	}
	r.trained = true
	return os.WriteFile(modelFile, []byte("model"), 0o644)
}

func (r *reverseRanker) Classify(_ context.Context, featureFile, _, scoreFile string) error {
	data, err := os.ReadFile(featureFile)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var out strings.Builder
	for i := range lines {
		fmt.Fprintf(&out, "%d\n", i)
	}
	return os.WriteFile(scoreFile, []byte(out.String()), 0o644)
}

func TestRerank(t *testing.T) {
	idx := webIndex(t)
	dir := t.TempDir()
	files := Files{
		TrainFeatures: filepath.Join(dir, "train.txt"),
		TestFeatures:  filepath.Join(dir, "test.txt"),
		Model:         filepath.Join(dir, "model"),
		Scores:        filepath.Join(dir, "scores"),
	}
	p, err := pipeline.New(executor.New(idx, bm25Indri, 0))
	require.NoError(t, err)
	r := &reverseRanker{}
	rr := NewReranker(NewExtractor(idx, bm25Indri, nil, nil), r, p, files, []int{4})

	queries := []batch.Query{{ID: "1", Text: "dog"}}
	require.NoError(t, rr.Train(context.Background(), queries, map[string][]Judgment{"1": {{"wiki-dog", "2"}, {"car", "0"}}}))
	assert.True(t, r.trained)
	train, err := os.ReadFile(files.TrainFeatures)
	require.NoError(t, err)
	assert.NotContains(t, string(train), " 4:")
	assert.Contains(t, string(train), "2 qid:1 1:")

	initial, err := p.Search(context.Background(), "1", "dog")
	require.NoError(t, err)
	require.Len(t, initial.Results, 2)

	outcomes, err := rr.Rerank(context.Background(), queries)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	got := outcomes[0].Results
	require.Len(t, got, 2)
	assert.Equal(t, initial.Results[1].ExternalID, got[0].ExternalID)
	assert.Equal(t, 1.0, got[0].Score)
}
