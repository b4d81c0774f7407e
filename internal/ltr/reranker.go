package ltr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/batch"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/pipeline"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// Files locates the intermediate files exchanged with the Ranker.
type Files struct {
	TrainFeatures string
	TestFeatures  string
	Model         string
	Scores        string
}

// FilesFromConfig copies the file locations from cfg.
func FilesFromConfig(cfg config.LTRConfig) Files {
	return Files{
		TrainFeatures: cfg.TrainFeatureFile,
		TestFeatures:  cfg.TestFeatureFile,
		Model:         cfg.ModelFile,
		Scores:        cfg.ScoreFile,
	}
}

// Reranker trains a ranking model on judged documents and reorders an
// initial ranking with it.
type Reranker struct {
	extractor *Extractor
	ranker    Ranker
	initial   batch.Searcher
	files     Files
	disabled  map[int]bool
	logger    *slog.Logger
}

// NewReranker returns a Reranker that takes candidate documents from
// initial.
func NewReranker(extractor *Extractor, r Ranker, initial batch.Searcher, files Files, disabled []int) *Reranker {
	off := make(map[int]bool, len(disabled))
	for _, f := range disabled {
		off[f] = true
	}
	return &Reranker{
		extractor: extractor,
		ranker:    r,
		initial:   initial,
		files:     files,
		disabled:  off,
		logger:    slog.Default().With("component", "ltr-reranker"),
	}
}

// Train writes the training feature file for the judged documents of
// queries and trains the model.
func (r *Reranker) Train(ctx context.Context, queries []batch.Query, qrels map[string][]Judgment) error {
	var samples []Sample
	for _, q := range queries {
		terms := tokenizer.Terms(q.Text)
		for _, j := range qrels[q.ID] {
			v, err := r.extractor.Extract(terms, j.ExternalID)
			if err != nil {
				return fmt.Errorf("query %s: %w", q.ID, err)
			}
			samples = append(samples, Sample{QueryID: q.ID, ExternalID: j.ExternalID, Label: j.Label, Features: v})
		}
	}
	Normalize(samples)
	SortByQuery(samples)
	if err := WriteFeatureFile(r.files.TrainFeatures, samples, r.disabled); err != nil {
		return err
	}
	r.logger.Info("training features written", "samples", len(samples), "path", r.files.TrainFeatures)
	return r.ranker.Train(ctx, r.files.TrainFeatures, r.files.Model)
}

// Rerank scores the initial ranking of every query with the trained model
// and returns the reordered outcomes in input order.
func (r *Reranker) Rerank(ctx context.Context, queries []batch.Query) ([]*pipeline.Outcome, error) {
	outcomes := make([]*pipeline.Outcome, len(queries))
	var samples []Sample
	for i, q := range queries {
		out, err := r.initial.Search(ctx, q.ID, q.Text)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.ID, err)
		}
		outcomes[i] = out
		terms := tokenizer.Terms(q.Text)
		for _, d := range out.Results {
			v, err := r.extractor.Extract(terms, d.ExternalID)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", q.ID, err)
			}
			samples = append(samples, Sample{QueryID: q.ID, ExternalID: d.ExternalID, Label: "0", Features: v})
		}
	}
	Normalize(samples)
	if err := WriteFeatureFile(r.files.TestFeatures, samples, r.disabled); err != nil {
		return nil, err
	}
	if err := r.ranker.Classify(ctx, r.files.TestFeatures, r.files.Model, r.files.Scores); err != nil {
		return nil, err
	}

	scores, err := r.readScores()
	if err != nil {
		return nil, err
	}
	if len(scores) != len(samples) {
		return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError,
			"ranker returned %d scores for %d documents", len(scores), len(samples))
	}

	next := 0
	for _, out := range outcomes {
		for j := range out.Results {
			out.Results[j].Score = scores[next]
			next++
		}
		out.Results = merger.TopK(out.Results, len(out.Results), ranker.Better)
	}
	return outcomes, nil
}

func (r *Reranker) readScores() ([]float64, error) {
	f, err := os.Open(r.files.Scores)
	if err != nil {
		return nil, fmt.Errorf("opening ranker scores: %w", err)
	}
	defer f.Close()
	return ReadScores(f)
}
