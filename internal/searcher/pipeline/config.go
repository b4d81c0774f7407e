package pipeline

import (
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/feedback"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
)

// FromConfig builds the model, executor and optional feedback stage that
// cfg describes over reader. m may be nil.
func FromConfig(cfg *config.Config, reader index.Reader, m *metrics.Metrics) (*Pipeline, error) {
	model, err := ranker.FromConfig(cfg.Retrieval)
	if err != nil {
		return nil, err
	}
	exec := executor.New(reader, model, cfg.Search.MaxResults)

	opts := []Option{WithMetrics(m)}
	if fb := cfg.Retrieval.Feedback; fb.Enabled {
		var initial feedback.InitialRanking
		if fb.InitialRankingFile != "" {
			initial, err = feedback.LoadInitialRanking(fb.InitialRankingFile)
			if err != nil {
				return nil, err
			}
		}
		x := feedback.NewExpander(reader, feedback.ParamsFromConfig(fb), m)
		opts = append(opts, WithFeedback(x, initial))
	}
	return New(exec, opts...)
}
