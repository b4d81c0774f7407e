// Command qryeval evaluates a file of structured queries against the index
// and writes a TREC run file, optionally expanding queries with
// pseudo-relevance feedback or reranking with a learned model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/batch"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/pipeline"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/runstore"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateBatch(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	start := time.Now()
	if err := run(ctx, cfg, m); err != nil {
		slog.Error("evaluation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("evaluation finished",
		"run_id", cfg.Search.RunID,
		"output", cfg.Search.OutputPath,
		"elapsed", time.Since(start),
	)
}

func run(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	reader, err := indexer.OpenLatest(cfg.Index.DataDir)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer reader.Close()
	slog.Info("index opened",
		"segment", reader.Path(),
		"docs", reader.TotalDocCount(),
	)

	p, err := pipeline.FromConfig(cfg, reader, m)
	if err != nil {
		return err
	}
	queries, err := readQueries(cfg.Search.QueryFile)
	if err != nil {
		return err
	}

	var store *runstore.Store
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		store = runstore.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var outcomes []*pipeline.Outcome
	if cfg.LTR.Enabled {
		outcomes, err = rerank(ctx, cfg, reader, p, queries, m)
		if err == nil && store != nil {
			err = saveAll(ctx, store, cfg.Search.RunID, outcomes)
		}
	} else {
		var recorder batch.Recorder
		if store != nil {
			recorder = store
		}
		runner := batch.NewRunner(p, recorder, batch.Options{
			RunID:              cfg.Search.RunID,
			Concurrency:        cfg.Search.Concurrency,
			Timeout:            cfg.Search.Timeout,
			SkipInvalidQueries: cfg.Search.SkipInvalidQueries,
		})
		outcomes, err = runner.Run(ctx, queries)
	}
	if err != nil {
		return err
	}

	if err := writeFile(cfg.Search.OutputPath, func(f *os.File) error {
		return batch.WriteRun(f, cfg.Search.RunID, outcomes)
	}); err != nil {
		return err
	}
	if path := cfg.Retrieval.Feedback.ExpansionQueryFile; cfg.Retrieval.Feedback.Enabled && path != "" {
		return writeFile(path, func(f *os.File) error {
			return batch.WriteExpansions(f, outcomes)
		})
	}
	return nil
}

func rerank(ctx context.Context, cfg *config.Config, reader index.Reader, initial batch.Searcher, queries []batch.Query, m *metrics.Metrics) ([]*pipeline.Outcome, error) {
	model, err := ranker.FromConfig(cfg.Retrieval)
	if err != nil {
		return nil, err
	}
	trainQueries, err := readQueries(cfg.LTR.TrainingQueries)
	if err != nil {
		return nil, err
	}
	var qrels map[string][]ltr.Judgment
	if err := readFile(cfg.LTR.TrainingQrels, func(f *os.File) (err error) {
		qrels, err = ltr.ReadQrels(f)
		return err
	}); err != nil {
		return nil, err
	}
	var pageRank map[string]float64
	if cfg.LTR.PageRankFile != "" {
		if err := readFile(cfg.LTR.PageRankFile, func(f *os.File) (err error) {
			pageRank, err = ltr.ReadPageRank(f)
			return err
		}); err != nil {
			return nil, err
		}
	}

	extractor := ltr.NewExtractor(reader, model, pageRank, m)
	svm := ltr.NewSVMRank(cfg.LTR.LearnPath, cfg.LTR.ClassifyPath, cfg.LTR.C)
	rr := ltr.NewReranker(extractor, svm, initial, ltr.FilesFromConfig(cfg.LTR), cfg.LTR.FeatureDisable)

	if err := rr.Train(ctx, trainQueries, qrels); err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	return rr.Rerank(ctx, queries)
}

func saveAll(ctx context.Context, store *runstore.Store, runID string, outcomes []*pipeline.Outcome) error {
	for _, out := range outcomes {
		if err := store.Save(ctx, runID, out.QueryID, out.Results); err != nil {
			return err
		}
	}
	return nil
}

func readQueries(path string) ([]batch.Query, error) {
	var queries []batch.Query
	err := readFile(path, func(f *os.File) (err error) {
		queries, err = batch.ReadQueries(f)
		return err
	})
	return queries, err
}

func readFile(path string, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return errors.Join(f.Sync(), f.Close())
}
