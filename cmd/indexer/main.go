package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	mode := flag.String("mode", "load", "load: index the documents file; publish: send it to kafka; consume: index from kafka")
	docsPath := flag.String("docs", "", "JSON-lines documents file (overrides index.documentsFile)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *docsPath != "" {
		cfg.Index.DocumentsFile = *docsPath
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	switch *mode {
	case "load":
		err = load(ctx, cfg, m)
	case "publish":
		err = publish(ctx, cfg)
	case "consume":
		err = consume(ctx, cfg, m)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		slog.Error("indexer failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped", "mode", *mode)
}

func load(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	if cfg.Index.DocumentsFile == "" {
		return errors.New("no documents file configured")
	}
	f, err := os.Open(cfg.Index.DocumentsFile)
	if err != nil {
		return fmt.Errorf("opening documents: %w", err)
	}
	defer f.Close()

	engine, err := indexer.NewEngine(cfg.Index, m)
	if err != nil {
		return err
	}
	count, err := engine.IndexJSONL(ctx, f)
	if err != nil {
		engine.Close()
		return err
	}
	if err := engine.Close(); err != nil {
		return err
	}
	slog.Info("documents indexed",
		"count", count,
		"segment", engine.SegmentPath(),
	)
	return nil
}

func publish(ctx context.Context, cfg *config.Config) error {
	if !cfg.Kafka.Enabled {
		return errors.New("kafka is disabled")
	}
	docs, err := readDocuments(cfg.Index.DocumentsFile)
	if err != nil {
		return err
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()

	sent, err := consumer.PublishDocuments(ctx, producer, docs, 100)
	if err != nil {
		return fmt.Errorf("publishing after %d documents: %w", sent, err)
	}
	slog.Info("documents published",
		"count", sent,
		"topic", cfg.Kafka.Topics.DocumentIngest,
	)
	return nil
}

func consume(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	if !cfg.Kafka.Enabled {
		return errors.New("kafka is disabled")
	}
	engine, err := indexer.NewEngine(cfg.Index, m)
	if err != nil {
		return err
	}
	defer engine.Close()
	engine.StartFlushLoop(ctx)

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		consumer.HandleMessage(engine),
	)
	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := indexConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consumer: %w", err)
	}
	return nil
}

func readDocuments(path string) ([]index.Document, error) {
	if path == "" {
		return nil, errors.New("no documents file configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening documents: %w", err)
	}
	defer f.Close()

	var docs []index.Document
	dec := json.NewDecoder(f)
	for {
		var doc index.Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, fmt.Errorf("decoding document %d: %w", len(docs)+1, err)
		}
		docs = append(docs, doc)
	}
}
