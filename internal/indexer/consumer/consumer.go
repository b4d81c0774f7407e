// Package consumer reads document-ingest events from Kafka and indexes them
// via the indexer engine.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/resilience"
)

// IngestEvent is the Kafka message payload describing one document to
// index. Fields maps field names (body, title, url, keywords, inlink) to
// their text.
type IngestEvent struct {
	DocumentID string            `json:"document_id"`
	Fields     map[string]string `json:"fields"`
	Attributes map[string]string `json:"attributes,omitempty"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// Document converts the event to the indexer's input type.
func (e IngestEvent) Document() index.Document {
	return index.Document{
		ID:         e.DocumentID,
		Fields:     e.Fields,
		Attributes: e.Attributes,
	}
}

// DocumentIndexer is the part of the indexer engine the consumer drives.
type DocumentIndexer interface {
	IndexDocument(doc index.Document) error
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that indexes every ingest
// event. Undecodable messages are logged and acknowledged so they do not
// block the partition. Indexing failures are returned for the consumer to
// retry, except duplicates, which are marked permanent.
func HandleMessage(engine DocumentIndexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.DocumentID == "" {
			logger.Error("ingest event without document id", "key", string(key))
			return nil
		}
		if err := engine.IndexDocument(event.Document()); err != nil {
			err = fmt.Errorf("indexing document %s: %w", event.DocumentID, err)
			if errors.Is(err, apperrors.ErrDocumentExists) {
				return resilience.Permanent(err)
			}
			return err
		}
		logger.Debug("document indexed",
			"doc_id", event.DocumentID,
			"fields", len(event.Fields),
		)
		return nil
	}
}

// EventPublisher is the part of the Kafka producer used to feed the
// ingest topic.
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// PublishDocuments sends docs to the ingest topic in batches of batchSize.
// A failed batch is retried before the error is returned.
func PublishDocuments(ctx context.Context, p EventPublisher, docs []index.Document, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	sent := 0
	now := time.Now().UTC()
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		events := make([]kafka.Event, 0, end-start)
		for _, d := range docs[start:end] {
			events = append(events, kafka.Event{
				Key: d.ID,
				Value: IngestEvent{
					DocumentID: d.ID,
					Fields:     d.Fields,
					Attributes: d.Attributes,
					IngestedAt: now,
				},
			})
		}
		err := resilience.Retry(ctx, "publish documents", resilience.DefaultBackoff(), func(ctx context.Context) error {
			return p.PublishBatch(ctx, events)
		})
		if err != nil {
			return sent, err
		}
		sent += len(events)
	}
	return sent, nil
}
