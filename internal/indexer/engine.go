// Package indexer builds the multi-field inverted index from documents and
// persists it as segment files that the search side opens read-only.
package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
)

// Engine accumulates documents in a MemoryIndex and flushes the whole index
// to a new segment. Older segments are removed once the new one is durable,
// so the data directory always holds one complete index.
type Engine struct {
	mu       sync.Mutex
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	cfg      config.IndexConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	pending  int
	current  string
}

// NewEngine opens the data directory and resumes from its latest segment,
// if any. m may be nil.
func NewEngine(cfg config.IndexConfig, m *metrics.Metrics) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	writer, err := segment.NewWriter(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(),
		writer:   writer,
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "indexer"),
	}
	if err := e.loadLatestSegment(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("loading existing segment: %w", err)
	}
	return e, nil
}

// IndexDocument adds one document to the in-memory index.
func (e *Engine) IndexDocument(doc index.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document has no id")
	}
	docID, err := e.memIndex.AddDocument(doc)
	if err != nil {
		return fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	e.mu.Lock()
	e.pending++
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
		e.metrics.IndexDocumentCount.Set(float64(e.memIndex.TotalDocCount()))
	}
	e.logger.Debug("document indexed in memory",
		"doc_id", doc.ID,
		"internal_id", docID,
		"mem_size", e.memIndex.Size(),
	)
	return nil
}

// IndexJSONL indexes one Document per line of r. Blank lines are skipped;
// a malformed line aborts the load.
func (e *Engine) IndexJSONL(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	count := 0
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return count, err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc index.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return count, fmt.Errorf("line %d: decoding document: %w", line, err)
		}
		if err := e.IndexDocument(doc); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading documents: %w", err)
	}
	return count, nil
}

// Flush writes the full in-memory index to a new segment when documents
// were added since the last flush.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == 0 {
		return nil
	}
	entries, docs := e.memIndex.Snapshot()
	segmentName, err := e.writer.Write(entries, docs)
	if err != nil {
		e.recordFlush("error")
		return fmt.Errorf("writing segment: %w", err)
	}
	previous := e.current
	e.current = filepath.Join(e.cfg.DataDir, segmentName)
	e.pending = 0
	e.recordFlush("ok")

	if previous != "" && previous != e.current {
		if err := os.Remove(previous); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("removing superseded segment", "segment", previous, "error", err)
		}
	}
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", len(entries),
		"docs", len(docs),
	)
	return nil
}

func (e *Engine) recordFlush(status string) {
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}

// Reader exposes the live in-memory index.
func (e *Engine) Reader() index.Reader {
	return e.memIndex
}

// SegmentPath is the most recently written or loaded segment, or "".
func (e *Engine) SegmentPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) StartFlushLoop(ctx context.Context) {
	if e.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.Flush(); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

func (e *Engine) Close() error {
	err := e.Flush()
	if err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	if cerr := e.writer.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (e *Engine) loadLatestSegment() error {
	path, err := segment.Latest(e.cfg.DataDir)
	if err != nil || path == "" {
		return err
	}
	reader, err := segment.OpenReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()
	entries, docs, err := reader.Snapshot()
	if err != nil {
		return err
	}
	mem, err := index.Restore(entries, docs)
	if err != nil {
		return err
	}
	e.memIndex = mem
	e.current = path
	e.logger.Info("loaded existing segment",
		"segment", filepath.Base(path),
		"terms", reader.Terms(),
		"docs", reader.TotalDocCount(),
	)
	return nil
}

// OpenLatest opens the newest segment in dataDir for read-only serving.
func OpenLatest(dataDir string) (*segment.Reader, error) {
	path, err := segment.Latest(dataDir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("no segment found in %s", dataDir)
	}
	return segment.OpenReader(path)
}
