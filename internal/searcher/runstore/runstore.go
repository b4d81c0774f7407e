// Package runstore persists ranked lists to PostgreSQL so runs can be
// compared after the fact.
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS rankings (
	run_id      TEXT             NOT NULL,
	query_id    TEXT             NOT NULL,
	rank        INTEGER          NOT NULL,
	doc_id      TEXT             NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (run_id, query_id, rank)
)`

var columns = []string{"run_id", "query_id", "rank", "doc_id", "score", "created_at"}

// Row is one ranked document of one query in one run.
type Row struct {
	RunID     string
	QueryID   string
	Rank      int
	DocID     string
	Score     float64
	CreatedAt time.Time
}

// Rows numbers docs from rank 1.
func Rows(runID, qid string, docs []ranker.ScoredDoc, now time.Time) []Row {
	rows := make([]Row, len(docs))
	for i, d := range docs {
		rows[i] = Row{RunID: runID, QueryID: qid, Rank: i + 1, DocID: d.ExternalID, Score: d.Score, CreatedAt: now}
	}
	return rows
}

func (r Row) values() []any {
	return []any{r.RunID, r.QueryID, r.Rank, r.DocID, r.Score, r.CreatedAt}
}

// Store writes rankings through a postgres.Client.
type Store struct {
	client *postgres.Client
	logger *slog.Logger
}

func New(client *postgres.Client) *Store {
	return &Store{client: client, logger: slog.Default().With("component", "runstore")}
}

// EnsureSchema creates the rankings table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.client.Migrate(ctx, schema)
}

// Save replaces the stored ranking of (runID, qid) with docs in one
// transaction.
func (s *Store) Save(ctx context.Context, runID, qid string, docs []ranker.ScoredDoc) error {
	rows := Rows(runID, qid, docs, time.Now().UTC())
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rankings WHERE run_id = $1 AND query_id = $2`, runID, qid); err != nil {
			return fmt.Errorf("clearing previous ranking: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("rankings", columns...))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.values()...); err != nil {
				return fmt.Errorf("copying rank %d: %w", row.Rank, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("flushing copy: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("ranking stored", "run_id", runID, "query_id", qid, "rows", len(rows))
	return nil
}
