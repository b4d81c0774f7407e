package runstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
)

func TestRowsNumberFromOne(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := Rows("run-1", "q7", []ranker.ScoredDoc{
		{ExternalID: "doc-b", Score: 2.5},
		{ExternalID: "doc-a", Score: 1},
	}, now)

	assert.Equal(t, []Row{
		{RunID: "run-1", QueryID: "q7", Rank: 1, DocID: "doc-b", Score: 2.5, CreatedAt: now},
		{RunID: "run-1", QueryID: "q7", Rank: 2, DocID: "doc-a", Score: 1, CreatedAt: now},
	}, rows)
	assert.Len(t, rows[0].values(), len(columns))
}

func TestRowsEmpty(t *testing.T) {
	assert.Empty(t, Rows("run-1", "q7", nil, time.Now()))
}
