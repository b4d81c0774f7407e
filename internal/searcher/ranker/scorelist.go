package ranker

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/merger"
)

// DefaultMaxResults is the number of documents kept per query.
const DefaultMaxResults = 100

// ScoredDoc is one ranked document.
type ScoredDoc struct {
	DocID      int     `json:"-"`
	ExternalID string  `json:"doc_id"`
	Score      float64 `json:"score"`
}

// ScoreList collects document scores for one query in any order.
type ScoreList struct {
	entries []ScoredDoc
}

// Add records a score for an internal document id.
func (s *ScoreList) Add(docID int, score float64) {
	s.entries = append(s.entries, ScoredDoc{DocID: docID, Score: score})
}

// Len returns the number of documents added so far.
func (s *ScoreList) Len() int { return len(s.entries) }

// Finalize resolves external ids and returns at most maxResults documents
// ordered by score descending, then external id ascending.
func (s *ScoreList) Finalize(reader index.Reader, maxResults int) ([]ScoredDoc, error) {
	for i := range s.entries {
		ext, err := reader.ExternalID(s.entries[i].DocID)
		if err != nil {
			return nil, fmt.Errorf("resolving external id for %d: %w", s.entries[i].DocID, err)
		}
		s.entries[i].ExternalID = ext
	}
	return merger.TopK(s.entries, maxResults, Better), nil
}

// Better is the ranking order: higher score first, ties by ascending
// external id.
func Better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ExternalID < b.ExternalID
}
