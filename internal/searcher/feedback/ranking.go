package feedback

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// InitialRanking holds a previously produced run, keyed by query id, in
// file order.
type InitialRanking map[string][]ranker.ScoredDoc

// LoadInitialRanking reads a run file in the
// "queryId Q0 externalDocId rank score runId" format.
func LoadInitialRanking(path string) (InitialRanking, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening initial ranking: %w", err)
	}
	defer f.Close()
	return ReadInitialRanking(f)
}

// ReadInitialRanking parses run lines from r. Blank lines are ignored.
func ReadInitialRanking(r io.Reader) (InitialRanking, error) {
	ranking := make(InitialRanking)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 5 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"initial ranking line %d has %d fields, want at least 5", lineNo, len(fields))
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"initial ranking line %d: bad score %q", lineNo, fields[4])
		}
		qid := fields[0]
		ranking[qid] = append(ranking[qid], ranker.ScoredDoc{DocID: -1, ExternalID: fields[2], Score: score})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading initial ranking: %w", err)
	}
	return ranking, nil
}

// Top returns at most n documents ranked for qid.
func (r InitialRanking) Top(qid string, n int) []ranker.ScoredDoc {
	docs := r[qid]
	if n < len(docs) {
		docs = docs[:n]
	}
	return docs
}
