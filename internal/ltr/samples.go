package ltr

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// Sample is one judged or ranked document of one query.
type Sample struct {
	QueryID    string
	ExternalID string
	Label      string
	Features   Vector
}

// Normalize rescales every feature to [0, 1] across the samples of each
// query. Unavailable values, and features that are constant within a
// query, become 0.
func Normalize(samples []Sample) {
	byQuery := make(map[string][]int)
	for i, s := range samples {
		byQuery[s.QueryID] = append(byQuery[s.QueryID], i)
	}
	for _, idxs := range byQuery {
		for f := 0; f < NumFeatures; f++ {
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, i := range idxs {
				v := samples[i].Features[f]
				if IsUnavailable(v) {
					continue
				}
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
			for _, i := range idxs {
				v := samples[i].Features[f]
				if IsUnavailable(v) || lo == hi {
					samples[i].Features[f] = 0
					continue
				}
				samples[i].Features[f] = (v - lo) / (hi - lo)
			}
		}
	}
}

// SortByQuery orders samples by query id, numerically when both ids are
// numbers, keeping the input order within a query.
func SortByQuery(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return queryLess(samples[i].QueryID, samples[j].QueryID)
	})
}

func queryLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// WriteFeatures writes samples in the SVM-rank input format
// "label qid:Q 1:v 2:v ... # externalId", skipping disabled features.
func WriteFeatures(w io.Writer, samples []Sample, disabled map[int]bool) error {
	bw := bufio.NewWriter(w)
	for _, s := range samples {
		fmt.Fprintf(bw, "%s qid:%s", s.Label, s.QueryID)
		for f := 1; f <= NumFeatures; f++ {
			if disabled[f] {
				continue
			}
			fmt.Fprintf(bw, " %d:%s", f, strconv.FormatFloat(s.Features[f-1], 'g', -1, 64))
		}
		fmt.Fprintf(bw, " # %s\n", s.ExternalID)
	}
	return bw.Flush()
}

// WriteFeatureFile writes samples to path.
func WriteFeatureFile(path string, samples []Sample, disabled map[int]bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating feature file: %w", err)
	}
	if err := WriteFeatures(f, samples, disabled); err != nil {
		f.Close()
		return fmt.Errorf("writing feature file: %w", err)
	}
	return f.Close()
}

// Judgment is one relevance judgment.
type Judgment struct {
	ExternalID string
	Label      string
}

// ReadQrels parses "queryId iteration externalDocId relevance" lines.
func ReadQrels(r io.Reader) (map[string][]Judgment, error) {
	qrels := make(map[string][]Judgment)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"qrels line %d has %d fields, want 4", lineNo, len(fields))
		}
		qrels[fields[0]] = append(qrels[fields[0]], Judgment{ExternalID: fields[2], Label: fields[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading qrels: %w", err)
	}
	return qrels, nil
}

// ReadPageRank parses "externalDocId score" lines.
func ReadPageRank(r io.Reader) (map[string]float64, error) {
	ranks := make(map[string]float64)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"page rank line %d: want document id and score", lineNo)
		}
		score, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"page rank line %d: bad score %q", lineNo, fields[1])
		}
		ranks[fields[0]] = score
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading page rank: %w", err)
	}
	return ranks, nil
}

// ReadScores parses one score per line, as written by a ranker's
// classifier.
func ReadScores(r io.Reader) ([]float64, error) {
	var scores []float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		score, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "bad ranker score %q", line)
		}
		scores = append(scores, score)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading scores: %w", err)
	}
	return scores, nil
}
