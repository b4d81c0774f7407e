// Package ltr extracts learning-to-rank feature vectors and hands them to
// an external ranking toolkit.
package ltr

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
)

// NumFeatures is the number of features; they are numbered from 1.
const NumFeatures = 16

// Feature numbers. Fields repeat the BM25, Indri and overlap triple in the
// order body, title, url, inlink.
const (
	FeatureSpam = iota + 1
	FeatureURLDepth
	FeatureWikipedia
	FeaturePageRank
	FeatureBodyBM25
)

var featureFields = []string{index.FieldBody, index.FieldTitle, index.FieldURL, index.FieldInlink}

// Unavailable marks a feature that could not be computed for a document.
var Unavailable = math.NaN()

// IsUnavailable reports whether v is the Unavailable sentinel.
func IsUnavailable(v float64) bool { return math.IsNaN(v) }

// Vector holds feature i at index i-1.
type Vector [NumFeatures]float64

func unavailableVector() Vector {
	var v Vector
	for i := range v {
		v[i] = Unavailable
	}
	return v
}

// Extractor computes feature vectors for (query, document) pairs.
type Extractor struct {
	reader   index.Reader
	bm25     ranker.BM25Params
	indri    ranker.IndriParams
	pageRank map[string]float64
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewExtractor returns an Extractor. pageRank may be nil, in which case
// the PageRank feature is unavailable for every document; m may be nil.
func NewExtractor(reader index.Reader, model ranker.Model, pageRank map[string]float64, m *metrics.Metrics) *Extractor {
	return &Extractor{
		reader:   reader,
		bm25:     model.BM25,
		indri:    model.Indri,
		pageRank: pageRank,
		metrics:  m,
		logger:   slog.Default().With("component", "ltr-features"),
	}
}

// Extract computes every feature of one document for the normalised query
// terms. A document that is not in the index gets an all-unavailable
// vector.
func (x *Extractor) Extract(terms []string, externalID string) (Vector, error) {
	docID, err := x.reader.InternalID(externalID)
	if errors.Is(err, apperrors.ErrDocumentNotFound) {
		x.logger.Warn("ranked document not in index", "doc_id", externalID)
		x.unavailable("document")
		return unavailableVector(), nil
	}
	if err != nil {
		return Vector{}, err
	}

	v := unavailableVector()
	if spam, ok := x.reader.Attribute("score", docID); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(spam)); err == nil {
			v[FeatureSpam-1] = float64(n)
		}
	}
	if rawURL, ok := x.reader.Attribute("rawUrl", docID); ok {
		v[FeatureURLDepth-1] = float64(strings.Count(rawURL, "/"))
		v[FeatureWikipedia-1] = 0
		if strings.Contains(rawURL, "wikipedia.org") {
			v[FeatureWikipedia-1] = 1
		}
	}
	if pr, ok := x.pageRank[externalID]; ok {
		v[FeaturePageRank-1] = pr
	}

	for i, field := range featureFields {
		vector, err := x.reader.TermVector(docID, field)
		if err != nil {
			return Vector{}, fmt.Errorf("term vector %s/%s: %w", externalID, field, err)
		}
		if len(vector) == 0 || len(terms) == 0 {
			continue
		}
		tfs := make(map[string]int, len(vector))
		for _, tf := range vector {
			tfs[tf.Term] = tf.Frequency
		}
		base := FeatureBodyBM25 - 1 + 3*i
		if v[base], err = x.bm25Feature(terms, tfs, docID, field); err != nil {
			return Vector{}, err
		}
		if v[base+1], err = x.indriFeature(terms, tfs, docID, field); err != nil {
			return Vector{}, err
		}
		v[base+2] = overlap(terms, tfs)
	}

	for i, f := range v {
		if IsUnavailable(f) {
			x.unavailable(strconv.Itoa(i + 1))
		}
	}
	return v, nil
}

func (x *Extractor) unavailable(feature string) {
	if x.metrics != nil {
		x.metrics.LTRUnavailableFeature.WithLabelValues(feature).Inc()
	}
}

func (x *Extractor) bm25Feature(terms []string, tfs map[string]int, docID int, field string) (float64, error) {
	docLen := float64(x.reader.FieldLength(field, docID))
	fieldDocs := x.reader.DocCount(field)
	avgLen := 0.0
	if fieldDocs > 0 {
		avgLen = float64(x.reader.SumFieldLengths(field)) / float64(fieldDocs)
	}
	score := 0.0
	for _, term := range terms {
		tf, ok := tfs[term]
		if !ok {
			continue
		}
		stats, err := x.reader.TermStats(term, field)
		if err != nil {
			return 0, err
		}
		score += ranker.BM25TermScore(x.bm25, tf, stats.DocFreq, fieldDocs, docLen, avgLen)
	}
	return score, nil
}

// indriFeature is the geometric mean of the smoothed term probabilities,
// or zero when the field contains none of the terms.
func (x *Extractor) indriFeature(terms []string, tfs map[string]int, docID int, field string) (float64, error) {
	if overlap(terms, tfs) == 0 {
		return 0, nil
	}
	docLen := float64(x.reader.FieldLength(field, docID))
	totalLen := x.reader.SumFieldLengths(field)
	score := 1.0
	for _, term := range terms {
		stats, err := x.reader.TermStats(term, field)
		if err != nil {
			return 0, err
		}
		prior := ranker.CollectionPrior(stats.CollectionFreq, totalLen)
		score *= ranker.IndriTermScore(x.indri, tfs[term], prior, docLen)
	}
	return math.Pow(score, 1/float64(len(terms))), nil
}

// overlap is the fraction of query terms present in the field.
func overlap(terms []string, tfs map[string]int) float64 {
	matched := 0
	for _, term := range terms {
		if _, ok := tfs[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
