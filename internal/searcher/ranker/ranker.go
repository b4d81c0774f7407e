// Package ranker holds the retrieval models, their leaf scoring formulas
// and the per-query score list.
package ranker

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// ModelKind identifies a retrieval model.
type ModelKind int

const (
	UnrankedBoolean ModelKind = iota
	RankedBoolean
	BM25
	Indri
)

var modelNames = map[ModelKind]string{
	UnrankedBoolean: "UnrankedBoolean",
	RankedBoolean:   "RankedBoolean",
	BM25:            "BM25",
	Indri:           "Indri",
}

func (k ModelKind) String() string {
	if name, ok := modelNames[k]; ok {
		return name
	}
	return fmt.Sprintf("model(%d)", int(k))
}

// ParseModelKind matches a configured algorithm name case-insensitively.
func ParseModelKind(name string) (ModelKind, error) {
	for kind, n := range modelNames {
		if strings.EqualFold(n, name) {
			return kind, nil
		}
	}
	return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown retrieval algorithm %q", name)
}

// BM25Params are the Okapi BM25 parameters. K3 is accepted but has no
// effect because query terms are not repeated with counts.
type BM25Params struct {
	K1 float64
	B  float64
	K3 float64
}

// IndriParams are the Dirichlet (Mu) and Jelinek-Mercer (Lambda) smoothing
// parameters.
type IndriParams struct {
	Mu     float64
	Lambda float64
}

// Model is a retrieval model with its parameters.
type Model struct {
	Kind  ModelKind
	BM25  BM25Params
	Indri IndriParams
}

// FromConfig builds the model selected by cfg.Algorithm.
func FromConfig(cfg config.RetrievalConfig) (Model, error) {
	kind, err := ParseModelKind(cfg.Algorithm)
	if err != nil {
		return Model{}, err
	}
	return Model{
		Kind:  kind,
		BM25:  BM25Params{K1: cfg.BM25.K1, B: cfg.BM25.B, K3: cfg.BM25.K3},
		Indri: IndriParams{Mu: cfg.Indri.Mu, Lambda: cfg.Indri.Lambda},
	}, nil
}

// DefaultOperator is the operator that wraps every query for the model.
func (m Model) DefaultOperator() string {
	switch m.Kind {
	case BM25:
		return "#sum"
	case Indri:
		return "#and"
	default:
		return "#or"
	}
}

// IDF is the RSJ weight over the documents that have the field, floored
// at zero so very common terms never contribute negatively.
func IDF(fieldDocs, docFreq int) float64 {
	n, df := float64(fieldDocs), float64(docFreq)
	return math.Max(math.Log(n-df+0.5)-math.Log(df+0.5), 0)
}

// BM25TermScore scores one term occurrence count in one document.
func BM25TermScore(p BM25Params, tf, docFreq, fieldDocs int, docLen, avgDocLen float64) float64 {
	if tf == 0 {
		return 0
	}
	lengthNorm := 1.0
	if avgDocLen > 0 {
		lengthNorm = (1 - p.B) + p.B*docLen/avgDocLen
	}
	t := float64(tf)
	return IDF(fieldDocs, docFreq) * t / (t + p.K1*lengthNorm)
}

// CollectionPrior is the maximum likelihood estimate ctf/totlen, or zero
// when either is zero.
func CollectionPrior(ctf, totalLen int64) float64 {
	if ctf == 0 || totalLen == 0 {
		return 0
	}
	return float64(ctf) / float64(totalLen)
}

// IndriTermScore is the two-stage smoothed probability of a term in a
// document. With tf of zero it is the default score for that document.
func IndriTermScore(p IndriParams, tf int, prior, docLen float64) float64 {
	return (1-p.Lambda)*(float64(tf)+p.Mu*prior)/(docLen+p.Mu) + p.Lambda*prior
}
