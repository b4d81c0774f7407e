// Package feedback implements pseudo-relevance feedback: expansion terms are
// drawn from the body term vectors of the top documents of an initial
// ranking and combined with the original query.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/metrics"
)

// Params controls how many documents and terms feed an expansion.
type Params struct {
	Docs       int
	Terms      int
	Mu         float64
	OrigWeight float64
}

// ParamsFromConfig copies the feedback settings.
func ParamsFromConfig(cfg config.FeedbackConfig) Params {
	return Params{Docs: cfg.Docs, Terms: cfg.Terms, Mu: cfg.Mu, OrigWeight: cfg.OrigWeight}
}

// Term is one weighted expansion term.
type Term struct {
	Term   string
	Weight float64
}

// Expansion is a ranked list of expansion terms.
type Expansion struct {
	Terms []Term
}

// String renders the expansion as a #wand query.
func (e Expansion) String() string {
	var b strings.Builder
	b.WriteString("#wand(")
	for _, t := range e.Terms {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(t.Weight, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(t.Term)
	}
	b.WriteString(" )")
	return b.String()
}

// Node returns the expansion as a #wand over body terms. Terms are index
// terms already, so they are not normalised again.
func (e Expansion) Node() *query.Node {
	weights := make([]float64, len(e.Terms))
	args := make([]*query.Node, len(e.Terms))
	for i, t := range e.Terms {
		weights[i] = t.Weight
		args[i] = query.NewTerm(t.Term, index.DefaultField)
	}
	return query.NewWeighted(query.KindWand, weights, args...)
}

// Combine weights the original query against the expansion:
// #wand( w #and( original ) 1-w expansion ).
func Combine(original *query.Node, e Expansion, origWeight float64) (*query.Node, error) {
	combined := query.NewWeighted(query.KindWand,
		[]float64{origWeight, 1 - origWeight},
		query.NewOperator(query.KindAnd, original),
		e.Node(),
	)
	tree := query.Optimize(combined)
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("combining expansion: %w", err)
	}
	return tree, nil
}

// Expander selects expansion terms.
type Expander struct {
	reader  index.Reader
	params  Params
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewExpander returns an Expander reading term vectors from reader. m may
// be nil.
func NewExpander(reader index.Reader, params Params, m *metrics.Metrics) *Expander {
	return &Expander{
		reader:  reader,
		params:  params,
		metrics: m,
		logger:  slog.Default().With("component", "feedback"),
	}
}

// Params returns the expander's settings.
func (x *Expander) Params() Params { return x.params }

type feedbackDoc struct {
	docID  int
	score  float64
	length float64
	tfs    map[string]int
}

type candidate struct {
	term  string
	score float64
}

// Expand scores every candidate term of the top documents in docs and
// keeps the best. Documents missing from the index are skipped.
func (x *Expander) Expand(ctx context.Context, docs []ranker.ScoredDoc) (Expansion, error) {
	log := logger.Enrich(ctx, x.logger)
	if len(docs) > x.params.Docs {
		docs = docs[:x.params.Docs]
	}

	var fbDocs []feedbackDoc
	var vocabulary []string
	seen := make(map[string]struct{})
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return Expansion{}, err
		}
		fd, err := x.load(d)
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			log.Warn("feedback document not in index, skipping", "doc_id", d.ExternalID)
			if x.metrics != nil {
				x.metrics.FeedbackMissingDocs.Inc()
			}
			continue
		}
		if err != nil {
			return Expansion{}, err
		}
		for term := range fd.tfs {
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				vocabulary = append(vocabulary, term)
			}
		}
		fbDocs = append(fbDocs, fd)
	}

	totalLen := float64(x.reader.SumFieldLengths(index.DefaultField))
	candidates := make([]candidate, 0, len(vocabulary))
	for _, term := range vocabulary {
		stats, err := x.reader.TermStats(term, index.DefaultField)
		if err != nil {
			return Expansion{}, fmt.Errorf("term stats for %q: %w", term, err)
		}
		if stats.CollectionFreq == 0 || totalLen == 0 {
			continue
		}
		ctf := float64(stats.CollectionFreq)
		mle := ctf / totalLen
		idf := math.Log(totalLen / ctf)
		score := 0.0
		for _, fd := range fbDocs {
			tf := float64(fd.tfs[term])
			score += (tf + x.params.Mu*mle) / (fd.length + x.params.Mu) * fd.score * idf
		}
		candidates = append(candidates, candidate{term: term, score: score})
	}

	best := merger.TopK(candidates, x.params.Terms, func(a, b candidate) bool {
		if a.score != b.score {
			return a.score > b.score
		}
		return a.term < b.term
	})
	// Weights are kept at four decimals so the file and the evaluated
	// query agree; a term that rounds to zero adds nothing.
	var exp Expansion
	for _, c := range best {
		w := math.Round(c.score*1e4) / 1e4
		if w > 0 {
			exp.Terms = append(exp.Terms, Term{Term: c.term, Weight: w})
		}
	}
	if x.metrics != nil && len(exp.Terms) > 0 {
		x.metrics.FeedbackExpansions.Inc()
	}
	log.Debug("expansion built", "documents", len(fbDocs), "candidates", len(candidates), "terms", len(exp.Terms))
	return exp, nil
}

// load resolves a ranked document and reads its body term vector. Terms
// containing '.' or ',' are not expansion candidates.
func (x *Expander) load(d ranker.ScoredDoc) (feedbackDoc, error) {
	docID, err := x.reader.InternalID(d.ExternalID)
	if err != nil {
		return feedbackDoc{}, err
	}
	vector, err := x.reader.TermVector(docID, index.DefaultField)
	if err != nil {
		return feedbackDoc{}, err
	}
	fd := feedbackDoc{
		docID:  docID,
		score:  d.Score,
		length: float64(x.reader.FieldLength(index.DefaultField, docID)),
		tfs:    make(map[string]int, len(vector)),
	}
	for _, tf := range vector {
		if tf.Frequency <= 0 || strings.ContainsAny(tf.Term, ".,") {
			continue
		}
		fd.tfs[tf.Term] = tf.Frequency
	}
	return fd, nil
}
