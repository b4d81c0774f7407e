// Package handler serves structured queries over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/searcher/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/middleware"
)

// Searcher evaluates one query.
type Searcher interface {
	Search(ctx context.Context, qid, q string) (*pipeline.Outcome, error)
}

type Handler struct {
	searcher   Searcher
	maxResults int
	logger     *slog.Logger
}

func New(searcher Searcher, maxResults int) *Handler {
	return &Handler{
		searcher:   searcher,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=<query>[&limit=n][&qid=id].
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.maxResults
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}

	qid := r.URL.Query().Get("qid")
	if qid == "" {
		qid = middleware.GetRequestID(ctx)
	}

	out, err := h.searcher.Search(ctx, qid, q)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search execution failed", "query", q, "error", err)
			h.writeError(w, status, "search failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	if len(out.Results) > limit {
		out.Results = out.Results[:limit]
	}

	log.Info("search completed",
		"query", q,
		"total_hits", out.TotalHits,
		"returned", len(out.Results),
		"expanded", out.Expansion != "",
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
