package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/trainer"
)

// maxRunsLimit bounds GET /api/v1/model/runs
const maxRunsLimit = 100

// retrainLimitKey counts retrains from all callers together
const retrainLimitKey = "retrain"

// Retrain runs the training pipeline and returns the new metrics
func (h *Handler) Retrain(w http.ResponseWriter, r *http.Request) {
	if !h.allowRetrain(r.Context()) {
		h.respondError(w, http.StatusTooManyRequests, "retrain rate limit exceeded, try again later", nil)
		return
	}

	// A client disconnect must not abandon a run halfway.
	ctx := context.WithoutCancel(r.Context())

	resp, err := h.trainer.Retrain(ctx, trainer.TriggerAPI)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error(), err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// allowRetrain fails open when the limiter itself is unavailable.
func (h *Handler) allowRetrain(ctx context.Context) bool {
	if h.limiter == nil {
		return true
	}
	ok, err := h.limiter.Allow(ctx, retrainLimitKey)
	if err != nil {
		h.logger.WithError(err).Warn("retrain rate limiter unavailable")
		return true
	}
	return ok
}

// GetModel describes the serving model set
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	set, err := h.registry.Current()
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, set.Info())
}

// GetRuns lists recent training runs
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "training history store not configured", nil)
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list training runs", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
