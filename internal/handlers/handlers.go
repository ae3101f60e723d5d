package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/hub"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/registry"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/trainer"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// Predictor scores a standardized feature vector
type Predictor interface {
	Predict(ctx context.Context, fv features.FeatureVector) (*models.PredictionResponse, error)
}

// Retrainer runs the training pipeline
type Retrainer interface {
	Retrain(ctx context.Context, trigger string) (*models.RetrainResponse, error)
}

// RunLister reads training history
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*models.TrainingRun, error)
}

// Limiter caps how often an operation may run
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Deps are the collaborators of Handler. Runs, Limiter and Hub may be nil.
type Deps struct {
	Registry  *registry.Registry
	Predictor Predictor
	Trainer   Retrainer
	Runs      RunLister
	Limiter   Limiter
	Hub       *hub.Hub
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	ctx       context.Context // lifetime of WebSocket pumps
	registry  *registry.Registry
	predictor Predictor
	trainer   Retrainer
	runs      RunLister
	limiter   Limiter
	hub       *hub.Hub
	logger    *logrus.Entry
}

// NewHandler creates a new handler. ctx bounds background work started by
// requests, such as WebSocket pumps.
func NewHandler(ctx context.Context, deps Deps, logger *logrus.Entry) *Handler {
	return &Handler{
		ctx:       ctx,
		registry:  deps.Registry,
		predictor: deps.Predictor,
		trainer:   deps.Trainer,
		runs:      deps.Runs,
		limiter:   deps.Limiter,
		hub:       deps.Hub,
		logger:    logger,
	}
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"message":      "NFL Rushing Predictor is running",
		"model_loaded": h.registry.Loaded(),
	})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var perr *features.ParseError
	var merr *features.MissingFieldError
	switch {
	case errors.As(err, &perr), errors.As(err, &merr):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, trainer.ErrRetrainInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("error encoding response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error(message)
	}

	h.respondJSON(w, status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// respondErr maps err to a status and uses its text as the message
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	h.respondError(w, statusFor(err), err.Error(), err)
}
