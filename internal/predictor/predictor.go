// Package predictor scores standardized feature vectors with the serving
// model set.
package predictor

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/registry"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// ModelUsed names the ensemble in prediction responses.
const ModelUsed = "XGBoost + Stacking Ensemble"

// Cache stores responses per model version and vector.
type Cache interface {
	Get(ctx context.Context, version string, fv features.FeatureVector) (*models.PredictionResponse, bool, error)
	Set(ctx context.Context, version string, fv features.FeatureVector, resp *models.PredictionResponse) error
}

// PredictionLog records served predictions.
type PredictionLog interface {
	LogPrediction(ctx context.Context, rec *models.PredictionRecord) error
}

// Predictor combines the boosted and stacked models into one estimate.
type Predictor struct {
	registry *registry.Registry
	cache    Cache
	audit    PredictionLog
	logger   *logrus.Entry
}

// New creates a predictor. cache and audit may be nil.
func New(reg *registry.Registry, cache Cache, audit PredictionLog, logger *logrus.Entry) *Predictor {
	return &Predictor{
		registry: reg,
		cache:    cache,
		audit:    audit,
		logger:   logger,
	}
}

// Predict returns the mean of both models' estimates and a confidence of
// 1/(1+|a-b|), each rounded to two decimals. It fails with
// registry.ErrModelUnavailable until a model set is published.
func (p *Predictor) Predict(ctx context.Context, fv features.FeatureVector) (*models.PredictionResponse, error) {
	set, err := p.registry.Current()
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		resp, ok, err := p.cache.Get(ctx, set.Version, fv)
		if err != nil {
			p.logger.WithError(err).Warn("prediction cache read failed")
		} else if ok {
			p.record(ctx, set.Version, fv, resp, true)
			return resp, nil
		}
	}

	x := fv.Values()
	boosted := set.Boosted.Predict(x)
	stacked := set.Stacking.Predict(x)

	resp := &models.PredictionResponse{
		PredictedYards: Round2((boosted + stacked) / 2),
		Confidence:     Round2(Confidence(boosted, stacked)),
		ModelUsed:      ModelUsed,
		ModelVersion:   set.Version,
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, set.Version, fv, resp); err != nil {
			p.logger.WithError(err).Warn("prediction cache write failed")
		}
	}
	p.record(ctx, set.Version, fv, resp, false)

	return resp, nil
}

func (p *Predictor) record(ctx context.Context, version string, fv features.FeatureVector, resp *models.PredictionResponse, cached bool) {
	if p.audit == nil {
		return
	}
	err := p.audit.LogPrediction(ctx, &models.PredictionRecord{
		ModelVersion:   version,
		Features:       fv.Values(),
		PredictedYards: resp.PredictedYards,
		Confidence:     resp.Confidence,
		Cached:         cached,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		p.logger.WithError(err).Warn("prediction log write failed")
	}
}

// Confidence maps the disagreement between two estimates into (0, 1].
func Confidence(a, b float64) float64 {
	return 1 / (1 + math.Abs(a-b))
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
