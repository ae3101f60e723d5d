// Package registry holds the model set currently serving predictions.
package registry

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/regression"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// Model names used as metrics keys. BoostedModel keeps the "xgb" key existing
// retrain clients read.
const (
	BoostedModel  = "xgb"
	StackingModel = "stacking"
)

// ErrModelUnavailable is returned when no trained model set has been published.
var ErrModelUnavailable = errors.New("models not loaded")

// Predictor is the read side of a fitted model.
type Predictor interface {
	Predict(x []float64) float64
}

// ModelSet is a trained pair of models plus their evaluation. It must not be
// modified after it is passed to Swap.
type ModelSet struct {
	Version           string
	TrainedAt         time.Time
	Boosted           Predictor
	Stacking          Predictor
	Metrics           map[string]models.Metrics
	FeatureImportance map[string]float64
}

// Info describes the set for API responses.
func (s *ModelSet) Info() models.ModelInfo {
	return models.ModelInfo{
		Version:           s.Version,
		TrainedAt:         s.TrainedAt,
		Features:          append([]string(nil), features.FeatureNames...),
		Metrics:           s.Metrics,
		FeatureImportance: s.FeatureImportance,
	}
}

// ImportanceMap pairs importances with feature names.
func ImportanceMap(importances []float64) map[string]float64 {
	out := make(map[string]float64, len(importances))
	for i, v := range importances {
		if i < len(features.FeatureNames) {
			out[features.FeatureNames[i]] = v
		}
	}
	return out
}

// Registry publishes model sets to concurrent readers. Readers always see
// either the previous or the next complete set.
type Registry struct {
	current atomic.Pointer[ModelSet]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Current returns the serving model set.
func (r *Registry) Current() (*ModelSet, error) {
	set := r.current.Load()
	if set == nil || set.Boosted == nil || set.Stacking == nil {
		return nil, ErrModelUnavailable
	}
	return set, nil
}

// Swap publishes set and returns the one it replaced, if any.
func (r *Registry) Swap(set *ModelSet) *ModelSet {
	return r.current.Swap(set)
}

// Loaded reports whether a model set is being served.
func (r *Registry) Loaded() bool {
	_, err := r.Current()
	return err == nil
}

var (
	_ Predictor = (*regression.GradientBoosting)(nil)
	_ Predictor = (*regression.Stacking)(nil)
)
