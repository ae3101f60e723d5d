package predictor_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/predictor"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/registry"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

type constModel float64

func (c constModel) Predict(x []float64) float64 { return float64(c) }

type fakeCache struct {
	entries map[string]*models.PredictionResponse
	getErr  error
	sets    int
}

func (f *fakeCache) Get(ctx context.Context, version string, fv features.FeatureVector) (*models.PredictionResponse, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	resp, ok := f.entries[version]
	return resp, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, version string, fv features.FeatureVector, resp *models.PredictionResponse) error {
	if f.entries == nil {
		f.entries = map[string]*models.PredictionResponse{}
	}
	f.entries[version] = resp
	f.sets++
	return nil
}

type fakeLog struct {
	records []*models.PredictionRecord
	err     error
}

func (f *fakeLog) LogPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func loadedRegistry(boosted, stacked float64) *registry.Registry {
	reg := registry.NewRegistry()
	reg.Swap(&registry.ModelSet{Version: "v1", Boosted: constModel(boosted), Stacking: constModel(stacked)})
	return reg
}

func TestPredict_AveragesModels(t *testing.T) {
	tests := []struct {
		name           string
		boosted        float64
		stacked        float64
		wantYards      float64
		wantConfidence float64
	}{
		{"agreeing models", 4, 4, 4, 1},
		{"one yard apart", 3, 4, 3.5, 0.5},
		{"rounds to cents", 3.3, 3.38, 3.34, 0.93},
		{"three apart", 2, 5, 3.5, 0.25},
		{"negative gain", -1.5, -2.5, -2, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := predictor.New(loadedRegistry(tt.boosted, tt.stacked), nil, nil, testLogger())

			resp, err := p.Predict(context.Background(), features.FeatureVector{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.PredictedYards != tt.wantYards {
				t.Errorf("predicted_yards = %v, want %v", resp.PredictedYards, tt.wantYards)
			}
			if resp.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", resp.Confidence, tt.wantConfidence)
			}
			if resp.ModelUsed != "XGBoost + Stacking Ensemble" {
				t.Errorf("model_used = %q, want XGBoost + Stacking Ensemble", resp.ModelUsed)
			}
			if resp.ModelVersion != "v1" {
				t.Errorf("model_version = %q, want v1", resp.ModelVersion)
			}
		})
	}
}

func TestPredict_NoModel(t *testing.T) {
	p := predictor.New(registry.NewRegistry(), nil, nil, testLogger())

	_, err := p.Predict(context.Background(), features.FeatureVector{})
	if !errors.Is(err, registry.ErrModelUnavailable) {
		t.Errorf("error = %v, want ErrModelUnavailable", err)
	}
}

func TestPredict_UsesCache(t *testing.T) {
	cache := &fakeCache{}
	audit := &fakeLog{}
	p := predictor.New(loadedRegistry(3, 4), cache, audit, testLogger())

	first, err := p.Predict(context.Background(), features.FeatureVector{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Predict(context.Background(), features.FeatureVector{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
	if *first != *second {
		t.Errorf("cached response %+v differs from %+v", second, first)
	}
	if len(audit.records) != 2 {
		t.Fatalf("audit records = %d, want 2", len(audit.records))
	}
	if audit.records[0].Cached || !audit.records[1].Cached {
		t.Errorf("cached flags = %v, %v; want false, true", audit.records[0].Cached, audit.records[1].Cached)
	}
	if len(audit.records[0].Features) != features.NumFeatures {
		t.Errorf("audit features = %d, want %d", len(audit.records[0].Features), features.NumFeatures)
	}
}

func TestPredict_SideEffectFailuresDoNotFail(t *testing.T) {
	cache := &fakeCache{getErr: errors.New("redis down")}
	audit := &fakeLog{err: errors.New("db down")}
	p := predictor.New(loadedRegistry(3, 4), cache, audit, testLogger())

	resp, err := p.Predict(context.Background(), features.FeatureVector{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PredictedYards != 3.5 {
		t.Errorf("predicted_yards = %v, want 3.5", resp.PredictedYards)
	}
}

func TestConfidence(t *testing.T) {
	if got := predictor.Confidence(1, 1); got != 1 {
		t.Errorf("Confidence(1, 1) = %v, want 1", got)
	}
	if predictor.Confidence(0, 2) != predictor.Confidence(2, 0) {
		t.Error("confidence is not symmetric")
	}
	if got := predictor.Confidence(0, 100); got <= 0 || got >= 0.01 {
		t.Errorf("Confidence(0, 100) = %v, want in (0, 0.01)", got)
	}
}
