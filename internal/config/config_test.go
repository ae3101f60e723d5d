package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr() != ":8000" {
		t.Errorf("addr = %s, want :8000", cfg.Server.Addr())
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("request timeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.Training.ModelPath != "models" || cfg.Training.DataPath != "csv/train.csv" {
		t.Errorf("paths = %s, %s", cfg.Training.ModelPath, cfg.Training.DataPath)
	}
	if cfg.Training.TestSize != 0.2 || cfg.Training.Seed != 42 {
		t.Errorf("split = %v seed %d, want 0.2 seed 42", cfg.Training.TestSize, cfg.Training.Seed)
	}
	if cfg.Redis.URL != "" || cfg.Redis.PredictionTTL != 10*time.Minute {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Redis.RetrainLimit != 6 || cfg.Redis.RetrainLimitWindow != time.Hour {
		t.Errorf("retrain limit = %d per %v", cfg.Redis.RetrainLimit, cfg.Redis.RetrainLimitWindow)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}

	tc := cfg.Training.Trainer()
	if tc.Boosting.NEstimators != 200 || tc.Boosting.MaxDepth != 6 || tc.Boosting.LearningRate != 0.1 {
		t.Errorf("boosting = %+v", tc.Boosting)
	}
	if tc.Stacking.Forest.NEstimators != 100 || tc.Stacking.Final.NEstimators != 50 || tc.Stacking.Final.LearningRate != 0.05 {
		t.Errorf("stacking = %+v", tc.Stacking)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_DSN", "postgres://localhost/rushing")
	t.Setenv("BOOST_N_ESTIMATORS", "20")
	t.Setenv("TRAIN_ON_START", "false")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr() != ":9090" {
		t.Errorf("addr = %s", cfg.Server.Addr())
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN == "" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Training.Trainer().Boosting.NEstimators != 20 {
		t.Errorf("boost estimators = %d, want 20", cfg.Training.BoostEstimators)
	}
	if cfg.Training.TrainOnStart {
		t.Error("train on start should be disabled")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value, wantErr string
	}{
		{"unparsable int", "BOOST_MAX_DEPTH", "deep", "parse env:"},
		{"test size out of range", "TEST_SIZE", "1.5", "TEST_SIZE"},
		{"single fold", "STACKING_FOLDS", "1", "STACKING_FOLDS"},
		{"unknown driver", "STORE_DRIVER", "oracle", "STORE_DRIVER"},
		{"negative retrain limit", "RETRAIN_RATE_LIMIT", "-1", "RETRAIN_RATE_LIMIT"},
		{"zero retrain window", "RETRAIN_RATE_WINDOW", "0s", "RETRAIN_RATE_WINDOW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
