package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/store"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

func openTestStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.Open(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := store.Open("oracle", "dsn"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestRecordRun_InsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &models.TrainingRun{
		ID:        "run-1",
		Status:    "running",
		StartedAt: started,
		Trigger:   "api",
	}
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("record running: %v", err)
	}

	finished := started.Add(90 * time.Second)
	run.Status = "success"
	run.FinishedAt = &finished
	run.Report = models.DatasetReport{Rows: 100, Rushers: 10, Usable: 9, Dropped: map[string]int{"Dir": 1}}
	run.Metrics = map[string]models.Metrics{"xgb": {MAE: 3.1, RMSE: 5.2, R2: 0.12}}
	run.FeatureImportance = map[string]float64{"S": 0.4}
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("record success: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1 after upsert", len(runs))
	}

	got := runs[0]
	if got.Status != "success" || got.Trigger != "api" {
		t.Errorf("run = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("finished_at = %v, want %v", got.FinishedAt, finished)
	}
	if got.Report.Dropped["Dir"] != 1 || got.Report.Usable != 9 {
		t.Errorf("report = %+v", got.Report)
	}
	if got.Metrics["xgb"].RMSE != 5.2 {
		t.Errorf("metrics = %+v", got.Metrics)
	}
	if got.FeatureImportance["S"] != 0.4 {
		t.Errorf("importance = %+v", got.FeatureImportance)
	}
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := &models.TrainingRun{
			ID:        id,
			Status:    "failed",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Trigger:   "startup",
			Error:     "boom",
		}
		if err := s.RecordRun(ctx, run); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("order = %s, %s; want c, b", runs[0].ID, runs[1].ID)
	}
	if runs[0].FinishedAt != nil {
		t.Errorf("finished_at = %v, want nil", runs[0].FinishedAt)
	}
	if runs[0].Error != "boom" {
		t.Errorf("error = %q, want boom", runs[0].Error)
	}
}

func TestLogPrediction(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		rec := &models.PredictionRecord{
			ModelVersion:   "v1",
			Features:       []float64{1, 2, 3},
			PredictedYards: 4.5,
			Confidence:     0.8,
			Cached:         i > 0,
			CreatedAt:      time.Now(),
		}
		if err := s.LogPrediction(ctx, rec); err != nil {
			t.Fatalf("log prediction: %v", err)
		}
	}

	n, err := s.CountPredictions(ctx, "v1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	if n, _ := s.CountPredictions(ctx, "v2"); n != 0 {
		t.Errorf("count for other version = %d, want 0", n)
	}
}
