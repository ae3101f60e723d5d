package modelstore_test

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/modelstore"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/regression"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/registry"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

func trainedSet(t *testing.T) *registry.ModelSet {
	t.Helper()

	X := make([][]float64, 60)
	y := make([]float64, 60)
	for i := range X {
		row := make([]float64, features.NumFeatures)
		for j := range row {
			row[j] = float64((i*(j+3))%17) + float64(j)
		}
		X[i] = row
		y[i] = row[0]*0.5 - row[2] + 3
	}

	bp := regression.DefaultBoostingParams()
	bp.NEstimators = 5
	boosted := regression.NewGradientBoosting(bp)
	if err := boosted.Fit(X, y); err != nil {
		t.Fatalf("fit boosted: %v", err)
	}

	sp := regression.DefaultStackingParams()
	sp.Forest.NEstimators = 3
	sp.Final.NEstimators = 5
	stacking := regression.NewStacking(sp)
	if err := stacking.Fit(X, y); err != nil {
		t.Fatalf("fit stacking: %v", err)
	}

	return &registry.ModelSet{
		Version:   "test-version",
		TrainedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Boosted:   boosted,
		Stacking:  stacking,
		Metrics: map[string]models.Metrics{
			registry.BoostedModel:  {MAE: 1, RMSE: 2, R2: 0.5},
			registry.StackingModel: {MAE: 1.5, RMSE: 2.5, R2: 0.4},
		},
		FeatureImportance: registry.ImportanceMap(boosted.FeatureImportances()),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	store := modelstore.New(dir)
	set := trainedSet(t)

	if err := store.Save(set); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Version != set.Version || !loaded.TrainedAt.Equal(set.TrainedAt) {
		t.Errorf("manifest = %s/%v, want %s/%v", loaded.Version, loaded.TrainedAt, set.Version, set.TrainedAt)
	}
	if loaded.Metrics[registry.StackingModel].RMSE != 2.5 {
		t.Errorf("metrics = %+v", loaded.Metrics)
	}

	row := make([]float64, features.NumFeatures)
	for j := range row {
		row[j] = float64(j)
	}
	if got, want := loaded.Boosted.Predict(row), set.Boosted.Predict(row); got != want {
		t.Errorf("boosted prediction = %v after reload, want %v", got, want)
	}
	if got, want := loaded.Stacking.Predict(row), set.Stacking.Predict(row); got != want {
		t.Errorf("stacking prediction = %v after reload, want %v", got, want)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("model dir has %d entries, want current file and one set dir", len(entries))
	}
	setEntries, err := os.ReadDir(currentSetDir(t, dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(setEntries) != 3 {
		t.Errorf("set dir has %d entries, want 3 (no temp files left)", len(setEntries))
	}
}

func currentSetDir(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, modelstore.CurrentFile))
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	return filepath.Join(dir, strings.TrimSpace(string(data)))
}

func TestStore_FailedSaveKeepsPreviousSet(t *testing.T) {
	dir := t.TempDir()
	store := modelstore.New(dir)

	first := trainedSet(t)
	first.Version = "v1"
	if err := store.Save(first); err != nil {
		t.Fatalf("Save(v1): %v", err)
	}
	firstBase := first.Boosted.(*regression.GradientBoosting).BaseScore

	second := trainedSet(t)
	second.Version = "v2"
	second.Boosted.(*regression.GradientBoosting).BaseScore = firstBase + 12345
	// The boosted file marshals fine; the stacking file cannot.
	second.Stacking.(*regression.Stacking).Ridge.Intercept = math.NaN()
	if err := store.Save(second); err == nil {
		t.Fatal("expected Save(v2) to fail on NaN intercept")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != "v1" {
		t.Errorf("version = %s, want v1", loaded.Version)
	}
	if got := loaded.Boosted.(*regression.GradientBoosting).BaseScore; got != firstBase {
		t.Errorf("boosted base score = %v, want v1's %v", got, firstBase)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("model dir has %d entries after failed save, want 2", len(entries))
	}
}

func TestStore_SaveReplacesPreviousSet(t *testing.T) {
	dir := t.TempDir()
	store := modelstore.New(dir)

	for _, version := range []string{"v1", "v2", "v3"} {
		set := trainedSet(t)
		set.Version = version
		if err := store.Save(set); err != nil {
			t.Fatalf("Save(%s): %v", version, err)
		}
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != "v3" {
		t.Errorf("version = %s, want v3", loaded.Version)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("model dir has %d entries, want old sets pruned", len(entries))
	}
}

func TestStore_RejectsInvalidCurrent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, modelstore.CurrentFile), []byte("../elsewhere\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := modelstore.New(dir).Load()
	if err == nil || errors.Is(err, modelstore.ErrNotFound) {
		t.Errorf("Load() error = %v, want invalid set name error", err)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := modelstore.New(t.TempDir())

	if _, err := store.Load(); !errors.Is(err, modelstore.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStore_RejectsFeatureMismatch(t *testing.T) {
	dir := t.TempDir()
	store := modelstore.New(dir)
	if err := store.Save(trainedSet(t)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(currentSetDir(t, dir), modelstore.ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var manifest modelstore.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatal(err)
	}
	manifest.Features = manifest.Features[:5]
	data, _ = json.Marshal(manifest)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = store.Load()
	if err == nil {
		t.Fatal("expected error for mismatched features")
	}
	if errors.Is(err, modelstore.ErrNotFound) {
		t.Errorf("mismatch reported as not found: %v", err)
	}
}

type constModel float64

func (c constModel) Predict(x []float64) float64 { return float64(c) }

func TestStore_SaveRejectsUnknownModelTypes(t *testing.T) {
	store := modelstore.New(t.TempDir())
	set := &registry.ModelSet{Boosted: constModel(1), Stacking: constModel(2)}

	if err := store.Save(set); err == nil {
		t.Error("expected error saving foreign model types")
	}
}
