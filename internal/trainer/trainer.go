// Package trainer runs the training pipeline and publishes the resulting
// model set.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/modelstore"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/regression"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/registry"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// ErrRetrainInProgress is returned when a training run is already active.
var ErrRetrainInProgress = errors.New("retrain already in progress")

// Run triggers.
const (
	TriggerStartup = "startup"
	TriggerAPI     = "api"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// minUsableRows is the smallest dataset worth splitting and fitting.
const minUsableRows = 10

// EventSink receives training progress events.
type EventSink interface {
	PublishTrainingEvent(ctx context.Context, event models.TrainingEvent) error
}

// RunRecorder persists training run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.TrainingRun) error
}

// ModelStore saves and restores model sets.
type ModelStore interface {
	Save(set *registry.ModelSet) error
	Load() (*registry.ModelSet, error)
}

// Config controls data location, the evaluation split and hyperparameters.
type Config struct {
	DataPath string
	TestSize float64
	Seed     int64
	Boosting regression.BoostingParams
	Stacking regression.StackingParams
}

// Trainer fits both models and swaps them into the registry. At most one run
// is active at a time.
type Trainer struct {
	cfg      Config
	registry *registry.Registry
	store    ModelStore
	runs     RunRecorder
	sinks    []EventSink
	logger   *logrus.Entry

	mu sync.Mutex
}

// New creates a trainer. store and runs may be nil.
func New(cfg Config, reg *registry.Registry, store ModelStore, runs RunRecorder, logger *logrus.Entry, sinks ...EventSink) *Trainer {
	return &Trainer{
		cfg:      cfg,
		registry: reg,
		store:    store,
		runs:     runs,
		sinks:    sinks,
		logger:   logger,
	}
}

// LoadOrTrain publishes the saved model set if there is one, and trains a new
// one otherwise.
func (t *Trainer) LoadOrTrain(ctx context.Context) error {
	if t.store != nil {
		set, err := t.store.Load()
		if err == nil {
			t.registry.Swap(set)
			t.logger.WithField("version", set.Version).Info("loaded saved models")
			return nil
		}
		if !errors.Is(err, modelstore.ErrNotFound) {
			t.logger.WithError(err).Warn("saved models unusable, retraining")
		}
	}

	_, err := t.Retrain(ctx, TriggerStartup)
	return err
}

// Retrain runs the full pipeline. The serving models are replaced only when
// every stage succeeds.
func (t *Trainer) Retrain(ctx context.Context, trigger string) (*models.RetrainResponse, error) {
	if !t.mu.TryLock() {
		return nil, ErrRetrainInProgress
	}
	defer t.mu.Unlock()

	run := &models.TrainingRun{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
		Trigger:   trigger,
	}
	logger := t.logger.WithFields(logrus.Fields{"run_id": run.ID, "trigger": trigger})
	logger.Info("training started")

	t.emit(ctx, run.ID, models.EventTrainingStarted, "", "training started", nil)
	t.record(ctx, run)

	set, err := t.train(ctx, run, logger)
	finished := time.Now().UTC()
	run.FinishedAt = &finished

	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		t.record(ctx, run)
		t.emit(ctx, run.ID, models.EventTrainingFailed, "", err.Error(), nil)
		logger.WithError(err).Error("training failed")
		return nil, err
	}

	t.registry.Swap(set)

	run.Status = StatusSuccess
	run.Metrics = set.Metrics
	run.FeatureImportance = set.FeatureImportance
	t.record(ctx, run)
	t.emit(ctx, run.ID, models.EventTrainingCompleted, "", "models retrained successfully", nil)
	logger.WithField("duration", finished.Sub(run.StartedAt).String()).Info("training completed")

	return &models.RetrainResponse{
		Status:            StatusSuccess,
		Message:           "Models retrained successfully",
		Version:           set.Version,
		Metrics:           set.Metrics,
		FeatureImportance: set.FeatureImportance,
		Report:            run.Report,
	}, nil
}

func (t *Trainer) train(ctx context.Context, run *models.TrainingRun, logger *logrus.Entry) (*registry.ModelSet, error) {
	df, err := dataset.LoadFile(t.cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	set, report, err := dataset.Build(dataset.Clean(df))
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	run.Report = report
	if set.Len() < minUsableRows {
		return nil, fmt.Errorf("dataset has %d usable rows, need at least %d", set.Len(), minUsableRows)
	}

	train, test, err := dataset.Split(set, t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	run.Report.TrainRows = train.Len()
	run.Report.TestRows = test.Len()

	logger.WithFields(logrus.Fields{
		"rows":    report.Rows,
		"usable":  report.Usable,
		"dropped": report.Dropped,
	}).Info("dataset loaded")
	t.emit(ctx, run.ID, models.EventDatasetLoaded, "",
		fmt.Sprintf("%d usable rows (%d train, %d test)", set.Len(), train.Len(), test.Len()), nil)

	boosted := regression.NewGradientBoosting(t.cfg.Boosting)
	stacking := regression.NewStacking(t.cfg.Stacking)

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range []struct {
		name  string
		model regression.Regressor
	}{
		{registry.BoostedModel, boosted},
		{registry.StackingModel, stacking},
	} {
		m := m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			if err := m.model.Fit(train.X, train.Y); err != nil {
				return fmt.Errorf("fit %s: %w", m.name, err)
			}
			logger.WithFields(logrus.Fields{"model": m.name, "duration": time.Since(start).String()}).Info("model trained")
			t.emit(gctx, run.ID, models.EventModelTrained, m.name, "model trained", nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics := map[string]models.Metrics{
		registry.BoostedModel:  regression.Evaluate(boosted, test.X, test.Y),
		registry.StackingModel: regression.Evaluate(stacking, test.X, test.Y),
	}
	for _, name := range []string{registry.BoostedModel, registry.StackingModel} {
		m := metrics[name]
		t.emit(ctx, run.ID, models.EventModelEvaluated, name, "model evaluated", &m)
	}

	modelSet := &registry.ModelSet{
		Version:           run.ID,
		TrainedAt:         time.Now().UTC(),
		Boosted:           boosted,
		Stacking:          stacking,
		Metrics:           metrics,
		FeatureImportance: registry.ImportanceMap(boosted.FeatureImportances()),
	}

	if t.store != nil {
		if err := t.store.Save(modelSet); err != nil {
			return nil, fmt.Errorf("save models: %w", err)
		}
	}
	return modelSet, nil
}

func (t *Trainer) emit(ctx context.Context, runID, eventType, model, message string, metrics *models.Metrics) {
	event := models.TrainingEvent{
		Type:      eventType,
		RunID:     runID,
		Model:     model,
		Message:   message,
		Metrics:   metrics,
		Timestamp: time.Now().UTC(),
	}
	for _, sink := range t.sinks {
		if err := sink.PublishTrainingEvent(ctx, event); err != nil {
			t.logger.WithError(err).WithField("type", eventType).Warn("failed to publish training event")
		}
	}
}

func (t *Trainer) record(ctx context.Context, run *models.TrainingRun) {
	if t.runs == nil {
		return
	}
	if err := t.runs.RecordRun(ctx, run); err != nil {
		t.logger.WithError(err).WithField("run_id", run.ID).Warn("failed to record training run")
	}
}
