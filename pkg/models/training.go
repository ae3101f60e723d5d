package models

import "time"

// Metrics holds hold-out evaluation results for one model
type Metrics struct {
	MAE  float64 `json:"MAE"`
	RMSE float64 `json:"RMSE"`
	R2   float64 `json:"R2"`
}

// DatasetReport summarizes how the training table was reduced to model rows
type DatasetReport struct {
	Rows      int            `json:"rows"`
	Rushers   int            `json:"rushers"`
	Usable    int            `json:"usable"`
	Dropped   map[string]int `json:"dropped"` // keyed by offending field
	TrainRows int            `json:"train_rows"`
	TestRows  int            `json:"test_rows"`
}

// RetrainResponse is returned by POST /model/retrain
type RetrainResponse struct {
	Status            string             `json:"status"`
	Message           string             `json:"message"`
	Version           string             `json:"version"`
	Metrics           map[string]Metrics `json:"metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	Report            DatasetReport      `json:"report"`
}

// ModelInfo describes the model set currently serving predictions
type ModelInfo struct {
	Version           string             `json:"version"`
	TrainedAt         time.Time          `json:"trained_at"`
	Features          []string           `json:"features"`
	Metrics           map[string]Metrics `json:"metrics,omitempty"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
}

// TrainingRun is a persisted record of one training attempt
type TrainingRun struct {
	ID                string             `json:"id"`
	Status            string             `json:"status"` // running, success, failed
	StartedAt         time.Time          `json:"started_at"`
	FinishedAt        *time.Time         `json:"finished_at,omitempty"`
	Trigger           string             `json:"trigger"` // startup, api
	Report            DatasetReport      `json:"report"`
	Metrics           map[string]Metrics `json:"metrics,omitempty"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// Training event types
const (
	EventTrainingStarted   = "training_started"
	EventDatasetLoaded     = "dataset_loaded"
	EventModelTrained      = "model_trained"
	EventModelEvaluated    = "model_evaluated"
	EventTrainingCompleted = "training_completed"
	EventTrainingFailed    = "training_failed"
)

// TrainingEvent reports progress of a training run to subscribers
type TrainingEvent struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Model     string    `json:"model,omitempty"`
	Message   string    `json:"message,omitempty"`
	Metrics   *Metrics  `json:"metrics,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
