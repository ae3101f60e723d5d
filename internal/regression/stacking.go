package regression

import "fmt"

// StackingParams configures Stacking.
type StackingParams struct {
	Folds  int            `json:"folds"`
	Alpha  float64        `json:"alpha"`
	Forest ForestParams   `json:"forest"`
	Final  BoostingParams `json:"final"`
}

// DefaultStackingParams uses ridge (alpha 1) and a 100-tree forest as base
// learners with a 50-tree booster at learning rate 0.05 on top.
func DefaultStackingParams() StackingParams {
	final := DefaultBoostingParams()
	final.NEstimators = 50
	final.LearningRate = 0.05

	return StackingParams{
		Folds:  5,
		Alpha:  1,
		Forest: DefaultForestParams(),
		Final:  final,
	}
}

// Stacking feeds out-of-fold predictions of a ridge model and a random
// forest into a gradient-boosted meta learner.
type Stacking struct {
	Params StackingParams    `json:"params"`
	Ridge  *Ridge            `json:"ridge"`
	Forest *RandomForest     `json:"forest"`
	Final  *GradientBoosting `json:"final"`
}

// NewStacking creates an unfitted stacked ensemble.
func NewStacking(params StackingParams) *Stacking {
	return &Stacking{Params: params}
}

// Fit trains the meta learner on k-fold out-of-fold base predictions, then
// refits both base learners on all rows.
func (s *Stacking) Fit(X [][]float64, y []float64) error {
	if _, err := checkInput(X, y); err != nil {
		return err
	}
	if s.Params.Folds < 2 {
		return fmt.Errorf("stacking: need at least 2 folds, got %d", s.Params.Folds)
	}

	meta := make([][]float64, len(X))
	for k, fold := range KFold(len(X), s.Params.Folds) {
		inFold := make(map[int]bool, len(fold))
		for _, i := range fold {
			inFold[i] = true
		}

		var trainX [][]float64
		var trainY []float64
		for i := range X {
			if !inFold[i] {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}

		ridge := NewRidge(s.Params.Alpha)
		if err := ridge.Fit(trainX, trainY); err != nil {
			return fmt.Errorf("stacking fold %d ridge: %w", k, err)
		}
		forest := NewRandomForest(s.Params.Forest)
		if err := forest.Fit(trainX, trainY); err != nil {
			return fmt.Errorf("stacking fold %d forest: %w", k, err)
		}

		for _, i := range fold {
			meta[i] = []float64{ridge.Predict(X[i]), forest.Predict(X[i])}
		}
	}

	final := NewGradientBoosting(s.Params.Final)
	if err := final.Fit(meta, y); err != nil {
		return fmt.Errorf("stacking final: %w", err)
	}

	ridge := NewRidge(s.Params.Alpha)
	if err := ridge.Fit(X, y); err != nil {
		return fmt.Errorf("stacking ridge: %w", err)
	}
	forest := NewRandomForest(s.Params.Forest)
	if err := forest.Fit(X, y); err != nil {
		return fmt.Errorf("stacking forest: %w", err)
	}

	s.Ridge, s.Forest, s.Final = ridge, forest, final
	return nil
}

// Predict runs both base learners and the meta learner on their outputs.
func (s *Stacking) Predict(x []float64) float64 {
	if s.Final == nil || s.Ridge == nil || s.Forest == nil {
		return 0
	}
	return s.Final.Predict([]float64{s.Ridge.Predict(x), s.Forest.Predict(x)})
}
