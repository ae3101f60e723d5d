// Package regression provides the fit/predict learners behind the rushing
// model: ridge regression, histogram-based gradient boosting, random forests
// and a stacked ensemble of the three. All models serialize to JSON.
package regression

import (
	"errors"
	"fmt"
)

// Regressor is a trainable single-output model.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
}

var (
	// ErrEmptyInput is returned when fitting on no rows.
	ErrEmptyInput = errors.New("regression: empty input")

	// ErrNotFitted is returned when a model is used before Fit.
	ErrNotFitted = errors.New("regression: model not fitted")
)

// PredictAll predicts every row of X.
func PredictAll(m Regressor, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = m.Predict(row)
	}
	return out
}

func checkInput(X [][]float64, y []float64) (cols int, err error) {
	if len(X) == 0 {
		return 0, ErrEmptyInput
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("regression: %d rows but %d targets", len(X), len(y))
	}

	cols = len(X[0])
	if cols == 0 {
		return 0, ErrEmptyInput
	}
	for i, row := range X {
		if len(row) != cols {
			return 0, fmt.Errorf("regression: row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	return cols, nil
}
