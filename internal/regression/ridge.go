package regression

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge is L2-regularized least squares. The intercept is not penalized.
type Ridge struct {
	Alpha     float64   `json:"alpha"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// NewRidge creates a ridge model with the given regularization strength.
func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

// Fit solves (XcᵀXc + αI)w = Xcᵀyc on mean-centered data.
func (r *Ridge) Fit(X [][]float64, y []float64) error {
	p, err := checkInput(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	means := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			xc.Set(i, j, v-means[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var gram mat.Dense
	gram.Mul(xc.T(), xc)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+r.Alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(xc.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		// A condition warning still carries a usable solution.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("ridge solve: %w", err)
		}
	}

	r.Coef = make([]float64, p)
	for j := range r.Coef {
		r.Coef[j] = w.AtVec(j)
	}
	r.Intercept = yMean - floats.Dot(means, r.Coef)
	return nil
}

// Predict returns the linear prediction for x.
func (r *Ridge) Predict(x []float64) float64 {
	if len(r.Coef) == 0 {
		return r.Intercept
	}
	return r.Intercept + floats.Dot(x, r.Coef)
}
