package regression

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// Evaluate scores a fitted model on a hold-out set.
func Evaluate(m Regressor, X [][]float64, y []float64) models.Metrics {
	return Score(PredictAll(m, X), y)
}

// Score computes MAE, RMSE and R² of predictions against targets.
func Score(pred, y []float64) models.Metrics {
	if len(y) == 0 {
		return models.Metrics{}
	}

	var absSum, sqSum float64
	for i := range y {
		d := pred[i] - y[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}
	n := float64(len(y))

	// R² is undefined for a constant target; report 0 so metrics stay JSON-safe.
	r2 := stat.RSquaredFrom(pred, y, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}

	return models.Metrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		R2:   r2,
	}
}

// KFold partitions n rows into k contiguous test folds. The first n%k folds
// get one extra row.
func KFold(n, k int) [][]int {
	if k > n {
		k = n
	}
	folds := make([][]int, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		fold := make([]int, size)
		for i := range fold {
			fold[i] = start + i
		}
		folds = append(folds, fold)
		start += size
	}
	return folds
}
