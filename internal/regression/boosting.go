package regression

import (
	"gonum.org/v1/gonum/stat"
)

// BoostingParams configures GradientBoosting.
type BoostingParams struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Lambda         float64 `json:"lambda"`
	Gamma          float64 `json:"gamma"`
	MinChildWeight float64 `json:"min_child_weight"`
}

// DefaultBoostingParams matches the primary rushing model: 200 trees of depth
// 6 with learning rate 0.1.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{
		NEstimators:    200,
		MaxDepth:       6,
		LearningRate:   0.1,
		Lambda:         1,
		MinChildWeight: 1,
	}
}

// GradientBoosting is a second-order gradient-boosted tree ensemble for
// squared error, grown on histogram bins.
type GradientBoosting struct {
	Params      BoostingParams `json:"params"`
	BaseScore   float64        `json:"base_score"`
	Trees       []Tree         `json:"trees"`
	Importances []float64      `json:"importances"`
}

// NewGradientBoosting creates an unfitted booster.
func NewGradientBoosting(params BoostingParams) *GradientBoosting {
	return &GradientBoosting{Params: params}
}

// Fit grows Params.NEstimators trees, each on the residual gradient of the
// ensemble so far. The base score is the target mean.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	p, err := checkInput(X, y)
	if err != nil {
		return err
	}

	bins := newBinner(X)
	params := treeParams{
		maxDepth:       g.Params.MaxDepth,
		minSamplesLeaf: 1,
		minChildWeight: g.Params.MinChildWeight,
		lambda:         g.Params.Lambda,
		gamma:          g.Params.Gamma,
		eta:            g.Params.LearningRate,
	}

	n := len(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	g.BaseScore = stat.Mean(y, nil)
	g.Trees = make([]Tree, 0, g.Params.NEstimators)
	gain := make([]float64, p)

	pred := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range pred {
		pred[i] = g.BaseScore
		hess[i] = 1
	}

	for t := 0; t < g.Params.NEstimators; t++ {
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}
		tree := buildTree(bins, grad, hess, idx, params, gain)
		for i, row := range X {
			pred[i] += tree.Predict(row)
		}
		g.Trees = append(g.Trees, tree)
	}

	g.Importances = normalize(gain)
	return nil
}

// Predict sums the base score and every tree's contribution.
func (g *GradientBoosting) Predict(x []float64) float64 {
	out := g.BaseScore
	for i := range g.Trees {
		out += g.Trees[i].Predict(x)
	}
	return out
}

// FeatureImportances returns total split gain per feature, normalized to sum
// to 1.
func (g *GradientBoosting) FeatureImportances() []float64 {
	return append([]float64(nil), g.Importances...)
}

func normalize(v []float64) []float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	out := make([]float64, len(v))
	if total == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}
