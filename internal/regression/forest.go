package regression

import (
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestParams configures RandomForest.
type ForestParams struct {
	NEstimators    int   `json:"n_estimators"`
	MaxDepth       int   `json:"max_depth"`
	MinSamplesLeaf int   `json:"min_samples_leaf"`
	Seed           int64 `json:"seed"`
}

// DefaultForestParams returns 100 bootstrap trees seeded with 42.
func DefaultForestParams() ForestParams {
	return ForestParams{
		NEstimators:    100,
		MaxDepth:       16,
		MinSamplesLeaf: 1,
		Seed:           42,
	}
}

// RandomForest averages regression trees fitted on bootstrap samples.
type RandomForest struct {
	Params ForestParams `json:"params"`
	Trees  []Tree       `json:"trees"`
}

// NewRandomForest creates an unfitted forest.
func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

// Fit grows the trees concurrently. Tree t draws its bootstrap sample from
// Seed+t, so results do not depend on scheduling.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if _, err := checkInput(X, y); err != nil {
		return err
	}

	bins := newBinner(X)
	n := len(X)

	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range y {
		grad[i] = -y[i]
		hess[i] = 1
	}

	minLeaf := f.Params.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	params := treeParams{
		maxDepth:       f.Params.MaxDepth,
		minSamplesLeaf: minLeaf,
		eta:            1,
	}

	trees := make([]Tree, f.Params.NEstimators)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		t := t
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.Params.Seed + int64(t)))
			idx := make([]int, n)
			for i := range idx {
				idx[i] = rng.Intn(n)
			}
			trees[t] = buildTree(bins, grad, hess, idx, params, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Trees = trees
	return nil
}

// Predict averages the trees.
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}
