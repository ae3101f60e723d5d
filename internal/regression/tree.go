package regression

import (
	"sort"
)

// maxBins bounds the number of histogram bins per feature, so a bin index
// fits in a byte.
const maxBins = 64

// Node is one node of a regression tree. Rows with x[Feature] <= Threshold go
// left.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf,omitempty"`
}

// Tree is a binary regression tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree for x.
func (t *Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// binner quantizes each feature into at most maxBins ordered buckets.
type binner struct {
	cuts [][]float64 // per feature, ascending; bin b holds values in (cuts[b-1], cuts[b]]
	bins [][]uint8   // per feature, per row
}

func newBinner(X [][]float64) *binner {
	p := len(X[0])
	b := &binner{
		cuts: make([][]float64, p),
		bins: make([][]uint8, p),
	}

	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		b.cuts[j] = cutPoints(col)

		b.bins[j] = make([]uint8, len(X))
		for i := range X {
			b.bins[j][i] = uint8(sort.SearchFloat64s(b.cuts[j], X[i][j]))
		}
	}
	return b
}

// cutPoints returns split candidates for one column: midpoints between
// distinct values when there are few of them, quantiles otherwise.
func cutPoints(col []float64) []float64 {
	sorted := append([]float64(nil), col...)
	sort.Float64s(sorted)

	distinct := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return nil
	}

	if len(distinct) <= maxBins {
		cuts := make([]float64, len(distinct)-1)
		for i := range cuts {
			cuts[i] = (distinct[i] + distinct[i+1]) / 2
		}
		return cuts
	}

	cuts := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		v := sorted[k*len(sorted)/maxBins]
		if len(cuts) == 0 || v > cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}
	// The top cut must leave something on the right.
	if cuts[len(cuts)-1] >= distinct[len(distinct)-1] {
		cuts = cuts[:len(cuts)-1]
	}
	return cuts
}

// treeParams controls growth of a single tree. Trees are fitted to
// gradient/hessian pairs: boosting passes squared-error gradients, a forest
// passes g = -y, h = 1 and lambda = 0 so that leaves hold target means.
type treeParams struct {
	maxDepth       int
	minSamplesLeaf int
	minChildWeight float64
	lambda         float64
	gamma          float64
	eta            float64
}

type treeBuilder struct {
	bins   *binner
	grad   []float64
	hess   []float64
	params treeParams

	nodes []Node
	gain  []float64 // accumulated split gain per feature
}

type split struct {
	feature int
	bin     int
	gain    float64
}

func buildTree(bins *binner, grad, hess []float64, idx []int, params treeParams, gain []float64) Tree {
	b := &treeBuilder{
		bins:   bins,
		grad:   grad,
		hess:   hess,
		params: params,
		gain:   gain,
	}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var G, H float64
	for _, i := range idx {
		G += b.grad[i]
		H += b.hess[i]
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Value: b.leafWeight(G, H)})

	if depth >= b.params.maxDepth || len(idx) < 2*b.params.minSamplesLeaf {
		return id
	}

	best, ok := b.bestSplit(idx, G, H)
	if !ok {
		return id
	}

	col := b.bins.bins[best.feature]
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if int(col[i]) <= best.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if b.gain != nil {
		b.gain[best.feature] += best.gain
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{
		Feature:   best.feature,
		Threshold: b.bins.cuts[best.feature][best.bin],
		Left:      l,
		Right:     r,
	}
	return id
}

func (b *treeBuilder) leafWeight(G, H float64) float64 {
	denom := H + b.params.lambda
	if denom == 0 {
		return 0
	}
	return -G / denom * b.params.eta
}

func (b *treeBuilder) score(G, H float64) float64 {
	denom := H + b.params.lambda
	if denom == 0 {
		return 0
	}
	return G * G / denom
}

func (b *treeBuilder) bestSplit(idx []int, G, H float64) (split, bool) {
	parent := b.score(G, H)
	best := split{gain: 1e-12}
	found := false

	var (
		histG [maxBins]float64
		histH [maxBins]float64
		histN [maxBins]int
	)

	for f, cuts := range b.bins.cuts {
		if len(cuts) == 0 {
			continue
		}
		nbins := len(cuts) + 1

		for k := 0; k < nbins; k++ {
			histG[k], histH[k], histN[k] = 0, 0, 0
		}
		col := b.bins.bins[f]
		for _, i := range idx {
			k := col[i]
			histG[k] += b.grad[i]
			histH[k] += b.hess[i]
			histN[k]++
		}

		var GL, HL float64
		var nL int
		for k := 0; k < nbins-1; k++ {
			GL += histG[k]
			HL += histH[k]
			nL += histN[k]
			nR := len(idx) - nL
			if nL < b.params.minSamplesLeaf || nR < b.params.minSamplesLeaf {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < b.params.minChildWeight || HR < b.params.minChildWeight {
				continue
			}

			gain := 0.5*(b.score(GL, HL)+b.score(GR, HR)-parent) - b.params.gamma
			if gain > best.gain {
				best = split{feature: f, bin: k, gain: gain}
				found = true
			}
		}
	}
	return best, found
}
