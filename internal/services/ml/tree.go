package ml

import (
	"math/rand"
	"sort"
)

const leaf = -1

// Node is one split or leaf of a flattened decision tree.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a CART tree stored as a node slice rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks x down to a leaf and returns its value.
func (t *Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeParams struct {
	maxDepth       int // 0 = unlimited
	minSamplesLeaf int
	maxFeatures    int
}

type treeBuilder struct {
	x      [][]float64
	y      []float64
	params treeParams
	rng    *rand.Rand
	nodes  []Node
}

// growTree fits a tree on the rows listed in idx (duplicates allowed, as produced by bootstrap).
// Splits minimise the summed squared error of both children. For 0/1 targets this orders
// candidate splits exactly as weighted gini impurity does, and leaf values are the positive fraction.
func growTree(x [][]float64, y []float64, idx []int, p treeParams, rng *rand.Rand) Tree {
	b := &treeBuilder{x: x, y: y, params: p, rng: rng}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	sum := 0.0
	for _, i := range idx {
		sum += b.y[i]
	}
	b.nodes = append(b.nodes, Node{Feature: leaf, Value: sum / float64(len(idx))})

	if len(idx) < 2*b.params.minSamplesLeaf || (b.params.maxDepth > 0 && depth >= b.params.maxDepth) {
		return id
	}
	feat, thr, ok := b.bestSplit(idx)
	if !ok {
		return id
	}
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: feat, Threshold: thr, Left: l, Right: r, Value: b.nodes[id].Value}
	return id
}

func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	nFeat := len(b.x[0])
	features := b.rng.Perm(nFeat)
	if m := b.params.maxFeatures; m > 0 && m < nFeat {
		features = features[:m]
	}

	n := float64(len(idx))
	total, totalSq := 0.0, 0.0
	for _, i := range idx {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	parentSSE := totalSq - total*total/n
	if parentSSE <= 1e-12 {
		return 0, 0, false
	}

	bestSSE := parentSSE - 1e-12
	bestFeat, bestThr, found := 0, 0.0, false
	order := make([]int, len(idx))
	minLeaf := b.params.minSamplesLeaf

	for _, f := range features {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })

		ls, lsq := 0.0, 0.0
		for k := 0; k < len(order)-1; k++ {
			yi := b.y[order[k]]
			ls += yi
			lsq += yi * yi
			nl := k + 1
			nr := len(order) - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			v, next := b.x[order[k]][f], b.x[order[k+1]][f]
			if v == next {
				continue
			}
			rs, rsq := total-ls, totalSq-lsq
			sse := (lsq - ls*ls/float64(nl)) + (rsq - rs*rs/float64(nr))
			if sse < bestSSE {
				bestSSE = sse
				bestFeat = f
				bestThr = v + (next-v)/2
				found = true
			}
		}
	}
	return bestFeat, bestThr, found
}
