// Package tree implements CART decision trees for classification and
// regression. Trees are stored as a flat slice of nodes so that a fitted
// tree gob-encodes without recursion.
package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

const leaf = -1

// Node is one node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Value holds class fractions for classifiers and the mean for regressors.
	Value    []float64
	Impurity float64
	NSamples int
}

// Params are the hyperparameters shared by both tree estimators.
type Params struct {
	Criterion       string
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
}

// Option configures a tree estimator.
type Option func(*Params)

// WithCriterion sets the impurity measure ("gini", "entropy" or "squared_error").
func WithCriterion(criterion string) Option {
	return func(p *Params) { p.Criterion = criterion }
}

// WithMaxDepth limits the tree depth. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *Params) { p.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) { p.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *Params) { p.MinSamplesLeaf = n }
}

func newParams(criterion string, opts []Option) Params {
	p := Params{Criterion: criterion, MinSamplesSplit: 2, MinSamplesLeaf: 1}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p Params) options() []Option {
	return []Option{
		WithCriterion(p.Criterion),
		WithMaxDepth(p.MaxDepth),
		WithMinSamplesSplit(p.MinSamplesSplit),
		WithMinSamplesLeaf(p.MinSamplesLeaf),
	}
}

func (p Params) validate(criteria ...string) error {
	ok := false
	for _, c := range criteria {
		if p.Criterion == c {
			ok = true
		}
	}
	if !ok {
		return errors.NewValidationError("criterion", "unsupported criterion", p.Criterion)
	}
	if p.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be non-negative", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", p.MinSamplesLeaf)
	}
	return nil
}

func (p Params) asMap(name string) map[string]interface{} {
	return map[string]interface{}{
		"name":              name,
		"criterion":         p.Criterion,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
	}
}

// criterion accumulates the statistics of one side of a split.
type criterion interface {
	reset()
	add(y float64)
	remove(y float64)
	impurity() float64
	value() []float64
	n() int
}

type builder struct {
	params      Params
	X           mat.Matrix
	y           []float64
	newStats    func() criterion
	nodes       []Node
	importances []float64
}

func (b *builder) build(idx []int) ([]Node, []float64) {
	_, nFeatures := b.X.Dims()
	b.importances = make([]float64, nFeatures)
	b.grow(idx, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for i := range b.importances {
			b.importances[i] /= total
		}
	}
	return b.nodes, b.importances
}

func (b *builder) grow(idx []int, depth int) int {
	stats := b.newStats()
	for _, i := range idx {
		stats.add(b.y[i])
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:   leaf,
		Left:      leaf,
		Right:     leaf,
		Value:     stats.value(),
		Impurity:  stats.impurity(),
		NSamples:  len(idx),
		Threshold: math.NaN(),
	})

	if b.nodes[id].Impurity <= 1e-12 ||
		len(idx) < b.params.MinSamplesSplit ||
		len(idx) < 2*b.params.MinSamplesLeaf ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return id
	}

	feature, threshold, childImpurity, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importances[feature] += float64(len(idx))*b.nodes[id].Impurity - childImpurity

	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit scans every feature for the threshold with the lowest weighted
// child impurity. The returned impurity is n_left*imp_left + n_right*imp_right.
func (b *builder) bestSplit(idx []int) (feature int, threshold, impurity float64, ok bool) {
	_, nFeatures := b.X.Dims()
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	best := math.Inf(1)

	sorted := make([]int, n)
	left, right := b.newStats(), b.newStats()
	for f := 0; f < nFeatures; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})

		left.reset()
		right.reset()
		for _, i := range sorted {
			right.add(b.y[i])
		}
		for k := 0; k < n-1; k++ {
			i := sorted[k]
			left.add(b.y[i])
			right.remove(b.y[i])

			cur, next := b.X.At(i, f), b.X.At(sorted[k+1], f)
			if cur == next || k+1 < minLeaf || n-k-1 < minLeaf {
				continue
			}
			score := float64(left.n())*left.impurity() + float64(right.n())*right.impurity()
			if score < best-1e-12 {
				best = score
				feature = f
				threshold = cur + (next-cur)/2
				ok = true
			}
		}
	}
	return feature, threshold, best, ok
}

func apply(nodes []Node, X mat.Matrix, i int) *Node {
	node := &nodes[0]
	for node.Feature != leaf {
		if X.At(i, node.Feature) <= node.Threshold {
			node = &nodes[node.Left]
		} else {
			node = &nodes[node.Right]
		}
	}
	return node
}

func depthOf(nodes []Node, id int) int {
	if id == leaf || nodes[id].Feature == leaf {
		return 0
	}
	l := depthOf(nodes, nodes[id].Left)
	r := depthOf(nodes, nodes[id].Right)
	if l > r {
		return l + 1
	}
	return r + 1
}

func countLeaves(nodes []Node) int {
	n := 0
	for _, node := range nodes {
		if node.Feature == leaf {
			n++
		}
	}
	return n
}

// classStats counts class indices for gini or entropy.
type classStats struct {
	counts  []float64
	total   int
	entropy bool
}

func (s *classStats) reset() {
	for i := range s.counts {
		s.counts[i] = 0
	}
	s.total = 0
}

func (s *classStats) add(y float64)    { s.counts[int(y)]++; s.total++ }
func (s *classStats) remove(y float64) { s.counts[int(y)]--; s.total-- }
func (s *classStats) n() int           { return s.total }

func (s *classStats) impurity() float64 {
	if s.total == 0 {
		return 0
	}
	t := float64(s.total)
	if s.entropy {
		h := 0.0
		for _, c := range s.counts {
			if c > 0 {
				p := c / t
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range s.counts {
		p := c / t
		g -= p * p
	}
	return g
}

func (s *classStats) value() []float64 {
	out := make([]float64, len(s.counts))
	if s.total == 0 {
		return out
	}
	for i, c := range s.counts {
		out[i] = c / float64(s.total)
	}
	return out
}

// varianceStats tracks sum and sum of squares for squared_error.
type varianceStats struct {
	sum, sumSq float64
	total      int
}

func (s *varianceStats) reset()           { *s = varianceStats{} }
func (s *varianceStats) add(y float64)    { s.sum += y; s.sumSq += y * y; s.total++ }
func (s *varianceStats) remove(y float64) { s.sum -= y; s.sumSq -= y * y; s.total-- }
func (s *varianceStats) n() int           { return s.total }

func (s *varianceStats) impurity() float64 {
	if s.total == 0 {
		return 0
	}
	mean := s.sum / float64(s.total)
	return math.Max(0, s.sumSq/float64(s.total)-mean*mean)
}

func (s *varianceStats) value() []float64 {
	if s.total == 0 {
		return []float64{0}
	}
	return []float64{s.sum / float64(s.total)}
}
