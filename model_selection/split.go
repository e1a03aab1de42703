// Package model_selection provides k-fold splitters, hold-out splitting and
// cross-validation over model.Estimator values.
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// KFoldSplitter defines interface for cross-validation splitters
type KFoldSplitter interface {
	Split(X, y mat.Matrix) ([]CVFold, error)
	GetNSplits() int
}

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func checkSplits(op string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	if nSplits > nSamples {
		return errors.NewValueError(op, "n_splits cannot be greater than the number of samples")
	}
	return nil
}

// Split generates train/test indices for each fold
func (kf *KFold) Split(X, _ mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("KFold.Split", kf.NSplits, nSamples); err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomSeed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	currentIdx := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := append([]int(nil), indices[currentIdx:currentIdx+testSize]...)
		folds[i] = complement(nSamples, test)
		currentIdx += testSize
	}
	return folds, nil
}

// StratifiedKFold implements stratified k-fold cross-validation
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed uint64) *StratifiedKFold {
	return &StratifiedKFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split deals each class round-robin across the folds so that every fold
// keeps roughly the overall class proportions.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("StratifiedKFold.Split", skf.NSplits, nSamples); err != nil {
		return nil, err
	}
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "y is required")
	}

	classIndices := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]float64, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	var r *rand.Rand
	if skf.Shuffle {
		r = newRand(skf.RandomSeed)
	}

	tests := make([][]int, skf.NSplits)
	next := 0
	for _, label := range labels {
		indices := classIndices[label]
		if r != nil {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for _, idx := range indices {
			tests[next] = append(tests[next], idx)
			next = (next + 1) % skf.NSplits
		}
	}

	folds := make([]CVFold, skf.NSplits)
	for i, test := range tests {
		folds[i] = complement(nSamples, test)
	}
	return folds, nil
}

// complement builds a fold from its sorted test indices.
func complement(nSamples int, test []int) CVFold {
	sort.Ints(test)
	inTest := make([]bool, nSamples)
	for _, idx := range test {
		inTest[idx] = true
	}
	train := make([]int, 0, nSamples-len(test))
	for j := 0; j < nSamples; j++ {
		if !inTest[j] {
			train = append(train, j)
		}
	}
	return CVFold{TrainIndices: train, TestIndices: test}
}

// TrainTestSplitIndices shuffles 0..nSamples-1 with seed and holds out
// ceil(testSize*nSamples) of them, keeping at least one sample on each side.
func TrainTestSplitIndices(nSamples int, testSize float64, seed uint64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	if nSamples < 2 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "need at least 2 samples")
	}
	nTest := int(math.Ceil(testSize * float64(nSamples)))
	if nTest >= nSamples {
		nTest = nSamples - 1
	}

	perm := newRand(seed).Perm(nSamples)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test, nil
}

// TrainTestSplit splits X and y into a seeded random hold-out.
func TrainTestSplit(X mat.Matrix, y *mat.VecDense, testSize float64, seed uint64) (XTrain, XTest *mat.Dense, yTrain, yTest *mat.VecDense, err error) {
	nSamples, _ := X.Dims()
	train, test, err := TrainTestSplitIndices(nSamples, testSize, seed)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	XTrain, yTrain = Subset(X, y, train)
	XTest, yTest = Subset(X, y, test)
	return XTrain, XTest, yTrain, yTest, nil
}

// Subset copies the given rows of X and y. y may be nil.
func Subset(X mat.Matrix, y *mat.VecDense, indices []int) (*mat.Dense, *mat.VecDense) {
	_, cols := X.Dims()
	xs := mat.NewDense(len(indices), cols, nil)
	var ys *mat.VecDense
	if y != nil {
		ys = mat.NewVecDense(len(indices), nil)
	}
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			xs.Set(i, j, X.At(idx, j))
		}
		if ys != nil {
			ys.SetVec(i, y.AtVec(idx))
		}
	}
	return xs, ys
}
