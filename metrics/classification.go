package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// logLossEps はlog(0)を避けるためのクリップ幅
const logLossEps = 1e-15

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinaryLabels(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// BalancedAccuracy は各クラスの再現率の平均を計算する
func BalancedAccuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("balanced_accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	total := map[float64]int{}
	hit := map[float64]int{}
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		total[t]++
		if yPred.AtVec(i) == t {
			hit[t]++
		}
	}
	var sum float64
	for c, cnt := range total {
		sum += float64(hit[c]) / float64(cnt)
	}
	return sum / float64(len(total)), nil
}

// Labels returns the sorted distinct values of the given vectors.
func Labels(vs ...*mat.VecDense) []float64 {
	seen := map[float64]struct{}{}
	for _, v := range vs {
		if v == nil {
			continue
		}
		for i := 0; i < v.Len(); i++ {
			seen[v.AtVec(i)] = struct{}{}
		}
	}
	out := make([]float64, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Float64s(out)
	return out
}

type prf struct {
	precision, recall, f1 float64
}

func precisionRecallF1(op string, yTrue, yPred *mat.VecDense) (prf, error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return prf{}, err
	}
	labels := Labels(yTrue, yPred)
	// 二値ならば大きい方のラベルを陽性とし、多クラスではマクロ平均を取る
	targets := labels
	if len(labels) <= 2 {
		targets = labels[len(labels)-1:]
	}

	var out prf
	for _, pos := range targets {
		var tp, fp, fn float64
		for i := 0; i < n; i++ {
			t, p := yTrue.AtVec(i) == pos, yPred.AtVec(i) == pos
			switch {
			case t && p:
				tp++
			case p:
				fp++
			case t:
				fn++
			}
		}
		var precision, recall, f1 float64
		if tp+fp == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
		} else {
			precision = tp / (tp + fp)
		}
		if tp+fn == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
		} else {
			recall = tp / (tp + fn)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		out.precision += precision
		out.recall += recall
		out.f1 += f1
	}
	k := float64(len(targets))
	out.precision /= k
	out.recall /= k
	out.f1 /= k
	return out, nil
}

// Precision は適合率を計算する（多クラスではマクロ平均）
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := precisionRecallF1("precision", yTrue, yPred)
	return r.precision, err
}

// Recall は再現率を計算する（多クラスではマクロ平均）
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := precisionRecallF1("recall", yTrue, yPred)
	return r.recall, err
}

// F1Score はF1スコアを計算する（多クラスではマクロ平均）
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := precisionRecallF1("f1", yTrue, yPred)
	return r.f1, err
}

// averageRanks は同順位に平均順位を割り当てた1始まりの順位を返す
func averageRanks(v *mat.VecDense) []float64 {
	n := v.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v.AtVec(idx[a]) < v.AtVec(idx[b]) })
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && v.AtVec(idx[j+1]) == v.AtVec(idx[i]) {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		i = j + 1
	}
	return ranks
}

// AUC はROC曲線下面積を計算する。yTrueは0/1、yPredは陽性クラスのスコア。
// 片方のクラスしか存在しない場合は0.5を返す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("roc_auc", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("roc_auc", yTrue); err != nil {
		return 0, err
	}

	ranks := averageRanks(yPred)
	var nPos, sumPos float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
			sumPos += ranks[i]
		}
	}
	nNeg := float64(n) - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	return (sumPos - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// FirstColumn copies the first column of m into a vector.
func FirstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// LogLoss は多クラスの対数損失を計算する。probaの列はclassesの順に並ぶ。
func LogLoss(yTrue *mat.VecDense, proba mat.Matrix, classes []float64) (float64, error) {
	if yTrue == nil || proba == nil {
		return 0, errors.NewValueError("neg_log_loss", "nil input")
	}
	n := yTrue.Len()
	r, c := proba.Dims()
	if n == 0 {
		return 0, errors.NewValueError("neg_log_loss", "empty vector")
	}
	if r != n {
		return 0, errors.NewDimensionError("neg_log_loss", n, r, 0)
	}
	if c != len(classes) {
		return 0, errors.NewDimensionError("neg_log_loss", len(classes), c, 1)
	}
	col := make(map[float64]int, len(classes))
	for j, cl := range classes {
		col[cl] = j
	}
	var sum float64
	for i := 0; i < n; i++ {
		j, ok := col[yTrue.AtVec(i)]
		if !ok {
			return 0, errors.NewValueError("neg_log_loss", "y_true contains a label not seen during fitting")
		}
		var rowSum float64
		for k := 0; k < c; k++ {
			rowSum += math.Min(math.Max(proba.At(i, k), logLossEps), 1-logLossEps)
		}
		p := math.Min(math.Max(proba.At(i, j), logLossEps), 1-logLossEps) / rowSum
		sum -= math.Log(p)
	}
	return sum / float64(n), nil
}

// RocAUCProba computes ROC AUC from a probability matrix. Binary problems
// score the last column; multiclass problems use the one-vs-rest macro
// average.
func RocAUCProba(yTrue *mat.VecDense, proba mat.Matrix, classes []float64) (float64, error) {
	return oneVsRest("roc_auc", yTrue, proba, classes, AUC)
}

// AveragePrecisionProba は平均適合率を確率行列から計算する
func AveragePrecisionProba(yTrue *mat.VecDense, proba mat.Matrix, classes []float64) (float64, error) {
	return oneVsRest("average_precision", yTrue, proba, classes, AveragePrecision)
}

func oneVsRest(op string, yTrue *mat.VecDense, proba mat.Matrix, classes []float64,
	fn func(yTrue, yScore *mat.VecDense) (float64, error)) (float64, error) {
	if yTrue == nil || proba == nil {
		return 0, errors.NewValueError(op, "nil input")
	}
	n := yTrue.Len()
	r, c := proba.Dims()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if r != n {
		return 0, errors.NewDimensionError(op, n, r, 0)
	}
	if c != len(classes) || c < 2 {
		return 0, errors.NewDimensionError(op, len(classes), c, 1)
	}
	targets := []int{c - 1}
	if c > 2 {
		targets = targets[:0]
		for j := 0; j < c; j++ {
			targets = append(targets, j)
		}
	}
	var sum float64
	for _, j := range targets {
		bin := mat.NewVecDense(n, nil)
		score := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			if yTrue.AtVec(i) == classes[j] {
				bin.SetVec(i, 1)
			}
			score.SetVec(i, proba.At(i, j))
		}
		v, err := fn(bin, score)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(targets)), nil
}

// AveragePrecision は適合率-再現率曲線の要約値を計算する。yTrueは0/1。
func AveragePrecision(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("average_precision", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("average_precision", yTrue); err != nil {
		return 0, err
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yScore.AtVec(idx[a]) > yScore.AtVec(idx[b]) })

	var nPos float64
	for i := 0; i < n; i++ {
		nPos += yTrue.AtVec(i)
	}
	if nPos == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("average_precision", "no positive samples in y_true", 0))
		return 0, nil
	}

	// 同じスコアはまとめて1つの閾値として扱う
	var ap, tp, seen, prevRecall float64
	for i := 0; i < n; {
		j := i
		for j < n && yScore.AtVec(idx[j]) == yScore.AtVec(idx[i]) {
			tp += yTrue.AtVec(idx[j])
			seen++
			j++
		}
		recall := tp / nPos
		ap += (recall - prevRecall) * (tp / seen)
		prevRecall = recall
		i = j
	}
	return ap, nil
}
