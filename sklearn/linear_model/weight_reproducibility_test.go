package linear_model

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
)

func reproducibilityData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(100, 3, nil)
	y := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		X.Set(i, 0, math.Sin(float64(i)/10.0))
		X.Set(i, 1, math.Cos(float64(i)/10.0))
		X.Set(i, 2, float64(i)/50.0)
		// y = 2*x1 + 3*x2 - x3 + 5 + noise
		y.Set(i, 0, 2*X.At(i, 0)+3*X.At(i, 1)-X.At(i, 2)+5+float64(i%5)/100.0)
	}
	return X, y
}

// TestLinearRegressionWeightReproducibility は重みの完全な再現性をテスト
func TestLinearRegressionWeightReproducibility(t *testing.T) {
	X, y := reproducibilityData()

	model1 := NewLinearRegression(WithLRFitIntercept(true))
	if err := model1.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model1: %v", err)
	}

	// gobで保存して読み戻す
	var buf bytes.Buffer
	var est model.Estimator = model1
	if err := model.SaveModelToWriter(&est, &buf); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}
	var loaded model.Estimator
	if err := model.LoadModelFromReader(&loaded, &buf); err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}
	model2, ok := loaded.(*LinearRegression)
	if !ok {
		t.Fatalf("Loaded model has type %T", loaded)
	}

	coef1 := model1.Weights()
	coef2 := model2.Weights()
	if len(coef1) != len(coef2) {
		t.Fatalf("Coefficient length mismatch: %d vs %d", len(coef1), len(coef2))
	}
	for i := range coef1 {
		if coef1[i] != coef2[i] {
			t.Errorf("Coefficient mismatch at index %d: %.15f vs %.15f", i, coef1[i], coef2[i])
		}
	}
	if model1.Intercept() != model2.Intercept() {
		t.Errorf("Intercept mismatch: %.15f vs %.15f", model1.Intercept(), model2.Intercept())
	}

	pred1, err := model1.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict with model1: %v", err)
	}
	pred2, err := model2.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict with model2: %v", err)
	}
	if !mat.Equal(pred1, pred2) {
		t.Error("Predictions differ after gob round trip")
	}
}

// TestLinearRegressionRecoversCoefficients は既知の係数の復元をテスト
func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X, y := reproducibilityData()
	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	want := []float64{2, 3, -1}
	for i, w := range want {
		if math.Abs(lr.Weights()[i]-w) > 0.05 {
			t.Errorf("coef[%d] = %v, want about %v", i, lr.Weights()[i], w)
		}
	}
	if math.Abs(lr.Intercept()-5) > 0.1 {
		t.Errorf("intercept = %v, want about 5", lr.Intercept())
	}
	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score < 0.99 {
		t.Errorf("R2 too low: %v", score)
	}
}

// TestLinearRegressionCollinear は重複列があっても学習できることをテスト
func TestLinearRegressionCollinear(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
		5, 5,
	})
	y := mat.NewVecDense(5, []float64{3, 5, 7, 9, 11})
	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit collinear data: %v", err)
	}
	pred, err := lr.Predict(mat.NewDense(1, 2, []float64{6, 6}))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pred.At(0, 0)-13) > 1e-8 {
		t.Errorf("prediction = %v, want 13", pred.At(0, 0))
	}
}

// TestRidgeShrinksTowardsZero はalphaが大きいほど係数が縮小することをテスト
func TestRidgeShrinksTowardsZero(t *testing.T) {
	X, y := reproducibilityData()

	weak := NewRidge(WithAlpha(1e-6))
	strong := NewRidge(WithAlpha(1e3))
	if err := weak.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := strong.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	ols := NewLinearRegression()
	if err := ols.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	norm := func(w []float64) float64 {
		s := 0.0
		for _, v := range w {
			s += v * v
		}
		return math.Sqrt(s)
	}
	for i := range ols.Weights() {
		if math.Abs(ols.Weights()[i]-weak.Weights()[i]) > 1e-4 {
			t.Errorf("tiny alpha should match OLS at %d: %v vs %v", i, weak.Weights()[i], ols.Weights()[i])
		}
	}
	if norm(strong.Weights()) >= norm(weak.Weights()) {
		t.Errorf("strong alpha should shrink: %v >= %v", norm(strong.Weights()), norm(weak.Weights()))
	}
	if err := NewRidge(WithAlpha(-1)).Fit(X, y); err == nil {
		t.Error("negative alpha should be rejected")
	}
}

// TestLinearModelsClone はCloneが未学習のコピーを返すことをテスト
func TestLinearModelsClone(t *testing.T) {
	X, y := reproducibilityData()
	for _, est := range []model.Estimator{NewLinearRegression(), NewRidge(WithAlpha(0.5))} {
		if err := est.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		c := est.Clone()
		if c.IsFitted() {
			t.Errorf("%T clone should be unfitted", est)
		}
		if c.GetParams()["name"] != est.GetParams()["name"] {
			t.Errorf("%T clone changed params", est)
		}
		if _, err := c.Predict(X); err == nil {
			t.Errorf("%T clone should refuse to predict", est)
		}
	}
}

func BenchmarkLinearRegressionFit(b *testing.B) {
	X, y := reproducibilityData()
	for i := 0; i < b.N; i++ {
		lr := NewLinearRegression()
		if err := lr.Fit(X, y); err != nil {
			b.Fatal(err)
		}
	}
}
