package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is a fitted or unfitted supervised model. Engines hand
// Estimators back to the automl layer, which persists them with gob.
type Estimator interface {
	Fitter
	Predictor
	Cloner
	ParamGetter

	// IsFitted reports whether Fit has completed successfully.
	IsFitted() bool
}

// Classifier はクラス確率を出力できる分類器
type Classifier interface {
	Estimator

	// PredictProba returns one column per class, ordered like Classes.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []float64
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Weights は学習された重み（係数）を返す
	Weights() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}
