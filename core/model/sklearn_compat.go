package model

// ParamGetter はハイパーパラメータを公開するモデルのインターフェース
type ParamGetter interface {
	// GetParams returns the hyperparameters the model was constructed with.
	GetParams() map[string]interface{}
}

// Cloner はscikit-learnのclone()に相当する
type Cloner interface {
	// Clone returns an unfitted estimator with identical hyperparameters.
	Clone() Estimator
}

// Clone returns an unfitted copy of est. It is a convenience wrapper used by
// cross-validation so that every fold starts from the same configuration.
func Clone(est Estimator) Estimator {
	if est == nil {
		return nil
	}
	return est.Clone()
}
