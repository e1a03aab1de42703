// Package model provides additional interfaces and types for machine learning models.
package model

// IsClassifier reports whether est predicts class labels.
func IsClassifier(est Estimator) bool {
	_, ok := est.(Classifier)
	return ok
}
