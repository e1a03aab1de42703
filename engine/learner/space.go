// Package learner is the catalog of estimator families an engine can search
// over. Each Learner has a hyperparameter space and builds an imputing
// pipeline from a concrete configuration.
package learner

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// Kind is the sampling distribution of a Dimension.
type Kind int

const (
	// LogUniform samples exp(U(log Low, log High)).
	LogUniform Kind = iota
	// Uniform samples U(Low, High).
	Uniform
	// IntUniform samples an integer in [Low, High].
	IntUniform
	// Categorical samples one of Choices.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case LogUniform:
		return "loguniform"
	case Uniform:
		return "uniform"
	case IntUniform:
		return "randint"
	case Categorical:
		return "choice"
	}
	return "unknown"
}

// Dimension is one hyperparameter of a search space.
type Dimension struct {
	Name      string
	Kind      Kind
	Low, High float64
	Choices   []any
	// Default is the value tried first.
	Default any
}

// Sample draws a value for d.
func (d Dimension) Sample(r *rand.Rand) any {
	switch d.Kind {
	case LogUniform:
		lo, hi := math.Log(d.Low), math.Log(d.High)
		return math.Exp(lo + r.Float64()*(hi-lo))
	case Uniform:
		return d.Low + r.Float64()*(d.High-d.Low)
	case IntUniform:
		lo, hi := int(d.Low), int(d.High)
		return lo + r.IntN(hi-lo+1)
	case Categorical:
		return d.Choices[r.IntN(len(d.Choices))]
	}
	return d.Default
}

// Config is a concrete assignment of hyperparameters.
type Config map[string]any

// Clone returns a shallow copy of c.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String renders c with sorted keys, e.g. "{C: 0.5, penalty: l2}".
func (c Config) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, c[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (c Config) float(name string) float64 {
	switch v := c[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (c Config) int(name string) int {
	switch v := c[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (c Config) str(name string) string {
	s, _ := c[name].(string)
	return s
}

func (c Config) bool(name string) bool {
	b, _ := c[name].(bool)
	return b
}
