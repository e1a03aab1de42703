package engine

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/plotter"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/sklearn/linear_model"
)

type stubEngine struct {
	Base
	alpha float64
}

func (s *stubEngine) Fit(_ context.Context, in Input) (model.Estimator, Report, error) {
	est := linear_model.NewRidge(linear_model.WithAlpha(s.alpha))
	if err := est.Fit(in.XTrain, in.YTrain); err != nil {
		return nil, nil, err
	}
	return est, Report{"alpha": s.alpha}, nil
}

func init() {
	Register("stub", func(p *Params) (Engine, error) {
		alpha, err := p.Float("alpha", 1)
		if err != nil {
			return nil, err
		}
		return &stubEngine{Base: Base{Kind: "stub"}, alpha: alpha}, nil
	})
}

func TestRegistry(t *testing.T) {
	assert.True(t, Available("stub"))
	assert.Contains(t, Names(), "stub")
	assert.Panics(t, func() { Register("stub", nil) })

	e, err := New("stub", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", e.Name())

	_, err = New("stub", NewParams(map[string]any{"alpah": 0.5}))
	var ce *errors.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "model.alpah", ce.Key)
	assert.Equal(t, "alpha", ce.Suggestion)

	_, err = New("genetic", nil)
	var be *errors.BackendUnavailableError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "automl_no_genetic")
}

func TestBaseRefitAndPredict(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewVecDense(4, []float64{1, 3, 5, 7})
	e, err := New("stub", NewParams(map[string]any{"alpha": 0}))
	require.NoError(t, err)

	est, report, err := e.Fit(context.Background(), Input{XTrain: X, YTrain: y})
	require.NoError(t, err)
	assert.Equal(t, 0.0, report["alpha"])

	y2 := mat.NewVecDense(4, []float64{0, -1, -2, -3})
	refit, err := e.Refit(est, X, y2)
	require.NoError(t, err)

	orig, err := e.Predict(est, mat.NewDense(1, 1, []float64{4}))
	require.NoError(t, err)
	assert.InDelta(t, 9.0, orig.At(0, 0), 1e-6)
	got, err := e.Predict(refit, mat.NewDense(1, 1, []float64{4}))
	require.NoError(t, err)
	assert.InDelta(t, -4.0, got.At(0, 0), 1e-6)

	var ue *errors.UntrainedModelError
	_, err = e.Predict(nil, X)
	require.ErrorAs(t, err, &ue)
}

func TestInputHasValidation(t *testing.T) {
	in := Input{XTrain: mat.NewDense(1, 1, nil)}
	assert.False(t, in.HasValidation())
	in.XVal, in.YVal = mat.NewDense(1, 1, nil), mat.NewVecDense(1, nil)
	assert.True(t, in.HasValidation())
}

func TestParamsCoercion(t *testing.T) {
	p := NewParams(map[string]any{
		"Rate":    "0.25",
		"iters":   float64(10),
		"name":    7,
		"flag":    "true",
		"list":    []any{"a", "b"},
		"single":  "only",
		"nothing": nil,
	})
	f, err := p.Float("rate", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)
	n, err := p.Int("iters", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	s, err := p.String("name", "")
	require.NoError(t, err)
	assert.Equal(t, "7", s)
	b, err := p.Bool("flag", false)
	require.NoError(t, err)
	assert.True(t, b)
	l, err := p.Strings("list", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, l)
	l, err = p.Strings("single", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, l)

	d, err := p.Float("nothing", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, d)
	assert.False(t, p.Has("nothing"))
	assert.True(t, p.Has("rate"))
	assert.NoError(t, p.CheckUnknown())
}

func TestParamsInvalid(t *testing.T) {
	p := NewParams(map[string]any{
		"bool_num": true,
		"frac":     2.5,
		"word":     "many",
		"nested":   map[string]any{"a": 1},
	})
	tests := []struct {
		name string
		call func() error
		key  string
	}{
		{"bool as float", func() error { _, err := p.Float("bool_num", 0); return err }, "model.bool_num"},
		{"bool as int", func() error { _, err := p.Int("bool_num", 0); return err }, "model.bool_num"},
		{"fractional int", func() error { _, err := p.Int("frac", 0); return err }, "model.frac"},
		{"word as float", func() error { _, err := p.Float("word", 0); return err }, "model.word"},
		{"map as string", func() error { _, err := p.String("nested", ""); return err }, "model.nested"},
		{"word as bool", func() error { _, err := p.Bool("word", false); return err }, "model.word"},
		{"out of range", func() error { return p.Range("frac", 2.5, 0, 1) }, "model.frac"},
		{"not one of", func() error { return p.OneOf("word", "many", "few", "none") }, "model.word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ce *errors.ConfigurationError
			require.ErrorAs(t, tt.call(), &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestFloatJSON(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.5, "0.5"},
		{math.NaN(), `"nan"`},
		{math.Inf(1), `"inf"`},
		{math.Inf(-1), `"-inf"`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(Float(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(data))

		var back Float
		require.NoError(t, json.Unmarshal(data, &back))
		if math.IsNaN(tt.in) {
			assert.True(t, math.IsNaN(float64(back)))
		} else {
			assert.Equal(t, tt.in, float64(back))
		}
	}

	var bad Float
	assert.Error(t, json.Unmarshal([]byte(`"infinity"`), &bad))
}

func TestReportJSON(t *testing.T) {
	r := Report{"best_loss": math.Inf(1), "n_trials": 3}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"best_loss": "inf", "n_trials": 3}`, string(data))

	var back Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsInf(back["best_loss"], 1))
	assert.Equal(t, 3.0, back["n_trials"])
}

func TestArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteJSON(dir, "r.json", Report{"x": 1}))
	data, err := os.ReadFile(filepath.Join(dir, "r.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"x\": 1\n}\n", string(data))

	err = SavePlot(dir, "trace.png", "trace", "x", "y",
		Series{Name: "a", Points: plotter.XYs{{X: 0, Y: 1}, {X: 1, Y: math.Inf(1)}, {X: 2, Y: 0.5}}},
		Series{Name: "b", Points: plotter.XYs{{X: 0, Y: 2}}, Scatter: true},
		Series{Name: "empty", Points: plotter.XYs{{X: 0, Y: math.NaN()}}},
	)
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, "trace.png"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, WriteText(filepath.Join(dir, "missing"), "x.txt", "x"))
}
