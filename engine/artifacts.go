package engine

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Float is a float64 whose JSON form is a string for NaN and ±Inf
// ("nan", "inf", "-inf"), which encoding/json cannot represent.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"nan"`), nil
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "nan":
			*f = Float(math.NaN())
		case "inf":
			*f = Float(math.Inf(1))
		case "-inf":
			*f = Float(math.Inf(-1))
		default:
			return errors.Newf("invalid float %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// MarshalJSON writes the report with non-finite values as strings.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]Float, len(r))
	for k, v := range r {
		out[k] = Float(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the output of MarshalJSON.
func (r *Report) UnmarshalJSON(data []byte) error {
	var in map[string]Float
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = make(Report, len(in))
	for k, v := range in {
		(*r)[k] = float64(v)
	}
	return nil
}

// WriteText writes s to dir/name.
func WriteText(dir, name, s string) error {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(s), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", p)
	}
	return nil
}

// WriteJSON writes v as indented JSON to dir/name.
func WriteJSON(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	return WriteText(dir, name, string(data)+"\n")
}

// Series is one named line of a trace plot.
type Series struct {
	Name   string
	Points plotter.XYs
	// Scatter draws points only.
	Scatter bool
}

// SavePlot renders series into dir/name; the image format follows the
// extension. Non-finite points are skipped, and series left empty are not
// drawn.
func SavePlot(dir, name, title, xLabel, yLabel string, series ...Series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	for i, s := range series {
		pts := finitePoints(s.Points)
		if len(pts) == 0 {
			continue
		}
		if s.Scatter {
			sc, err := plotter.NewScatter(pts)
			if err != nil {
				return errors.Wrapf(err, "plot %s", s.Name)
			}
			sc.GlyphStyle.Color = plotutil.Color(i)
			sc.GlyphStyle.Shape = plotutil.Shape(i)
			p.Add(sc)
			p.Legend.Add(s.Name, sc)
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "plot %s", s.Name)
		}
		line.Color = plotutil.Color(i)
		line.StepStyle = plotter.PostStep
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	path := filepath.Join(dir, name)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

func finitePoints(xys plotter.XYs) plotter.XYs {
	out := make(plotter.XYs, 0, len(xys))
	for _, xy := range xys {
		if math.IsNaN(xy.X) || math.IsInf(xy.X, 0) || math.IsNaN(xy.Y) || math.IsInf(xy.Y, 0) {
			continue
		}
		out = append(out, xy)
	}
	return out
}
