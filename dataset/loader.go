package dataset

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Frame is a table split into features, an optional target and an
// optional row index.
type Frame struct {
	// Index holds the stringified index column, nil when none is configured.
	Index []string
	X     *mat.Dense
	// Y is nil when the target column is absent from the file.
	Y            *mat.VecDense
	FeatureNames []string
}

// NumRows returns the number of samples.
func (f *Frame) NumRows() int {
	if f.X == nil {
		return len(f.Index)
	}
	r, _ := f.X.Dims()
	return r
}

// HasTarget reports whether the file contained the target column.
func (f *Frame) HasTarget() bool { return f.Y != nil }

// Loader splits tables according to the configured column roles.
type Loader struct {
	TargetColumn   string
	IndexColumn    string
	IgnoredColumns []string
}

// Load reads path and splits it into a Frame.
func (l Loader) Load(ctx context.Context, path string) (*Frame, error) {
	t, err := ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}
	return l.Split(path, t)
}

// Split removes the index, target and ignored columns from t and coerces
// the remaining columns, in table order, to a float64 matrix. t itself is
// not modified.
func (l Loader) Split(path string, t *Table) (*Frame, error) {
	work := &Table{Columns: append([]Column(nil), t.Columns...)}
	n := t.NumRows()
	frame := &Frame{}

	if l.IndexColumn != "" {
		col, ok := work.Pop(l.IndexColumn)
		if !ok {
			return nil, errors.NewDataFormatError(path, l.IndexColumn, "index column does not exist")
		}
		frame.Index = make([]string, n)
		for i, v := range col.Values {
			frame.Index[i] = FormatCell(v)
		}
	}

	if n == 0 {
		return nil, errors.NewDataFormatError(path, "", "file has no rows")
	}

	if l.TargetColumn != "" {
		if col, ok := work.Pop(l.TargetColumn); ok {
			y, missing, err := coerce(path, col)
			if err != nil {
				return nil, err
			}
			if missing > 0 {
				return nil, errors.NewDataFormatError(path, col.Name, fmt.Sprintf("target has %d missing values", missing))
			}
			frame.Y = mat.NewVecDense(n, y)
		}
	}

	for _, name := range l.IgnoredColumns {
		work.Pop(name)
	}

	if len(work.Columns) == 0 {
		return nil, errors.NewDataFormatError(path, "", "no feature columns left after removing index, target and ignored columns")
	}

	frame.FeatureNames = work.Names()
	frame.X = mat.NewDense(n, len(work.Columns), nil)
	for j, col := range work.Columns {
		values, missing, err := coerce(path, col)
		if err != nil {
			return nil, err
		}
		if missing > 0 {
			errors.Warn(errors.NewDataConversionWarning(col.Name, "missing", "float64",
				fmt.Sprintf("%d missing values converted to NaN", missing)))
		}
		frame.X.SetCol(j, values)
	}
	return frame, nil
}

// coerce converts a column to float64. Numbers pass through, booleans become
// 1/0 and numeric strings are parsed; missing cells become NaN and are
// counted.
func coerce(path string, col Column) ([]float64, int, error) {
	out := make([]float64, len(col.Values))
	missing := 0
	for i, v := range col.Values {
		switch x := v.(type) {
		case nil:
			out[i] = math.NaN()
			missing++
		case float64:
			out[i] = x
			if math.IsNaN(x) {
				missing++
			}
		case bool:
			if x {
				out[i] = 1
			}
		case string:
			s := strings.TrimSpace(x)
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				switch strings.ToLower(s) {
				case "true":
					f = 1
				case "false":
					f = 0
				default:
					return nil, 0, errors.NewDataFormatErrorAt(path, col.Name, i,
						fmt.Sprintf("cannot convert %q to a number", x))
				}
			}
			out[i] = f
			if math.IsNaN(f) {
				missing++
			}
		default:
			return nil, 0, errors.NewDataFormatErrorAt(path, col.Name, i,
				fmt.Sprintf("cannot convert %T to a number", v))
		}
	}
	return out, missing, nil
}
