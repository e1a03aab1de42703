package dataset

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

const sampleCSV = "id,target,a,b\nr1,0,1.5,2\nr2,1,3,4\n"

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func gz(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zst(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func gobTable(t *testing.T) []byte {
	var buf bytes.Buffer
	tbl := &Table{Columns: []Column{
		{Name: "id", Values: []any{"r1", "r2"}},
		{Name: "target", Values: []any{0.0, 1.0}},
		{Name: "a", Values: []any{1.5, 3.0}},
		{Name: "b", Values: []any{2.0, 4.0}},
	}}
	require.NoError(t, EncodeTable(&buf, FormatGob, tbl))
	return buf.Bytes()
}

func TestReadTableDispatch(t *testing.T) {
	dir := t.TempDir()
	tsv := []byte("id\ttarget\ta\tb\nr1\t0\t1.5\t2\nr2\t1\t3\t4\n")
	jsonl := []byte(`{"id":"r1","target":0,"a":1.5,"b":2}` + "\n" + `{"id":"r2","target":1,"a":3,"b":4}` + "\n")

	cases := []struct {
		name string
		data []byte
	}{
		{"train.csv", []byte(sampleCSV)},
		{"TRAIN.CSV", []byte(sampleCSV)},
		{"train.tsv", tsv},
		{"train.jsonl", jsonl},
		{"train.gob", gobTable(t)},
		{"train.csv.gz", gz(t, []byte(sampleCSV))},
		{"train.jsonl.zst", zst(t, jsonl)},
		{"train.tsv.GZ", gz(t, tsv)},
	}
	loader := Loader{TargetColumn: "target", IndexColumn: "id"}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeFile(t, dir, tc.name, tc.data)
			f, err := loader.Load(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, f.FeatureNames)
			assert.Equal(t, []string{"r1", "r2"}, f.Index)
			assert.Equal(t, []float64{0, 1}, f.Y.RawVector().Data)
			assert.Equal(t, 1.5, f.X.At(0, 0))
			assert.Equal(t, 4.0, f.X.At(1, 1))
		})
	}

	t.Run("bz2", func(t *testing.T) {
		f, err := loader.Load(context.Background(), filepath.Join("testdata", "small.csv.bz2"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, f.FeatureNames)
		assert.Equal(t, 2, f.NumRows())
	})
}

func TestReadTableUnsupported(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"train.parquet", "train", "train.gz", "train.csv.xz"} {
		p := writeFile(t, dir, name, []byte(sampleCSV))
		_, err := ReadTable(context.Background(), p)
		var uf *errors.UnsupportedFormatError
		require.ErrorAs(t, err, &uf, name)
		assert.Equal(t, p, uf.Path)
	}
}

func TestSplitColumnRoles(t *testing.T) {
	tbl := &Table{Columns: []Column{
		{Name: "id", Values: []any{1.0, 2.0, 3.0}},
		{Name: "target", Values: []any{"1", "0", "1"}},
		{Name: "a", Values: []any{1.0, 2.0, 3.0}},
		{Name: "skip", Values: []any{"x", "y", "z"}},
		{Name: "b", Values: []any{true, false, "7"}},
	}}
	l := Loader{TargetColumn: "target", IndexColumn: "id", IgnoredColumns: []string{"skip", "absent"}}
	f, err := l.Split("mem", tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.FeatureNames)
	assert.Equal(t, []string{"1", "2", "3"}, f.Index)
	assert.Equal(t, []float64{1, 0, 1}, f.Y.RawVector().Data)
	assert.Equal(t, []float64{1, 0, 7}, []float64{f.X.At(0, 1), f.X.At(1, 1), f.X.At(2, 1)})
	// 元のテーブルは変更されない
	assert.Len(t, tbl.Columns, 5)
}

func TestSplitWithoutTarget(t *testing.T) {
	tbl := &Table{Columns: []Column{
		{Name: "id", Values: []any{"a", "b"}},
		{Name: "x", Values: []any{1.0, 2.0}},
	}}
	f, err := Loader{TargetColumn: "target", IndexColumn: "id"}.Split("mem", tbl)
	require.NoError(t, err)
	assert.False(t, f.HasTarget())
	assert.Nil(t, f.Y)
	assert.Equal(t, []string{"x"}, f.FeatureNames)
}

func TestSplitErrors(t *testing.T) {
	tbl := &Table{Columns: []Column{
		{Name: "target", Values: []any{1.0, 0.0}},
		{Name: "color", Values: []any{"red", 2.0}},
	}}
	_, err := Loader{TargetColumn: "target"}.Split("mem", tbl)
	var df *errors.DataFormatError
	require.ErrorAs(t, err, &df)
	assert.Equal(t, "color", df.Column)
	assert.Equal(t, 0, df.Row)

	_, err = Loader{TargetColumn: "target", IndexColumn: "id"}.Split("mem", tbl)
	require.ErrorAs(t, err, &df)
	assert.Equal(t, "id", df.Column)

	withNaNTarget := &Table{Columns: []Column{
		{Name: "target", Values: []any{1.0, nil}},
		{Name: "x", Values: []any{1.0, 2.0}},
	}}
	_, err = Loader{TargetColumn: "target"}.Split("mem", withNaNTarget)
	require.ErrorAs(t, err, &df)
	assert.Equal(t, "target", df.Column)

	onlyTarget := &Table{Columns: []Column{{Name: "target", Values: []any{1.0}}}}
	_, err = Loader{TargetColumn: "target"}.Split("mem", onlyTarget)
	require.ErrorAs(t, err, &df)
}

func TestSplitMissingValuesWarn(t *testing.T) {
	var (
		mu       sync.Mutex
		warnings []error
	)
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	defer errors.SetWarningHandler(nil)

	tbl := &Table{Columns: []Column{
		{Name: "x", Values: []any{1.0, nil, math.NaN()}},
	}}
	f, err := Loader{TargetColumn: "target"}.Split("mem", tbl)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(f.X.At(1, 0)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, warnings, 1)
	var dc *errors.DataConversionWarning
	require.ErrorAs(t, warnings[0], &dc)
	assert.Equal(t, "x", dc.Column)
}

func TestJSONLKeepsFirstSeenOrder(t *testing.T) {
	data := `{"z":1,"a":2}` + "\n\n" + `{"a":3,"m":true}` + "\n"
	tbl, err := DecodeTable(bytes.NewBufferString(data), FormatJSONL, "mem.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, tbl.Names())
	assert.Equal(t, []any{1.0, nil}, tbl.Columns[0].Values)
	assert.Equal(t, []any{nil, true}, tbl.Columns[2].Values)

	_, err = DecodeTable(bytes.NewBufferString("[1,2]\n"), FormatJSONL, "mem.jsonl")
	var df *errors.DataFormatError
	require.ErrorAs(t, err, &df)
}

func TestWriteTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tbl := &Table{Columns: []Column{
		{Name: "id", Values: []any{"r1", "r2"}},
		{Name: "prediction", Values: []any{0.25, math.NaN()}},
	}}
	for _, name := range []string{"out.csv", "out.tsv", "out.jsonl", "out.gob", "out.csv.gz", "out.jsonl.zst", filepath.Join("nested", "out.csv")} {
		p := filepath.Join(dir, name)
		require.NoError(t, WriteTable(context.Background(), p, tbl), name)
		back, err := ReadTable(context.Background(), p)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"id", "prediction"}, back.Names(), name)
		assert.Equal(t, "r1", back.Columns[0].Values[0], name)
		assert.Equal(t, 0.25, coerceOne(t, back.Columns[1].Values[0]), name)
	}

	err := WriteTable(context.Background(), filepath.Join(dir, "out.csv.bz2"), tbl)
	var uf *errors.UnsupportedFormatError
	assert.ErrorAs(t, err, &uf)
}

func coerceOne(t *testing.T, v any) float64 {
	t.Helper()
	out, _, err := coerce("mem", Column{Name: "v", Values: []any{v}})
	require.NoError(t, err)
	return out[0]
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	tbl := &Table{Columns: []Column{
		{Name: "id", Values: []any{"a", "b", "c"}},
		{Name: "target", Values: []any{1.0, 2.5, nil}},
	}}
	require.NoError(t, EncodeTable(&buf, FormatCSV, tbl))
	assert.Equal(t, "id,target\na,1\nb,2.5\nc,\n", buf.String())
}
