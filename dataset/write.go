package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/fileio"
)

// Stdout is the path that WriteTable maps to standard output (as CSV).
const Stdout = "-"

// WriteTable writes t to path in the format given by its extension. Output
// may be gzip or zstd compressed; bz2 output is not supported.
func WriteTable(ctx context.Context, path string, t *Table) error {
	if path == Stdout {
		return EncodeTable(os.Stdout, FormatCSV, t)
	}
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	compression := fileio.Compression(path)
	if compression == "bz2" {
		return errors.NewUnsupportedFormatError(path, fileio.FullExt(path))
	}

	f, err := fileio.Create(ctx, path)
	if err != nil {
		return err
	}
	w, finish, err := compress(f, compression)
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "compress %s", path)
	}
	if err := EncodeTable(w, format, t); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := finish(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

func compress(w io.Writer, compression string) (io.Writer, func() error, error) {
	switch compression {
	case "gz":
		zw := gzip.NewWriter(w)
		return zw, zw.Close, nil
	case "zst":
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, err
		}
		return zw, zw.Close, nil
	}
	return w, func() error { return nil }, nil
}

// EncodeTable writes t to w in the given format.
func EncodeTable(w io.Writer, format string, t *Table) error {
	switch format {
	case FormatCSV:
		return writeDelimited(w, ',', t)
	case FormatTSV:
		return writeDelimited(w, '\t', t)
	case FormatJSONL:
		return writeJSONL(w, t)
	case FormatGob:
		return errors.Wrap(gob.NewEncoder(w).Encode(t), "encode gob table")
	}
	return errors.NewUnsupportedFormatError("", format)
}

func writeDelimited(w io.Writer, comma rune, t *Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.Columns {
			record[j] = FormatCell(c.Values[i])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSONL(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < t.NumRows(); i++ {
		bw.WriteByte('{')
		for j, c := range t.Columns {
			if j > 0 {
				bw.WriteByte(',')
			}
			key, err := json.Marshal(c.Name)
			if err != nil {
				return err
			}
			bw.Write(key)
			bw.WriteByte(':')

			v := c.Values[i]
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				v = nil
			}
			value, err := json.Marshal(v)
			if err != nil {
				return err
			}
			bw.Write(value)
		}
		bw.WriteString("}\n")
	}
	return bw.Flush()
}
