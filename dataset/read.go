package dataset

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/fileio"
	"github.com/YuminosukeSato/automlcli/pkg/log"
)

// Format names understood by ReadTable and WriteTable.
const (
	FormatGob   = "gob"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatJSONL = "jsonl"
)

// Formats lists the supported format extensions.
var Formats = []string{FormatGob, FormatCSV, FormatTSV, FormatJSONL}

// FormatOf returns the table format of path, looking through a compression
// suffix. Unknown extensions yield an UnsupportedFormatError.
func FormatOf(path string) (string, error) {
	for _, f := range Formats {
		if fileio.ExtMatch(path, f) {
			return f, nil
		}
	}
	return "", errors.NewUnsupportedFormatError(path, fileio.FullExt(path))
}

// ReadTable reads a local or remote table file.
func ReadTable(ctx context.Context, path string) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := fileio.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, closer, err := decompress(f, fileio.Compression(path))
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", path)
	}
	defer closer()

	t, err := DecodeTable(r, format, path)
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("dataset").Debug("Loaded table",
		log.DataPathKey, path,
		log.DataFormatKey, format,
		log.SamplesKey, t.NumRows(),
		log.FeaturesKey, len(t.Columns),
	)
	return t, nil
}

// DecodeTable decodes an uncompressed stream in the given format. path is
// only used in error messages.
func DecodeTable(r io.Reader, format, path string) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch format {
	case FormatCSV:
		t, err = readDelimited(r, ',', path)
	case FormatTSV:
		t, err = readDelimited(r, '\t', path)
	case FormatJSONL:
		t, err = readJSONL(r, path)
	case FormatGob:
		t = &Table{}
		if derr := gob.NewDecoder(r).Decode(t); derr != nil {
			err = errors.NewDataFormatError(path, "", "invalid gob table: "+derr.Error())
		}
	default:
		return nil, errors.NewUnsupportedFormatError(path, format)
	}
	if err != nil {
		return nil, err
	}
	if err := t.Validate(path); err != nil {
		return nil, err
	}
	return t, nil
}

func decompress(r io.Reader, compression string) (io.Reader, func(), error) {
	switch compression {
	case "gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case "zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case "bz2":
		return bzip2.NewReader(r), func() {}, nil
	}
	return r, func() {}, nil
}

func readDelimited(r io.Reader, comma rune, path string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, errors.NewDataFormatError(path, "", err.Error())
	}
	t := &Table{Columns: make([]Column, len(header))}
	for i, name := range header {
		t.Columns[i].Name = name
	}

	for row := 0; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDataFormatErrorAt(path, "", row, err.Error())
		}
		for i, cell := range record {
			var v any
			if cell != "" {
				v = cell
			}
			t.Columns[i].Values = append(t.Columns[i].Values, v)
		}
	}
	return t, nil
}

// readJSONL decodes one JSON object per line. Columns are the union of keys
// in first-seen order; absent keys are missing cells.
func readJSONL(r io.Reader, path string) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	t := &Table{}
	index := make(map[string]int)
	rows := 0
	for line := 0; sc.Scan(); line++ {
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		keys, values, err := decodeObject(data)
		if err != nil {
			return nil, errors.NewDataFormatErrorAt(path, "", line, err.Error())
		}
		for k, key := range keys {
			i, ok := index[key]
			if !ok {
				i = len(t.Columns)
				index[key] = i
				t.Columns = append(t.Columns, Column{Name: key, Values: make([]any, rows)})
			}
			col := &t.Columns[i]
			if len(col.Values) > rows {
				return nil, errors.NewDataFormatErrorAt(path, key, line, "duplicate key")
			}
			col.Values = append(col.Values, values[k])
		}
		rows++
		for i := range t.Columns {
			if len(t.Columns[i].Values) < rows {
				t.Columns[i].Values = append(t.Columns[i].Values, nil)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// decodeObject walks the top-level object token by token so that key order
// is preserved.
func decodeObject(data []byte) ([]string, []any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("each line must be a JSON object")
	}
	var (
		keys   []string
		values []any
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, errors.New("object key is not a string")
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
