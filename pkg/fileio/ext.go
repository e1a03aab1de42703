// Package fileio resolves local, HTTP(S) and S3 paths for the automl CLI.
//
// Remote inputs are downloaded once into a content-addressed cache so that
// repeated runs against the same URL read a local file.
package fileio

import (
	"net/url"
	"path"
	"strings"
)

// CompressionExts はデータファイルに付与できる圧縮拡張子です。
var CompressionExts = []string{"gz", "bz2", "zst"}

// Ext returns the lower-cased suffix after the final dot of p, or "".
// URL query strings and fragments are ignored.
func Ext(p string) string {
	base := path.Base(stripURL(p))
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// Compression returns the compression suffix of p ("gz", "bz2", "zst") or "".
func Compression(p string) string {
	ext := Ext(p)
	for _, c := range CompressionExts {
		if ext == c {
			return c
		}
	}
	return ""
}

// DataExt returns the format extension of p, looking through a trailing
// compression suffix: "train.csv.gz" -> "csv".
func DataExt(p string) string {
	p = stripURL(p)
	if c := Compression(p); c != "" {
		p = p[:len(p)-len(c)-1]
	}
	return Ext(p)
}

// ExtMatch reports whether p has one of exts, case-insensitively. A
// trailing compression suffix is looked through, so "a.CSV.gz" matches
// "csv".
func ExtMatch(p string, exts ...string) bool {
	ext := DataExt(p)
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

// FullExt is the extension used for cache keys, including any compression
// suffix: "train.csv.gz" -> ".csv.gz".
func FullExt(p string) string {
	ext := DataExt(p)
	if ext == "" {
		return ""
	}
	if c := Compression(p); c != "" {
		return "." + ext + "." + c
	}
	return "." + ext
}

func stripURL(p string) string {
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Path
	}
	return p
}
