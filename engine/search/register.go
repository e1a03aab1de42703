//go:build !automl_no_search

package search

import "github.com/YuminosukeSato/automlcli/engine"

func init() {
	engine.Register(Name, New)
}
