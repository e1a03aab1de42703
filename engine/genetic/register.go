//go:build !automl_no_genetic

package genetic

import "github.com/YuminosukeSato/automlcli/engine"

func init() {
	engine.Register(Name, New)
}
