// Package config loads the YAML configuration document, applies dotlist
// overrides and turns the result into a model Spec.
//
// A configuration looks like:
//
//	automlcli:
//	  random_seed: 13370
//	  numpy_seed: 1337
//	  train_file: data/train.csv
//	  validation_file: data/valid.csv
//	  model:
//	    type: search
//	    target_column: target
//	    index_column: id
//	    ignored_columns: [name]
//	    time_budget: 60
//
// The automlcli namespace is optional.
package config

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/automlcli/automl"
	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/fileio"
)

// Namespace is the optional top-level key wrapping the configuration.
const Namespace = "automlcli"

// LoadYAML reads the YAML document at path (local or remote) and applies
// overrides of the form "a.b.c=value" in order. Values are parsed as YAML,
// so "x=[a, b]" sets a list and "x=3" an int. Keys are case-insensitive and
// returned lowercased.
func LoadYAML(ctx context.Context, path string, overrides []string) (map[string]any, error) {
	r, err := fileio.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return Parse(data, overrides)
}

// Parse is LoadYAML on an in-memory document.
func Parse(data []byte, overrides []string) (map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigurationErrorf("", "invalid YAML: %v", err)
	}
	root := map[string]any{}
	switch d := doc.(type) {
	case nil:
	case map[string]any:
		root = d
	default:
		return nil, errors.NewConfigurationErrorf("", "configuration must be a mapping, got %T", doc)
	}

	v := viper.New()
	if err := v.MergeConfigMap(root); err != nil {
		return nil, errors.Wrap(err, "merge configuration")
	}
	for _, o := range overrides {
		key, value, err := ParseOverride(o)
		if err != nil {
			return nil, err
		}
		v.Set(key, value)
	}
	return v.AllSettings(), nil
}

// ParseOverride splits "a.b=value" and decodes value as a YAML scalar or
// flow collection.
func ParseOverride(s string) (string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, errors.NewConfigurationErrorf(s, "override must have the form key=value")
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return "", nil, errors.NewConfigurationErrorf(key, "invalid override value %q: %v", raw, err)
	}
	if value == nil {
		value = ""
	}
	return strings.ToLower(key), value, nil
}

// Dump writes cfg as YAML.
func Dump(w io.Writer, cfg map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "encode configuration")
	}
	return errors.Wrap(enc.Close(), "encode configuration")
}

// Builder is a resolved configuration ready to build a Model.
type Builder struct {
	Seeds          engine.Seeds
	TrainFile      string
	ValidationFile string
	TestFile       string
	Model          automl.Spec
	// Config is the configuration after unwrapping the namespace.
	Config map[string]any
}

// modelKeys are the model block keys that are not engine parameters.
var modelKeys = map[string]bool{
	"type":            true,
	"target_column":   true,
	"index_column":    true,
	"ignored_columns": true,
}

// Build reads the seeds, data paths and model block of cfg.
func Build(cfg map[string]any) (*Builder, error) {
	if ns, ok := cfg[Namespace]; ok {
		m, isMap := ns.(map[string]any)
		if !isMap {
			return nil, errors.NewConfigurationErrorf(Namespace, "must be a mapping, got %T", ns)
		}
		cfg = m
	}
	b := &Builder{Config: cfg, Seeds: engine.DefaultSeeds()}

	var err error
	if b.Seeds.Random, err = seed(cfg, "random_seed", engine.DefaultRandomSeed); err != nil {
		return nil, err
	}
	if b.Seeds.Numeric, err = seed(cfg, "numpy_seed", engine.DefaultNumericSeed); err != nil {
		return nil, err
	}
	for key, dst := range map[string]*string{
		"train_file":      &b.TrainFile,
		"validation_file": &b.ValidationFile,
		"test_file":       &b.TestFile,
	} {
		if *dst, err = str(cfg, key, key); err != nil {
			return nil, err
		}
	}

	raw, ok := cfg["model"]
	if !ok || raw == nil {
		return nil, errors.NewConfigurationError("model", "model block is required")
	}
	block, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.NewConfigurationErrorf("model", "must be a mapping, got %T", raw)
	}
	spec := automl.Spec{Seeds: b.Seeds, Params: map[string]any{}}
	if spec.Type, err = str(block, "type", "model.type"); err != nil {
		return nil, err
	}
	if spec.TargetColumn, err = str(block, "target_column", "model.target_column"); err != nil {
		return nil, err
	}
	if spec.IndexColumn, err = str(block, "index_column", "model.index_column"); err != nil {
		return nil, err
	}
	if v, ok := block["ignored_columns"]; ok && v != nil {
		if s, isString := v.(string); isString {
			spec.IgnoredColumns = []string{s}
		} else if spec.IgnoredColumns, err = cast.ToStringSliceE(v); err != nil {
			return nil, errors.NewConfigurationErrorf("model.ignored_columns", "expected a list of column names, got %T", v)
		}
	}
	for k, v := range block {
		if !modelKeys[k] {
			spec.Params[k] = v
		}
	}
	b.Model = spec
	return b, nil
}

// Build constructs the untrained Model described by the configuration.
func (b *Builder) Build() (*automl.Model, error) {
	return automl.Build(b.Model)
}

func str(m map[string]any, key, errKey string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return "", errors.NewConfigurationErrorf(errKey, "expected a string, got %T", v)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", errors.NewConfigurationErrorf(errKey, "expected a string, got %T", v)
	}
	return s, nil
}

func seed(m map[string]any, key string, def uint64) (uint64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	if _, isBool := v.(bool); isBool {
		return 0, errors.NewConfigurationErrorf(key, "expected a non-negative integer, got %v", v)
	}
	if n, err := cast.ToInt64E(v); err != nil || n < 0 {
		return 0, errors.NewConfigurationErrorf(key, "expected a non-negative integer, got %v", v)
	}
	return cast.ToUint64(v), nil
}
