package automl

import (
	"slices"
	"sort"
	"sync"

	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/engine/genetic"
	"github.com/YuminosukeSato/automlcli/engine/search"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Spec is the model block of a configuration, with the seeds threaded in.
type Spec struct {
	Type           string
	TargetColumn   string
	IndexColumn    string
	IgnoredColumns []string
	Params         map[string]any
	Seeds          engine.Seeds
}

// Constructor builds an untrained Model from a validated Spec.
type Constructor func(spec Spec) (*Model, error)

var (
	registryMu   sync.RWMutex
	constructors = make(map[string]Constructor)
)

func init() {
	Register(search.Name, EngineConstructor(search.Name))
	Register(genetic.Name, EngineConstructor(genetic.Name))
}

// Register adds a model type. It panics on a duplicate name.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := constructors[name]; dup {
		panic("automl: Register called twice for " + name)
	}
	constructors[name] = c
}

// Types returns the registered model types, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EngineConstructor returns a Constructor backed by the named engine. The
// engine validates spec.Params; an engine compiled out of the binary yields
// a BackendUnavailableError.
func EngineConstructor(name string) Constructor {
	return func(spec Spec) (*Model, error) {
		e, err := engine.New(name, engine.NewParams(spec.Params))
		if err != nil {
			return nil, err
		}
		return &Model{
			Type:           spec.Type,
			TargetColumn:   spec.TargetColumn,
			IndexColumn:    spec.IndexColumn,
			IgnoredColumns: spec.IgnoredColumns,
			Params:         spec.Params,
			Seeds:          spec.Seeds,
			Engine:         e,
		}, nil
	}
}

// Build validates the column contract and constructs the model type named
// by spec.Type. Nothing is loaded.
func Build(spec Spec) (*Model, error) {
	if spec.Type == "" {
		return nil, errors.NewConfigurationError("model.type", "type is required")
	}
	registryMu.RLock()
	ctor, ok := constructors[spec.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewUnknownNameError("model.type", "model type", spec.Type, Types())
	}
	if spec.TargetColumn == "" {
		return nil, errors.NewConfigurationError("model.target_column", "target_column is required")
	}
	if slices.Contains(spec.IgnoredColumns, spec.TargetColumn) {
		return nil, errors.NewConfigurationErrorf("model.ignored_columns",
			"target column %q must not be ignored", spec.TargetColumn)
	}
	if spec.IndexColumn != "" && spec.IndexColumn == spec.TargetColumn {
		return nil, errors.NewConfigurationErrorf("model.index_column",
			"index column %q is also the target column", spec.IndexColumn)
	}
	return ctor(spec)
}
