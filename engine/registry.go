package engine

import (
	"sort"
	"sync"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Factory builds an engine from its configuration parameters. Factories
// validate every parameter eagerly and fail with a ConfigurationError.
type Factory func(p *Params) (Engine, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)

	// buildTags names the tag that compiles each bundled engine out.
	buildTags = map[string]string{
		"search":  "automl_no_search",
		"genetic": "automl_no_genetic",
	}
)

// Register makes an engine factory available under name. It is meant to be
// called from init and panics on a duplicate name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := factories[name]; dup {
		panic("engine: Register called twice for " + name)
	}
	factories[name] = f
}

// Available reports whether an engine is compiled into this binary.
func Available(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Names returns the registered engine names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the named engine. A missing factory means the engine was
// compiled out and yields a BackendUnavailableError. After the factory
// returns, any parameter it did not read is reported as unknown.
func New(name string, p *Params) (Engine, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewBackendUnavailableError(name, buildTags[name])
	}
	if p == nil {
		p = NewParams(nil)
	}
	e, err := f(p)
	if err != nil {
		return nil, err
	}
	if err := p.CheckUnknown(); err != nil {
		return nil, err
	}
	return e, nil
}
