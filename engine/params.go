package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Params wraps the backend parameters of a model block. Values come from
// YAML or dotlist overrides, so numbers may arrive as int, float64 or
// string; the accessors coerce them and record which keys were read.
type Params struct {
	values map[string]any
	// keyPrefix is prepended to keys in error messages ("model.").
	keyPrefix string
	read      map[string]struct{}
}

// NewParams wraps values. Keys are matched case-insensitively.
func NewParams(values map[string]any) *Params {
	p := &Params{values: make(map[string]any, len(values)), keyPrefix: "model.", read: make(map[string]struct{})}
	for k, v := range values {
		p.values[strings.ToLower(k)] = v
	}
	return p
}

// Map returns a copy of the raw values.
func (p *Params) Map() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Has reports whether key is set to a non-nil value.
func (p *Params) Has(key string) bool {
	p.read[key] = struct{}{}
	v, ok := p.values[key]
	return ok && v != nil
}

func (p *Params) lookup(key string) (any, bool) {
	p.read[key] = struct{}{}
	v, ok := p.values[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (p *Params) invalid(key string, v any, want string) error {
	return errors.NewConfigurationErrorf(p.keyPrefix+key, "expected %s, got %v (%T)", want, v, v)
}

// Float returns key as a float64, or def when unset.
func (p *Params) Float(key string, def float64) (float64, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	if _, isBool := v.(bool); isBool {
		return 0, p.invalid(key, v, "a number")
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, p.invalid(key, v, "a number")
	}
	return f, nil
}

// Int returns key as an int, or def when unset. Floats must be integral.
func (p *Params) Int(key string, def int) (int, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case bool:
		return 0, p.invalid(key, v, "an integer")
	case float64:
		if x != math.Trunc(x) {
			return 0, p.invalid(key, v, "an integer")
		}
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, p.invalid(key, v, "an integer")
	}
	return n, nil
}

// String returns key as a string, or def when unset.
func (p *Params) String(key, def string) (string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return "", p.invalid(key, v, "a string")
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", p.invalid(key, v, "a string")
	}
	return s, nil
}

// Bool returns key as a bool, or def when unset.
func (p *Params) Bool(key string, def bool) (bool, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, p.invalid(key, v, "a boolean")
	}
	return b, nil
}

// Strings returns key as a list of strings, or def when unset. A single
// string is accepted as a one-element list.
func (p *Params) Strings(key string, def []string) ([]string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	if s, isString := v.(string); isString {
		return []string{s}, nil
	}
	list, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, p.invalid(key, v, "a list of strings")
	}
	return list, nil
}

// OneOf validates that value is in allowed.
func (p *Params) OneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.NewUnknownNameError(p.keyPrefix+key, key, value, allowed)
}

// Range validates lo <= value <= hi.
func (p *Params) Range(key string, value, lo, hi float64) error {
	if value < lo || value > hi || math.IsNaN(value) {
		return errors.NewConfigurationError(p.keyPrefix+key, fmt.Sprintf("must be in [%g, %g], got %g", lo, hi, value))
	}
	return nil
}

// CheckUnknown reports the first key (in sorted order) that no accessor
// has read. The suggestion is the closest key that was read.
func (p *Params) CheckUnknown() error {
	var unknown []string
	for k := range p.values {
		if _, ok := p.read[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	known := make([]string, 0, len(p.read))
	for k := range p.read {
		known = append(known, k)
	}
	sort.Strings(known)
	return errors.WithStack(&errors.ConfigurationError{
		Key:        p.keyPrefix + unknown[0],
		Reason:     fmt.Sprintf("unknown parameter %q", unknown[0]),
		Suggestion: errors.ClosestName(unknown[0], known),
	})
}
