package fabrik

import (
	"fmt"
	"sort"
)

// Parameter contributes field overrides to a factory definition before any
// build runs. Parameters may report which other parameters they alter so the
// application pass can order them consistently.
type Parameter interface {
	// AsDeclarations computes the overrides for this parameter.
	// fieldName is the field the parameter is installed at; declarations is
	// the definition's current field map.
	AsDeclarations(fieldName string, declarations map[string]any) map[string]any

	// RevDeps returns, out of the given parameter names, those this
	// parameter modifies.
	RevDeps(parameters []string) []string
}

// SimpleParameter installs a single value at its own field name.
type SimpleParameter struct {
	Value any
}

func (p SimpleParameter) AsDeclarations(fieldName string, declarations map[string]any) map[string]any {
	return map[string]any{fieldName: p.Value}
}

func (p SimpleParameter) RevDeps(parameters []string) []string {
	return nil
}

// WrapParameter lifts a plain value into a SimpleParameter, leaving real
// Parameters untouched.
func WrapParameter(v any) Parameter {
	if p, ok := v.(Parameter); ok {
		return p
	}
	return SimpleParameter{Value: v}
}

// Trait is a boolean-gated bundle of field overrides: each overridden field
// becomes a Maybe switching on the trait's own field name, falling back to
// whatever was previously declared for that field.
type Trait struct {
	overrides map[string]any
}

// NewTrait creates a trait from its field overrides.
func NewTrait(overrides map[string]any) *Trait {
	return &Trait{overrides: copyAnyMap(overrides)}
}

func (t *Trait) AsDeclarations(fieldName string, declarations map[string]any) map[string]any {
	out := make(map[string]any, len(t.overrides))
	// Walk in sorted order: each Maybe draws a fresh creation index and the
	// resulting field order must not depend on map iteration.
	for _, field := range sortedKeys(t.overrides) {
		out[field] = NewMaybe(fieldName, t.overrides[field], declarations[field])
	}
	return out
}

func (t *Trait) RevDeps(parameters []string) []string {
	var deps []string
	for _, p := range parameters {
		if _, ok := t.overrides[p]; ok {
			deps = append(deps, p)
		}
	}
	return deps
}

// ApplyParameters folds a parameter map into a field map at definition time.
// A parameter is applied after every parameter it reports in RevDeps, so its
// overrides capture the already-rewritten declarations as fallbacks; ties
// break lexicographically. A dependency cycle is an InvalidDeclarationError.
func ApplyParameters(fields map[string]any, parameters map[string]Parameter) (map[string]any, error) {
	out := copyAnyMap(fields)
	if len(parameters) == 0 {
		return out, nil
	}

	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	permanent := make(map[string]bool, len(names))
	temporary := make(map[string]bool, len(names))
	order := make([]string, 0, len(names))

	var visit func(name string) error
	visit = func(name string) error {
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			return &InvalidDeclarationError{
				Reason: fmt.Sprintf("parameter dependency cycle involving %q", name),
			}
		}
		temporary[name] = true
		for _, dep := range parameters[name].RevDeps(names) {
			if dep == name {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		temporary[name] = false
		permanent[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	for _, name := range order {
		decls := parameters[name].AsDeclarations(name, out)
		for _, k := range sortedKeys(decls) {
			out[k] = decls[k]
		}
	}
	return out, nil
}
