package fabrik

import (
	"fmt"
	"strings"
)

// factories maps qualified dotted paths to registered factories. Like the
// declaration counters this is process-wide state with no internal locking;
// register factories before building from multiple goroutines.
var factories map[string]Factory

func init() {
	ClearRegistry()
}

// Register makes f resolvable through its qualified dotted path, for use by
// SubFactory and RelatedFactory textual references. Registering the same
// path twice is an error.
func Register(path string, f Factory) error {
	if !strings.Contains(path, ".") {
		return &FactoryRefError{
			Ref:    path,
			Reason: "registry paths must be qualified (contain a dot)",
		}
	}
	if _, exists := factories[path]; exists {
		return fmt.Errorf("factory already registered at %q", path)
	}
	factories[path] = f
	return nil
}

// MustRegister is Register, panicking on error. Intended for package-level
// wiring.
func MustRegister(path string, f Factory) {
	if err := Register(path, f); err != nil {
		panic(err)
	}
}

// Lookup resolves a qualified path to its registered factory.
func Lookup(path string) (Factory, error) {
	f, ok := factories[path]
	if !ok {
		return nil, &FactoryRefError{Path: path, Reason: "no factory registered"}
	}
	return f, nil
}

// ClearRegistry drops every registration except the built-in collection
// backends. Intended for tests.
func ClearRegistry() {
	factories = map[string]Factory{
		"fabrik.DictFactory": dictFactory,
		"fabrik.ListFactory": listFactory,
	}
}
