package fabrik

import (
	"strconv"
	"strings"
)

// factoryRef holds a factory argument: either a direct handle or a qualified
// dotted path resolved through the registry exactly once and cached.
type factoryRef struct {
	factory Factory
	path    string
	err     error
}

func newFactoryRef(target any) *factoryRef {
	switch t := target.(type) {
	case Factory:
		return &factoryRef{factory: t}
	case string:
		if !strings.Contains(t, ".") {
			return &factoryRef{err: &FactoryRefError{
				Ref:    t,
				Reason: "a factory argument must be a Factory or a fully qualified registry path",
			}}
		}
		return &factoryRef{path: t}
	default:
		return &factoryRef{err: &FactoryRefError{
			Ref:    target,
			Reason: "a factory argument must be a Factory or a fully qualified registry path",
		}}
	}
}

func (ref *factoryRef) get() (Factory, error) {
	if ref.err != nil {
		return nil, ref.err
	}
	if ref.factory == nil {
		f, err := Lookup(ref.path)
		if err != nil {
			return nil, err
		}
		ref.factory = f
	}
	return ref.factory, nil
}

// SubFactory declares a field built by another factory. Construction-time
// defaults merge with call-time deep context and become the nested build's
// overrides; the nested step links back to the current one.
type SubFactory struct {
	parameteredAttribute
	ref           *factoryRef
	forceSequence bool
}

// SubFactoryOption configures a SubFactory.
type SubFactoryOption func(*SubFactory)

// WithForcedSequence makes the nested build reuse the parent's sequence
// number instead of drawing its own.
func WithForcedSequence() SubFactoryOption {
	return func(d *SubFactory) {
		d.forceSequence = true
	}
}

// NewSubFactory creates a SubFactory. target is a Factory handle or a
// qualified registry path such as "myapp.UserFactory".
func NewSubFactory(target any, defaults map[string]any, opts ...SubFactoryOption) *SubFactory {
	d := &SubFactory{ref: newFactoryRef(target)}
	d.baseDeclaration = newBaseDeclaration()
	d.defaults = copyAnyMap(defaults)
	d.generate = d.generateNested
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *SubFactory) generateNested(step *BuildStep, params map[string]any) (any, error) {
	factory, err := d.ref.get()
	if err != nil {
		return nil, err
	}
	var force *int
	if d.forceSequence {
		seq := step.Sequence()
		force = &seq
	}
	return step.Recurse(factory, params, force)
}

// NewDict declares a field built as a map of resolved sub-declarations. The
// element builds share the parent's sequence number.
func NewDict(params map[string]any) *SubFactory {
	return NewSubFactory(DictFactory(), params, WithForcedSequence())
}

// NewList declares a field built as a slice of resolved sub-declarations,
// addressed internally by stringified indices. The element builds share the
// parent's sequence number.
func NewList(items []any) *SubFactory {
	params := make(map[string]any, len(items))
	for i, v := range items {
		params[strconv.Itoa(i)] = v
	}
	return NewSubFactory(ListFactory(), params, WithForcedSequence())
}
