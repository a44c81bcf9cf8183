package fabrik

import (
	"fmt"
	"sort"
	"strconv"
)

// Metadata is the factory-metadata collaborator the build engine drives: it
// owns the base declaration sets, the per-factory sequence counter and the
// actual object construction.
type Metadata interface {
	// FactoryName names the factory in logs and error messages.
	FactoryName() string

	// NextSequence draws the next sequence number for this factory.
	NextSequence() int

	// PreDeclarations returns the base set resolved before construction.
	PreDeclarations() *DeclarationSet

	// PostDeclarations returns the base set run after construction.
	PostDeclarations() *DeclarationSet

	// PrepareArguments converts the resolved attribute map into the
	// positional and keyword arguments handed to Instantiate.
	PrepareArguments(attrs map[string]any) (args []any, kwargs map[string]any)

	// Instantiate constructs the target object.
	Instantiate(step *BuildStep, args []any, kwargs map[string]any) (any, error)

	// UsePostGenerationResults consumes the collected post-generation
	// results, one entry per post-declaration name.
	UsePostGenerationResults(instance any, step *BuildStep, results map[string]any) error
}

// Factory is anything that can hand over build metadata. SubFactory and
// RelatedFactory accept either a Factory or a registry path.
type Factory interface {
	Meta() Metadata
}

// Build constructs one instance of f with the given call-time overrides.
func Build(f Factory, overrides map[string]any, opts ...BuilderOption) (any, error) {
	return NewStepBuilder(f.Meta(), overrides, StrategyBuild, opts...).Build(nil, nil)
}

// BuildBatch constructs n instances of f, each from a fresh build call.
func BuildBatch(f Factory, n int, overrides map[string]any, opts ...BuilderOption) ([]any, error) {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		instance, err := Build(f, overrides, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, instance)
	}
	return out, nil
}

// Definition is a concrete Metadata for factories whose instances are plain
// values: by default it builds a map of the resolved attributes, and every
// collaborator hook can be swapped through options. It is also its own
// Factory.
type Definition struct {
	name        string
	pre         *DeclarationSet
	post        *DeclarationSet
	sequence    int
	prepare     func(attrs map[string]any) ([]any, map[string]any)
	instantiate func(step *BuildStep, args []any, kwargs map[string]any) (any, error)
	finalize    func(instance any, step *BuildStep, results map[string]any) error
}

// DefinitionOption configures a Definition.
type DefinitionOption func(*Definition, map[string]Parameter)

// WithParameter installs a parameter (or, via WrapParameter, a plain value)
// applied to the field map at definition time.
func WithParameter(name string, value any) DefinitionOption {
	return func(d *Definition, params map[string]Parameter) {
		params[name] = WrapParameter(value)
	}
}

// WithTrait installs a named trait.
func WithTrait(name string, trait *Trait) DefinitionOption {
	return func(d *Definition, params map[string]Parameter) {
		params[name] = trait
	}
}

// WithPrepare replaces the argument preparation hook.
func WithPrepare(fn func(attrs map[string]any) ([]any, map[string]any)) DefinitionOption {
	return func(d *Definition, _ map[string]Parameter) {
		d.prepare = fn
	}
}

// WithInstantiate replaces the instantiation hook.
func WithInstantiate(fn func(step *BuildStep, args []any, kwargs map[string]any) (any, error)) DefinitionOption {
	return func(d *Definition, _ map[string]Parameter) {
		d.instantiate = fn
	}
}

// WithFinalizer replaces the post-generation results hook.
func WithFinalizer(fn func(instance any, step *BuildStep, results map[string]any) error) DefinitionOption {
	return func(d *Definition, _ map[string]Parameter) {
		d.finalize = fn
	}
}

// NewDefinition builds a Definition from a mixed declarations map: plain
// literals, lazy declarations, deep-context keys and post-generation hooks.
// Parameters and traits are applied first; the result is then routed into
// the base pre/post sets with the same classification used at build time.
func NewDefinition(name string, declarations map[string]any, opts ...DefinitionOption) (*Definition, error) {
	d := &Definition{name: name}
	params := make(map[string]Parameter)
	for _, opt := range opts {
		opt(d, params)
	}

	fields, err := ApplyParameters(declarations, params)
	if err != nil {
		return nil, err
	}
	pre, post, err := parseDeclarations(fields, nil, nil)
	if err != nil {
		return nil, err
	}
	d.pre = pre
	d.post = post

	if d.prepare == nil {
		d.prepare = func(attrs map[string]any) ([]any, map[string]any) {
			return nil, attrs
		}
	}
	if d.instantiate == nil {
		d.instantiate = func(step *BuildStep, args []any, kwargs map[string]any) (any, error) {
			return copyAnyMap(kwargs), nil
		}
	}
	return d, nil
}

// MustNewDefinition is NewDefinition, panicking on error. Intended for
// package-level factory variables.
func MustNewDefinition(name string, declarations map[string]any, opts ...DefinitionOption) *Definition {
	d, err := NewDefinition(name, declarations, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Definition) Meta() Metadata {
	return d
}

func (d *Definition) FactoryName() string {
	return d.name
}

// NextSequence draws the next sequence number, starting at 0. Like every
// counter in this package it is not internally synchronized.
func (d *Definition) NextSequence() int {
	n := d.sequence
	d.sequence++
	return n
}

// ResetSequence rewinds the factory's counter so the next build draws n.
func (d *Definition) ResetSequence(n int) {
	d.sequence = n
}

func (d *Definition) PreDeclarations() *DeclarationSet {
	return d.pre
}

func (d *Definition) PostDeclarations() *DeclarationSet {
	return d.post
}

func (d *Definition) PrepareArguments(attrs map[string]any) ([]any, map[string]any) {
	return d.prepare(attrs)
}

func (d *Definition) Instantiate(step *BuildStep, args []any, kwargs map[string]any) (any, error) {
	return d.instantiate(step, args, kwargs)
}

func (d *Definition) UsePostGenerationResults(instance any, step *BuildStep, results map[string]any) error {
	if d.finalize == nil {
		return nil
	}
	return d.finalize(instance, step, results)
}

// The generic collection backends targeted by NewDict and NewList.
var (
	dictFactory = MustNewDefinition("fabrik.DictFactory", nil)
	listFactory = MustNewDefinition("fabrik.ListFactory", nil,
		WithInstantiate(listInstantiate))
)

// DictFactory returns the collection backend producing map[string]any
// instances from their resolved fields.
func DictFactory() Factory {
	return dictFactory
}

// ListFactory returns the collection backend producing []any instances,
// ordering fields by their stringified integer names.
func ListFactory() Factory {
	return listFactory
}

func listInstantiate(step *BuildStep, args []any, kwargs map[string]any) (any, error) {
	indices := make([]int, 0, len(kwargs))
	for k := range kwargs {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("list factory field %q is not an integer index", k)
		}
		indices = append(indices, i)
	}
	sort.Ints(indices)
	out := make([]any, 0, len(indices))
	for _, i := range indices {
		out = append(out, kwargs[strconv.Itoa(i)])
	}
	return out, nil
}
