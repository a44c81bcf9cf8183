package fabrik

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// postDeclarationCounter orders post-generation declarations. Disjoint from
// declarationCounter: the two kinds are never sorted against each other.
var postDeclarationCounter atomic.Uint64

// PostDeclaration is a hook run once the primary object exists. Post
// declarations are never pulled lazily; the builder pushes them in ascending
// creation-index order after instantiation.
type PostDeclaration interface {
	indexed

	// Extract pops this field's explicitly supplied value and deep-context
	// extras out of overrides, producing the snapshot handed to Call.
	Extract(name string, overrides map[string]any) *ExtractionContext

	// Call runs the hook against the built instance.
	Call(instance any, step *BuildStep, ctx *ExtractionContext) (any, error)
}

// ExtractionContext is the immutable snapshot handed to one post-generation
// invocation: the explicitly supplied value (if any), whether one was
// supplied, the deep-context extras and the field it was extracted for.
type ExtractionContext struct {
	Value      any
	DidExtract bool
	Extra      map[string]any
	ForField   string
}

func (c *ExtractionContext) String() string {
	return fmt.Sprintf("ExtractionContext(%v, %v, %v)", c.Value, c.DidExtract, c.Extra)
}

type basePostDeclaration struct {
	index uint64
}

func newBasePostDeclaration() basePostDeclaration {
	return basePostDeclaration{index: postDeclarationCounter.Add(1)}
}

func (d basePostDeclaration) CreationIndex() uint64 {
	return d.index
}

func (d basePostDeclaration) Extract(name string, overrides map[string]any) *ExtractionContext {
	ctx := &ExtractionContext{ForField: name, Extra: make(map[string]any)}
	if v, ok := overrides[name]; ok {
		ctx.Value = v
		ctx.DidExtract = true
		delete(overrides, name)
	}
	prefix := name + Splitter
	for k, v := range overrides {
		if strings.HasPrefix(k, prefix) {
			ctx.Extra[strings.TrimPrefix(k, prefix)] = v
			delete(overrides, k)
		}
	}
	return ctx
}

// PostGeneration calls a user function once the object has been generated.
type PostGeneration struct {
	basePostDeclaration
	fn func(instance any, step *BuildStep, value any, extra map[string]any) (any, error)
}

// NewPostGeneration creates a function hook. value is the explicitly
// supplied override for the field, nil when none was supplied.
func NewPostGeneration(fn func(instance any, step *BuildStep, value any, extra map[string]any) (any, error)) *PostGeneration {
	return &PostGeneration{basePostDeclaration: newBasePostDeclaration(), fn: fn}
}

func (d *PostGeneration) Call(instance any, step *BuildStep, ctx *ExtractionContext) (any, error) {
	return d.fn(instance, step, ctx.Value, ctx.Extra)
}

// RelatedFactory builds another factory once the object has been generated.
// An explicitly supplied value suppresses generation and passes through
// unchanged. When relatedName is non-empty the instance itself is injected
// into the nested overrides under that field name.
type RelatedFactory struct {
	basePostDeclaration
	ref         *factoryRef
	relatedName string
	defaults    map[string]any
}

// NewRelatedFactory creates a related-object hook. target is a Factory
// handle or a qualified registry path.
func NewRelatedFactory(target any, relatedName string, defaults map[string]any) *RelatedFactory {
	return &RelatedFactory{
		basePostDeclaration: newBasePostDeclaration(),
		ref:                 newFactoryRef(target),
		relatedName:         relatedName,
		defaults:            copyAnyMap(defaults),
	}
}

func (d *RelatedFactory) Call(instance any, step *BuildStep, ctx *ExtractionContext) (any, error) {
	if ctx.DidExtract {
		return ctx.Value, nil
	}
	factory, err := d.ref.get()
	if err != nil {
		return nil, err
	}
	params := mergeMaps(d.defaults, ctx.Extra)
	if d.relatedName != "" {
		params[d.relatedName] = instance
	}
	return step.Recurse(factory, params, nil)
}

// PostGenerationMethodCall invokes a named method on the generated instance.
//
// With no supplied value the statically configured arguments are used. If at
// most one static argument was configured, a supplied value becomes the
// single argument; with more than one, the supplied value is unpacked as the
// full positional list. Keyword extras override the static keyword map and
// are passed through a trailing map[string]any parameter.
type PostGenerationMethodCall struct {
	basePostDeclaration
	methodName string
	args       []any
	kwargs     map[string]any
}

// NewPostGenerationMethodCall creates a method-call hook.
func NewPostGenerationMethodCall(methodName string, args []any, kwargs map[string]any) *PostGenerationMethodCall {
	return &PostGenerationMethodCall{
		basePostDeclaration: newBasePostDeclaration(),
		methodName:          methodName,
		args:                append([]any(nil), args...),
		kwargs:              copyAnyMap(kwargs),
	}
}

func (d *PostGenerationMethodCall) Call(instance any, step *BuildStep, ctx *ExtractionContext) (any, error) {
	var passed []any
	switch {
	case !ctx.DidExtract:
		passed = d.args
	case len(d.args) <= 1:
		passed = []any{ctx.Value}
	default:
		unpacked, err := asSlice(ctx.Value)
		if err != nil {
			return nil, fmt.Errorf("method call %q: %w", d.methodName, err)
		}
		passed = unpacked
	}

	kwargs := d.kwargs
	if len(ctx.Extra) > 0 {
		kwargs = mergeMaps(d.kwargs, ctx.Extra)
	}
	return callMethod(instance, d.methodName, passed, kwargs)
}
