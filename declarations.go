package fabrik

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// declarationCounter orders ordinary declarations by construction time. It
// is process-wide state, reset only at process start; multi-goroutine
// declaration construction needs no extra ordering guarantees beyond the
// atomic increment, but builds themselves require external synchronization.
var declarationCounter atomic.Uint64

func nextDeclarationIndex() uint64 {
	return declarationCounter.Add(1)
}

// Declaration marks a field as needing lazy evaluation. Declarations may
// refer to fields declared by other Declarations in the same factory.
type Declaration interface {
	indexed

	// Evaluate computes the declaration's value. r holds the currently
	// computed attributes, step is the build step under construction and
	// extra carries call-time deep context addressed to this field.
	Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error)
}

type baseDeclaration struct {
	index uint64
}

func newBaseDeclaration() baseDeclaration {
	return baseDeclaration{index: nextDeclarationIndex()}
}

func (d baseDeclaration) CreationIndex() uint64 {
	return d.index
}

// LazyFunction computes a value by calling a zero-argument producer.
type LazyFunction struct {
	baseDeclaration
	fn func() (any, error)
}

// NewLazyFunction creates a LazyFunction declaration.
func NewLazyFunction(fn func() (any, error)) *LazyFunction {
	return &LazyFunction{baseDeclaration: newBaseDeclaration(), fn: fn}
}

func (d *LazyFunction) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	return d.fn()
}

// LazyAttribute computes a value from the Resolver, enabling cross-field
// references:
//
//	email := fabrik.NewLazyAttribute(func(r *fabrik.Resolver) (any, error) {
//	    name, err := r.Attr("name")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return name.(string) + "@example.com", nil
//	})
type LazyAttribute struct {
	baseDeclaration
	fn func(r *Resolver) (any, error)
}

// NewLazyAttribute creates a LazyAttribute declaration.
func NewLazyAttribute(fn func(r *Resolver) (any, error)) *LazyAttribute {
	return &LazyAttribute{baseDeclaration: newBaseDeclaration(), fn: fn}
}

func (d *LazyAttribute) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	return d.fn(r)
}

// SelfAttribute copies another already-resolvable attribute. Leading dots
// count hops toward the build root: "..country" reads "country" from the
// parent step. The remaining path may be dotted, digging into the resolved
// value through map keys and exported struct fields.
type SelfAttribute struct {
	baseDeclaration
	depth      int
	path       string
	def        any
	hasDefault bool
}

// NewSelfAttribute creates a SelfAttribute without a default; a missing
// attribute is an error.
func NewSelfAttribute(path string) *SelfAttribute {
	return newSelfAttribute(path, nil, false)
}

// NewSelfAttributeWithDefault creates a SelfAttribute that yields def when
// the attribute path cannot be resolved.
func NewSelfAttributeWithDefault(path string, def any) *SelfAttribute {
	return newSelfAttribute(path, def, true)
}

func newSelfAttribute(path string, def any, hasDefault bool) *SelfAttribute {
	trimmed := strings.TrimLeft(path, ".")
	return &SelfAttribute{
		baseDeclaration: newBaseDeclaration(),
		depth:           len(path) - len(trimmed),
		path:            trimmed,
		def:             def,
		hasDefault:      hasDefault,
	}
}

func (d *SelfAttribute) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	target := r
	if d.depth > 1 {
		chain := step.Chain()
		if d.depth-1 >= len(chain) {
			return nil, fmt.Errorf("self attribute %q reaches %d levels up but the chain has %d steps", d.path, d.depth-1, len(chain))
		}
		target = chain[d.depth-1]
	}
	return deepAttr(target, d.path, d.def, d.hasDefault)
}

func (d *SelfAttribute) String() string {
	return fmt.Sprintf("<SelfAttribute(%q, depth=%d)>", d.path, d.depth)
}

// deepAttr resolves the first path segment on a Resolver and digs into the
// result for the rest.
func deepAttr(r *Resolver, path string, def any, hasDefault bool) (any, error) {
	first := path
	rest := ""
	if i := strings.Index(path, "."); i >= 0 {
		first, rest = path[:i], path[i+1:]
	}
	v, err := r.Attr(first)
	if err != nil {
		var unknown *UnknownAttributeError
		if hasDefault && errors.As(err, &unknown) {
			return def, nil
		}
		return nil, err
	}
	for rest != "" {
		seg := rest
		if i := strings.Index(rest, "."); i >= 0 {
			seg, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}
		next, ok := attrOf(v, seg)
		if !ok {
			if hasDefault {
				return def, nil
			}
			return nil, fmt.Errorf("attribute %q not found on value of type %T", seg, v)
		}
		v = next
	}
	return v, nil
}

// Iterator draws the next element from a restartable sequence of values,
// cycling forever by default. The underlying sequence is materialized on
// first evaluation.
type Iterator struct {
	baseDeclaration
	source func() []any
	cycle  bool
	getter func(any) (any, error)
	it     *resetableIterator
}

// IteratorOption configures an Iterator.
type IteratorOption func(*Iterator)

// IteratorNoCycle makes the iterator finite: exhausting it fails the build.
func IteratorNoCycle() IteratorOption {
	return func(d *Iterator) {
		d.cycle = false
	}
}

// IteratorGetter transforms each drawn element.
func IteratorGetter(fn func(any) (any, error)) IteratorOption {
	return func(d *Iterator) {
		d.getter = fn
	}
}

// NewIterator creates an Iterator over a fixed value list.
func NewIterator(values []any, opts ...IteratorOption) *Iterator {
	return NewLazyIterator(func() []any { return values }, opts...)
}

// NewLazyIterator creates an Iterator whose values are produced on first
// evaluation, deferring expensive sources until a build actually needs them.
func NewLazyIterator(source func() []any, opts ...IteratorOption) *Iterator {
	d := &Iterator{baseDeclaration: newBaseDeclaration(), source: source, cycle: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Iterator) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	if d.it == nil {
		d.it = newResetableIterator(d.source(), d.cycle)
	}
	v, ok := d.it.next()
	if !ok {
		return nil, fmt.Errorf("iterator exhausted after %d values", len(d.it.values))
	}
	if d.getter != nil {
		return d.getter(v)
	}
	return v, nil
}

// Reset restarts the iterator from its first value.
func (d *Iterator) Reset() {
	if d.it != nil {
		d.it.reset()
	}
}

// Sequence maps the build's sequence number into a value. Typically used to
// generate increasing unique values.
type Sequence struct {
	baseDeclaration
	fn func(n int) (any, error)
}

// NewSequence creates a Sequence declaration.
func NewSequence(fn func(n int) (any, error)) *Sequence {
	return &Sequence{baseDeclaration: newBaseDeclaration(), fn: fn}
}

// NewSequenceAs creates a Sequence whose counter is coerced through conv
// before reaching fn.
func NewSequenceAs[T any](conv func(int) T, fn func(n T) (any, error)) *Sequence {
	return NewSequence(func(n int) (any, error) {
		return fn(conv(n))
	})
}

func (d *Sequence) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	return d.fn(step.Sequence())
}

// LazyAttributeSequence combines LazyAttribute and Sequence: the producer
// receives both the Resolver and the sequence counter.
type LazyAttributeSequence struct {
	baseDeclaration
	fn func(r *Resolver, n int) (any, error)
}

// NewLazyAttributeSequence creates a LazyAttributeSequence declaration.
func NewLazyAttributeSequence(fn func(r *Resolver, n int) (any, error)) *LazyAttributeSequence {
	return &LazyAttributeSequence{baseDeclaration: newBaseDeclaration(), fn: fn}
}

func (d *LazyAttributeSequence) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	return d.fn(r, step.Sequence())
}

// ContainerAttribute receives the chain of ancestor stubs, excluding the
// current one. In strict mode it fails when used outside nested
// construction.
type ContainerAttribute struct {
	baseDeclaration
	fn     func(r *Resolver, chain []*Resolver) (any, error)
	strict bool
}

// NewContainerAttribute creates a ContainerAttribute declaration.
func NewContainerAttribute(fn func(r *Resolver, chain []*Resolver) (any, error), strict bool) *ContainerAttribute {
	return &ContainerAttribute{baseDeclaration: newBaseDeclaration(), fn: fn, strict: strict}
}

func (d *ContainerAttribute) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	chain := step.Chain()[1:]
	if d.strict && len(chain) == 0 {
		return nil, ErrContainerOutsideSubFactory
	}
	return d.fn(r, chain)
}

// parameteredAttribute is the base for declarations expecting parameters:
// construction-time defaults merged with call-time deep context, delegated
// to a generate hook.
type parameteredAttribute struct {
	baseDeclaration
	defaults map[string]any
	generate func(step *BuildStep, params map[string]any) (any, error)
}

func (d *parameteredAttribute) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	return d.generate(step, mergeMaps(d.defaults, extra))
}

// Maybe evaluates one of two branches depending on a sibling field. The
// decider is read off the Resolver; an undeclared decider counts as false.
// A missing "no" branch yields nil.
type Maybe struct {
	baseDeclaration
	decider string
	yes     any
	no      any
}

// NewMaybe creates a conditional declaration switching on the decider field.
func NewMaybe(decider string, yes, no any) *Maybe {
	return &Maybe{baseDeclaration: newBaseDeclaration(), decider: decider, yes: yes, no: no}
}

func (d *Maybe) Evaluate(r *Resolver, step *BuildStep, extra map[string]any) (any, error) {
	v, err := r.Attr(d.decider)
	if err != nil {
		var unknown *UnknownAttributeError
		if !errors.As(err, &unknown) {
			return nil, err
		}
		v = nil
	}

	target := d.no
	if truthy(v) {
		target = d.yes
	}
	if decl, ok := target.(Declaration); ok {
		return decl.Evaluate(r, step, extra)
	}
	return target, nil
}

func (d *Maybe) String() string {
	return fmt.Sprintf("Maybe(%q, yes=%v, no=%v)", d.decider, d.yes, d.no)
}
