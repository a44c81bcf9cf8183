package fabrik

import "fmt"

// Resolver lazily computes the fields of one DeclarationSet for one
// BuildStep. Values are cached after their first computation; a stack of
// pending field names detects cyclic definitions.
//
// A Resolver is immutable from the outside: its fields are unexported and it
// has no setter, so values can only ever enter through the declared
// evaluation path below.
type Resolver struct {
	declarations *DeclarationSet
	step         *BuildStep
	values       map[string]any
	pending      []string
}

func newResolver(declarations *DeclarationSet, step *BuildStep) *Resolver {
	return &Resolver{
		declarations: declarations,
		step:         step,
		values:       make(map[string]any, declarations.Len()),
	}
}

// Attr retrieves a field's value, computing it if needed.
func (r *Resolver) Attr(name string) (any, error) {
	for _, p := range r.pending {
		if p != name {
			continue
		}
		return nil, &CyclicDefinitionError{
			FieldName: name,
			Pending:   append([]string(nil), r.pending...),
		}
	}

	if v, ok := r.values[name]; ok {
		return v, nil
	}

	dc, ok := r.declarations.Get(name)
	if !ok {
		return nil, &UnknownAttributeError{
			FieldName: name,
			Resolved:  copyAnyMap(r.values),
			Declared:  r.declarations.FieldNames(),
		}
	}

	value := dc.Declaration
	if decl, isDecl := value.(Declaration); isDecl {
		r.pending = append(r.pending, name)
		op := &Operation{
			Kind:        OpEvaluate,
			FieldName:   name,
			FactoryName: r.step.FactoryName(),
			Step:        r.step,
		}
		v, err := r.step.builder.observe(op, func() (any, error) {
			return decl.Evaluate(r, r.step, dc.Context)
		})
		last := r.pending[len(r.pending)-1]
		r.pending = r.pending[:len(r.pending)-1]
		if last != name {
			return nil, fmt.Errorf("resolver pending stack corrupted: popped %q while computing %q", last, name)
		}
		if err != nil {
			return nil, err
		}
		value = v
	}

	r.values[name] = value
	return value, nil
}

// FactoryParent returns the Resolver of the parent build step, or nil at the
// build root.
func (r *Resolver) FactoryParent() *Resolver {
	if r.step.parent == nil {
		return nil
	}
	return r.step.parent.stub
}

// Step returns the build step this resolver is bound to.
func (r *Resolver) Step() *BuildStep {
	return r.step
}

func (r *Resolver) String() string {
	return fmt.Sprintf("<Resolver for %s seq=%d>", r.step.FactoryName(), r.step.sequence)
}
