package fabrik

import "fmt"

// Strategy tags a build call. The core carries the tag on every step but
// does not interpret it; collaborators may.
type Strategy string

const (
	// StrategyBuild constructs an unpersisted object.
	StrategyBuild Strategy = "build"
	// StrategyCreate constructs a persisted object.
	StrategyCreate Strategy = "create"
	// StrategyStub constructs a bare attribute container.
	StrategyStub Strategy = "stub"
)

// BuildStep is the per-object construction context: the assigned sequence,
// the resolved attribute map, the parent link for nested builds and the
// Resolver bound to it. Steps are created immediately before resolution and
// discarded after the build call completes; they are never reused.
type BuildStep struct {
	builder    *StepBuilder
	sequence   int
	attributes map[string]any
	parent     *BuildStep
	stub       *Resolver
}

// Sequence returns the sequence number assigned to this step.
func (s *BuildStep) Sequence() int {
	return s.sequence
}

// Attributes returns the resolved field values. The map is owned by the
// step; callers must not retain it across the build call.
func (s *BuildStep) Attributes() map[string]any {
	return s.attributes
}

// Parent returns the parent step, or nil at the build root.
func (s *BuildStep) Parent() *BuildStep {
	return s.parent
}

// Stub returns the Resolver bound to this step.
func (s *BuildStep) Stub() *Resolver {
	return s.stub
}

// Strategy returns the strategy tag of the enclosing build call.
func (s *BuildStep) Strategy() Strategy {
	return s.builder.strategy
}

// FactoryName names the factory this step is building.
func (s *BuildStep) FactoryName() string {
	return s.builder.meta.FactoryName()
}

// Chain returns the ancestor Resolvers from this step up to the build root,
// self first.
func (s *BuildStep) Chain() []*Resolver {
	var chain []*Resolver
	for step := s; step != nil; step = step.parent {
		chain = append(chain, step.stub)
	}
	return chain
}

// Recurse builds a nested object with a fresh builder for factory, linking
// the new step's parent to this one.
func (s *BuildStep) Recurse(factory Factory, overrides map[string]any, forceSequence *int) (any, error) {
	sub := s.builder.recurse(factory.Meta(), overrides)
	return sub.Build(s, forceSequence)
}

func (s *BuildStep) resolve(declarations *DeclarationSet) error {
	s.stub = newResolver(declarations, s)
	for _, name := range declarations.Sorted() {
		v, err := s.stub.Attr(name)
		if err != nil {
			return wrapEvaluation(s.FactoryName(), name, err)
		}
		s.attributes[name] = v
	}
	return nil
}

func (s *BuildStep) String() string {
	return fmt.Sprintf("<BuildStep for %s seq=%d>", s.FactoryName(), s.sequence)
}

// StepBuilder orchestrates one factory instantiation: override routing,
// sequence assignment, pre-declaration resolution, delegation to the
// metadata collaborator and the post-generation pipeline.
type StepBuilder struct {
	meta              Metadata
	extras            map[string]any
	strategy          Strategy
	forceInitSequence *int
	observers         []Observer
	err               error
}

// BuilderOption configures a StepBuilder.
type BuilderOption func(*StepBuilder)

// WithObserver attaches an observer; nested builders created through
// recursion inherit it.
func WithObserver(obs Observer) BuilderOption {
	return func(b *StepBuilder) {
		b.observers = append(b.observers, obs)
	}
}

// NewStepBuilder prepares a build of meta with raw call-time overrides. A
// SequenceOverrideKey entry is stripped here and pins the build's sequence.
func NewStepBuilder(meta Metadata, extras map[string]any, strategy Strategy, opts ...BuilderOption) *StepBuilder {
	b := &StepBuilder{
		meta:     meta,
		extras:   copyAnyMap(extras),
		strategy: strategy,
	}
	if raw, ok := b.extras[SequenceOverrideKey]; ok {
		delete(b.extras, SequenceOverrideKey)
		if n, ok := asInt(raw); ok {
			b.forceInitSequence = &n
		} else {
			b.err = &InvalidDeclarationError{
				Reason: fmt.Sprintf("sequence override must be an integer, got %T", raw),
			}
		}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the build: resolve pre/post sets, assign the sequence, resolve
// every pre-declaration, instantiate through the metadata collaborator, then
// run post-generation in creation order. On any failure the in-progress
// step tree is discarded and the error returned.
//
// Sequence priority: forceSequence argument, then the stripped override from
// construction, then the factory's own counter.
func (b *StepBuilder) Build(parent *BuildStep, forceSequence *int) (any, error) {
	if b.err != nil {
		return nil, b.err
	}

	pre, post, err := parseDeclarations(b.extras, b.meta.PreDeclarations(), b.meta.PostDeclarations())
	if err != nil {
		return nil, err
	}

	var sequence int
	switch {
	case forceSequence != nil:
		sequence = *forceSequence
	case b.forceInitSequence != nil:
		sequence = *b.forceInitSequence
	default:
		sequence = b.meta.NextSequence()
	}

	step := &BuildStep{
		builder:    b,
		sequence:   sequence,
		attributes: make(map[string]any, pre.Len()),
		parent:     parent,
	}

	op := &Operation{Kind: OpBuild, FactoryName: b.meta.FactoryName(), Step: step}
	return b.observe(op, func() (any, error) {
		return b.run(step, pre, post)
	})
}

func (b *StepBuilder) run(step *BuildStep, pre, post *DeclarationSet) (any, error) {
	if err := step.resolve(pre); err != nil {
		return nil, err
	}

	args, kwargs := b.meta.PrepareArguments(step.attributes)
	instance, err := b.meta.Instantiate(step, args, kwargs)
	if err != nil {
		return nil, err
	}

	results := make(map[string]any, post.Len())
	for _, name := range post.Sorted() {
		dc, _ := post.Get(name)
		decl, ok := dc.Declaration.(PostDeclaration)
		if !ok {
			return nil, &InvalidDeclarationError{
				Reason: fmt.Sprintf("declaration %q in the post-generation set is not post-generation capable", name),
			}
		}
		ctx := decl.Extract(name, dc.Context)
		op := &Operation{Kind: OpPostGeneration, FieldName: name, FactoryName: b.meta.FactoryName(), Step: step}
		value, err := b.observe(op, func() (any, error) {
			return decl.Call(instance, step, ctx)
		})
		if err != nil {
			return nil, wrapEvaluation(b.meta.FactoryName(), name, err)
		}
		results[name] = value
	}

	if err := b.meta.UsePostGenerationResults(instance, step, results); err != nil {
		return nil, err
	}
	return instance, nil
}

// recurse derives a builder for a nested factory call, keeping the strategy
// and observers of this one.
func (b *StepBuilder) recurse(meta Metadata, extras map[string]any) *StepBuilder {
	sub := NewStepBuilder(meta, extras, b.strategy)
	sub.observers = append([]Observer(nil), b.observers...)
	return sub
}

// observe runs next wrapped by every attached observer, last registered
// innermost, and notifies observers of a failure.
func (b *StepBuilder) observe(op *Operation, next func() (any, error)) (any, error) {
	for i := len(b.observers) - 1; i >= 0; i-- {
		obs := b.observers[i]
		inner := next
		next = func() (any, error) {
			return obs.Wrap(inner, op)
		}
	}
	result, err := next()
	if err != nil {
		for _, obs := range b.observers {
			obs.OnError(err, op)
		}
	}
	return result, err
}

// parseDeclarations merges raw call-time overrides against a factory's base
// pre/post sets without mutating either base.
//
// Overrides that are post-generation declarations become post fields, unless
// they would shadow an existing pre field (an error). Remaining overrides
// whose root names a post field are deep context for that field and are
// re-addressed so extraction finds them; everything else lands in the pre
// set.
func parseDeclarations(extras map[string]any, basePre, basePost *DeclarationSet) (*DeclarationSet, *DeclarationSet, error) {
	var pre, post *DeclarationSet
	if basePre != nil {
		pre = basePre.Copy()
	} else {
		pre, _ = NewDeclarationSet(nil)
	}
	if basePost != nil {
		post = basePost.Copy()
	} else {
		post, _ = NewDeclarationSet(nil)
	}

	extraPost := make(map[string]any)
	maybe := make(map[string]any)
	for _, k := range sortedKeys(extras) {
		v := extras[k]
		if pd, ok := v.(PostDeclaration); ok {
			if pre.Contains(k) {
				return nil, nil, &InvalidDeclarationError{
					Reason: fmt.Sprintf("post-generation declaration %q shadows a declaration of the same name", k),
					Keys:   []string{k},
					Known:  pre.FieldNames(),
				}
			}
			extraPost[k] = pd
			continue
		}
		maybe[k] = v
	}

	if err := post.Update(extraPost); err != nil {
		return nil, nil, err
	}

	postOverrides := make(map[string]bool)
	for _, k := range post.Filter(sortedKeys(maybe)) {
		postOverrides[k] = true
	}

	routed := make(map[string]any)
	preExtras := make(map[string]any)
	for k, v := range maybe {
		if postOverrides[k] {
			// Re-address foo__bar as foo__foo__bar so extraction can split
			// it back off the post field's context.
			root, _, _ := splitKey(k)
			routed[joinKey(root, k)] = v
			continue
		}
		preExtras[k] = v
	}

	if err := post.Update(routed); err != nil {
		return nil, nil, err
	}
	if err := pre.Update(preExtras); err != nil {
		return nil, nil, err
	}
	return pre, post, nil
}
