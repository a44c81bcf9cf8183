package fabrik

// Observer provides hooks around the build lifecycle. Observers wrap whole
// builds, individual field evaluations and post-generation hooks
// middleware-style, and are inherited by nested builders created through
// recursion.
type Observer interface {
	// Name returns the observer's name.
	Name() string

	// Wrap intercepts one operation. Implementations must call next exactly
	// once unless they intend to short-circuit the operation.
	Wrap(next func() (any, error), op *Operation) (any, error)

	// OnError is notified after an operation fails.
	OnError(err error, op *Operation)
}

// BaseObserver provides no-op defaults for Observer methods.
type BaseObserver struct {
	name string
}

// NewBaseObserver creates a base observer with the given name.
func NewBaseObserver(name string) BaseObserver {
	return BaseObserver{name: name}
}

func (o *BaseObserver) Name() string {
	return o.name
}

func (o *BaseObserver) Wrap(next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (o *BaseObserver) OnError(err error, op *Operation) {
}

// Operation describes what a wrapped call is doing.
type Operation struct {
	Kind        OperationKind
	FieldName   string
	FactoryName string
	Step        *BuildStep
}

// OperationKind represents the type of operation.
type OperationKind string

const (
	// OpBuild spans one whole build call, from resolution to finalization.
	OpBuild OperationKind = "build"
	// OpEvaluate spans one declaration's evaluation.
	OpEvaluate OperationKind = "evaluate"
	// OpPostGeneration spans one post-generation hook.
	OpPostGeneration OperationKind = "postgen"
)
