package fabrik

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// diagSpew renders attribute maps in error messages deterministically.
var diagSpew = &spew.ConfigState{Indent: " ", SortKeys: true, DisablePointerAddresses: true, DisableCapacities: true}

// ErrContainerOutsideSubFactory is returned when a strict ContainerAttribute
// is evaluated on a build step with no ancestors.
var ErrContainerOutsideSubFactory = errors.New("a strict ContainerAttribute can only be used within a SubFactory")

// InvalidDeclarationError reports a declaration map that cannot be applied:
// deep context addressed to an unknown field, a post-generation declaration
// shadowing a pre-declaration, or a parameter dependency cycle.
type InvalidDeclarationError struct {
	Reason string
	Keys   []string
	Known  []string
}

func (e *InvalidDeclarationError) Error() string {
	msg := e.Reason
	if len(e.Keys) > 0 {
		msg += ": " + strings.Join(e.Keys, ", ")
	}
	if len(e.Known) > 0 {
		msg += fmt.Sprintf(" (known=%s)", strings.Join(e.Known, ", "))
	}
	return msg
}

// CyclicDefinitionError reports a lazy attribute whose evaluation re-entered
// itself. Pending holds the full stack of fields mid-evaluation, outermost
// first.
type CyclicDefinitionError struct {
	FieldName string
	Pending   []string
}

func (e *CyclicDefinitionError) Error() string {
	return fmt.Sprintf("cyclic lazy attribute definition for %q; cycle found in [%s]",
		e.FieldName, strings.Join(e.Pending, " -> "))
}

// UnknownAttributeError reports access to a field that was never declared.
// It carries the already-resolved values and the declared names as a
// diagnostic aid.
type UnknownAttributeError struct {
	FieldName string
	Resolved  map[string]any
	Declared  []string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("the parameter %q is unknown; evaluated attributes are %s, declared fields are [%s]",
		e.FieldName,
		strings.TrimSpace(diagSpew.Sdump(e.Resolved)),
		strings.Join(e.Declared, ", "))
}

// FactoryRefError reports a factory reference that is neither a Factory
// handle nor a resolvable qualified path.
type FactoryRefError struct {
	Ref    any
	Path   string
	Reason string
}

func (e *FactoryRefError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("factory reference %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("factory reference %v (%T): %s", e.Ref, e.Ref, e.Reason)
}

// EvaluationError wraps a failure while computing one field of one factory.
type EvaluationError struct {
	FactoryName string
	FieldName   string
	Cause       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %s.%s: %v", e.FactoryName, e.FieldName, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// wrapEvaluation adds factory/field context to err unless it already carries
// some from a deeper frame.
func wrapEvaluation(factoryName, fieldName string, err error) error {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return err
	}
	return &EvaluationError{FactoryName: factoryName, FieldName: fieldName, Cause: err}
}
