package fabrik

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	BaseObserver
	events *[]string
}

func newRecordingObserver(name string, events *[]string) *recordingObserver {
	return &recordingObserver{BaseObserver: NewBaseObserver(name), events: events}
}

func (o *recordingObserver) Wrap(next func() (any, error), op *Operation) (any, error) {
	*o.events = append(*o.events, fmt.Sprintf("%s:enter:%s:%s", o.Name(), op.Kind, op.FieldName))
	v, err := next()
	*o.events = append(*o.events, fmt.Sprintf("%s:exit:%s:%s", o.Name(), op.Kind, op.FieldName))
	return v, err
}

func (o *recordingObserver) OnError(err error, op *Operation) {
	*o.events = append(*o.events, fmt.Sprintf("%s:error:%s", o.Name(), op.Kind))
}

func TestObserverWrapsOperations(t *testing.T) {
	var events []string
	factory := newFactory(t, "t.Observed", map[string]any{
		"name": NewLazyFunction(func() (any, error) { return "x", nil }),
	})

	_, err := Build(factory, nil, WithObserver(newRecordingObserver("rec", &events)))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"rec:enter:build:",
		"rec:enter:evaluate:name",
		"rec:exit:evaluate:name",
		"rec:exit:build:",
	}, events)
}

func TestObserverNestingOrder(t *testing.T) {
	var events []string
	factory := newFactory(t, "t.Nested", nil)

	_, err := Build(factory, nil,
		WithObserver(newRecordingObserver("outer", &events)),
		WithObserver(newRecordingObserver("inner", &events)),
	)
	require.NoError(t, err)
	// The first registered observer is the outermost wrapper.
	assert.Equal(t, []string{
		"outer:enter:build:",
		"inner:enter:build:",
		"inner:exit:build:",
		"outer:exit:build:",
	}, events)
}

func TestObserverOnError(t *testing.T) {
	var events []string
	boom := errors.New("boom")
	factory := newFactory(t, "t.ObservedErr", map[string]any{
		"bad": NewLazyFunction(func() (any, error) { return nil, boom }),
	})

	_, err := Build(factory, nil, WithObserver(newRecordingObserver("rec", &events)))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, events, "rec:error:evaluate")
	assert.Contains(t, events, "rec:error:build")
}

func TestObserverInheritedByNestedBuilds(t *testing.T) {
	var events []string
	inner := newFactory(t, "t.ObsInner", map[string]any{
		"leaf": NewLazyFunction(func() (any, error) { return 1, nil }),
	})
	outer := newFactory(t, "t.ObsOuter", map[string]any{
		"child": NewSubFactory(inner, nil),
	})

	_, err := Build(outer, nil, WithObserver(newRecordingObserver("rec", &events)))
	require.NoError(t, err)
	assert.Contains(t, events, "rec:enter:evaluate:leaf")
}

func TestObserverSeesFactoryName(t *testing.T) {
	var name string
	obs := &funcObserver{BaseObserver: NewBaseObserver("capture"), fn: func(op *Operation) {
		if op.Kind == OpBuild {
			name = op.FactoryName
		}
	}}
	factory := newFactory(t, "t.Named", nil)

	_, err := Build(factory, nil, WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, "t.Named", name)
}

type funcObserver struct {
	BaseObserver
	fn func(op *Operation)
}

func (o *funcObserver) Wrap(next func() (any, error), op *Operation) (any, error) {
	o.fn(op)
	return next()
}
