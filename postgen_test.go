package fabrik

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPopsValueAndExtras(t *testing.T) {
	overrides := map[string]any{
		"hook":         "supplied",
		"hook__color":  "red",
		"hook__weight": 3,
		"other":        true,
	}

	var base basePostDeclaration
	ctx := base.Extract("hook", overrides)

	assert.True(t, ctx.DidExtract)
	assert.Equal(t, "supplied", ctx.Value)
	assert.Equal(t, map[string]any{"color": "red", "weight": 3}, ctx.Extra)
	assert.Equal(t, "hook", ctx.ForField)
	assert.Equal(t, map[string]any{"other": true}, overrides)

	ctx = base.Extract("missing", overrides)
	assert.False(t, ctx.DidExtract)
	assert.Nil(t, ctx.Value)
	assert.Empty(t, ctx.Extra)
}

func TestRelatedFactoryBuildsWithBackReference(t *testing.T) {
	related := newFactory(t, "t.RelLog", map[string]any{
		"action": "create",
	})
	factory := newFactory(t, "t.RelOwner", map[string]any{
		"name": "owner",
		"log":  NewRelatedFactory(related, "subject", map[string]any{"level": "info"}),
	})

	var captured map[string]any
	withCapture := MustNewDefinition("t.RelCapture", map[string]any{
		"name": "owner",
		"log":  NewRelatedFactory(related, "subject", map[string]any{"level": "info"}),
	}, WithFinalizer(func(instance any, step *BuildStep, results map[string]any) error {
		captured = results["log"].(map[string]any)
		return nil
	}))

	m := buildMap(t, withCapture, map[string]any{"log__action": "update"})
	require.NotNil(t, captured)
	assert.Equal(t, "update", captured["action"])
	assert.Equal(t, "info", captured["level"])
	assert.Equal(t, m, captured["subject"])

	// An explicitly supplied value suppresses generation.
	captured = nil
	buildMap(t, withCapture, map[string]any{"log": "preset"})
	assert.Nil(t, captured)

	// Without a finalizer the related build still runs; the result is simply
	// dropped.
	buildMap(t, factory, nil)
}

func TestRelatedFactoryByRegistryPath(t *testing.T) {
	t.Cleanup(ClearRegistry)

	related := newFactory(t, "t.RelPathTarget", map[string]any{"kind": "related"})
	MustRegister("t.RelPathTarget", related)

	var captured any
	factory := MustNewDefinition("t.RelPathOwner", map[string]any{
		"log": NewRelatedFactory("t.RelPathTarget", "", nil),
	}, WithFinalizer(func(instance any, step *BuildStep, results map[string]any) error {
		captured = results["log"]
		return nil
	}))

	buildMap(t, factory, nil)
	assert.Equal(t, map[string]any{"kind": "related"}, captured)
}

type account struct {
	Name    string
	pw      string
	labels  []any
	options map[string]any
}

func (a *account) SetPassword(pw string) {
	a.pw = pw
}

func (a *account) Label(first, second any) {
	a.labels = []any{first, second}
}

func (a *account) Configure(mode string, options map[string]any) error {
	a.options = map[string]any{"mode": mode}
	for k, v := range options {
		a.options[k] = v
	}
	return nil
}

func newAccountFactory(t *testing.T, name string, declarations map[string]any) *Definition {
	t.Helper()
	declarations["Name"] = "bob"
	return MustNewDefinition(name, declarations,
		WithInstantiate(func(step *BuildStep, args []any, kwargs map[string]any) (any, error) {
			return &account{Name: kwargs["Name"].(string)}, nil
		}))
}

func TestMethodCallStaticArgs(t *testing.T) {
	factory := newAccountFactory(t, "t.MethodStatic", map[string]any{
		"set_pw": NewPostGenerationMethodCall("SetPassword", []any{"secret"}, nil),
	})

	instance, err := Build(factory, nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", instance.(*account).pw)
}

func TestMethodCallSuppliedValueAsSingleArg(t *testing.T) {
	factory := newAccountFactory(t, "t.MethodSupplied", map[string]any{
		"set_pw": NewPostGenerationMethodCall("SetPassword", nil, nil),
	})

	instance, err := Build(factory, map[string]any{"set_pw": "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", instance.(*account).pw)
}

func TestMethodCallSuppliedSliceUnpacks(t *testing.T) {
	factory := newAccountFactory(t, "t.MethodUnpack", map[string]any{
		"label": NewPostGenerationMethodCall("Label", []any{"a", "b"}, nil),
	})

	instance, err := Build(factory, map[string]any{"label": []any{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, instance.(*account).labels)

	instance, err = Build(factory, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, instance.(*account).labels)
}

func TestMethodCallKwargs(t *testing.T) {
	factory := newAccountFactory(t, "t.MethodKwargs", map[string]any{
		"configure": NewPostGenerationMethodCall("Configure", []any{"fast"},
			map[string]any{"retries": 1}),
	})

	instance, err := Build(factory, map[string]any{"configure__retries": 5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"mode": "fast", "retries": 5},
		instance.(*account).options)
}

func TestMethodCallUnknownMethod(t *testing.T) {
	factory := newAccountFactory(t, "t.MethodMissing", map[string]any{
		"boom": NewPostGenerationMethodCall("NoSuchMethod", nil, nil),
	})

	_, err := Build(factory, nil)
	require.Error(t, err)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "boom", evalErr.FieldName)
}
