package fabrik

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterInstallsValue(t *testing.T) {
	factory := newFactory(t, "t.Param", map[string]any{
		"greeting": NewLazyAttribute(func(r *Resolver) (any, error) {
			lang, err := r.Attr("lang")
			if err != nil {
				return nil, err
			}
			return "hello in " + lang.(string), nil
		}),
	}, WithParameter("lang", "en"))

	m := buildMap(t, factory, nil)
	assert.Equal(t, "hello in en", m["greeting"])
	// Parameters are built fields like any other.
	assert.Equal(t, "en", m["lang"])
}

func TestTraitOverridesWhenEnabled(t *testing.T) {
	factory := newFactory(t, "t.Trait", map[string]any{
		"status": "draft",
		"public": false,
	}, WithTrait("published", NewTrait(map[string]any{
		"status": "live",
		"public": true,
	})))

	m := buildMap(t, factory, nil)
	assert.Equal(t, "draft", m["status"])
	assert.Equal(t, false, m["public"])

	m = buildMap(t, factory, map[string]any{"published": true})
	assert.Equal(t, "live", m["status"])
	assert.Equal(t, true, m["public"])
}

func TestTraitFallsBackToDeclaration(t *testing.T) {
	factory := newFactory(t, "t.TraitLazy", map[string]any{
		"n": 3,
		"label": NewLazyAttribute(func(r *Resolver) (any, error) {
			n, err := r.Attr("n")
			if err != nil {
				return nil, err
			}
			return n.(int) * 2, nil
		}),
	}, WithTrait("fixed", NewTrait(map[string]any{"label": 0})))

	assert.Equal(t, 6, buildMap(t, factory, nil)["label"])
	assert.Equal(t, 0, buildMap(t, factory, map[string]any{"fixed": true})["label"])
}

func TestTraitAppliesAfterOverriddenParameter(t *testing.T) {
	factory := newFactory(t, "t.TraitOrder", map[string]any{},
		WithParameter("color", "blue"),
		WithTrait("fancy", NewTrait(map[string]any{"color": "gold"})),
	)

	assert.Equal(t, "blue", buildMap(t, factory, nil)["color"])
	assert.Equal(t, "gold", buildMap(t, factory, map[string]any{"fancy": true})["color"])
}

func TestStackedTraits(t *testing.T) {
	factory := newFactory(t, "t.TraitStack", map[string]any{
		"kind": "plain",
	},
		WithTrait("a", NewTrait(map[string]any{"kind": "a-kind"})),
		WithTrait("b", NewTrait(map[string]any{"kind": "b-kind"})),
	)

	// Traits apply in lexicographic order, so "b" wraps "a" and wins when
	// both are enabled.
	assert.Equal(t, "plain", buildMap(t, factory, nil)["kind"])
	assert.Equal(t, "a-kind", buildMap(t, factory, map[string]any{"a": true})["kind"])
	assert.Equal(t, "b-kind", buildMap(t, factory, map[string]any{"b": true})["kind"])
	assert.Equal(t, "b-kind", buildMap(t, factory, map[string]any{"a": true, "b": true})["kind"])
	assert.Equal(t, "a-kind", buildMap(t, factory, map[string]any{"a": true, "b": false})["kind"])
}

type cyclicParam struct {
	deps []string
}

func (p cyclicParam) AsDeclarations(fieldName string, declarations map[string]any) map[string]any {
	return map[string]any{fieldName: "v"}
}

func (p cyclicParam) RevDeps(parameters []string) []string {
	return p.deps
}

func TestParameterCycleFailsDefinition(t *testing.T) {
	_, err := NewDefinition("t.ParamCycle", nil,
		WithParameter("x", cyclicParam{deps: []string{"y"}}),
		WithParameter("y", cyclicParam{deps: []string{"x"}}),
	)
	var invalid *InvalidDeclarationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "cycle")
}

func TestApplyParametersLeavesInputUntouched(t *testing.T) {
	fields := map[string]any{"a": 1}
	out, err := ApplyParameters(fields, map[string]Parameter{
		"b": SimpleParameter{Value: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, out)
	assert.Equal(t, map[string]any{"a": 1}, fields)
}
