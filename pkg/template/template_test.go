package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loopworklabs/loopwork/pkg/models"
)

func newTestContext(trigger map[string]any) *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "org-1", trigger, nil)
}

func TestRender_SingleTokenPreservesType(t *testing.T) {
	ectx := newTestContext(map[string]any{
		"a": map[string]any{"b": float64(5)},
	})

	result := Render("{{a.b}}", ectx)
	assert.Equal(t, float64(5), result)
}

func TestRender_MixedTemplateStringifies(t *testing.T) {
	ectx := newTestContext(map[string]any{
		"a": map[string]any{"b": float64(5)},
	})

	result := Render("x={{a.b}}", ectx)
	assert.Equal(t, "x=5", result)
}

func TestRender_UnresolvedTokenStaysVerbatim(t *testing.T) {
	ectx := newTestContext(map[string]any{"name": "Ada"})

	assert.Equal(t, "{{missing.path}}", Render("{{missing.path}}", ectx))
	assert.Equal(t, "hi {{missing}}, Ada", Render("hi {{missing}}, {{name}}", ectx))
}

func TestRender_NamedRoots(t *testing.T) {
	ectx := newTestContext(map[string]any{"score": float64(80)})
	ectx.SetVariable("plan", "gold")
	ectx.SetStep("lookup", map[string]any{"email": "ada@example.com"})

	assert.Equal(t, float64(80), Render("{{trigger.score}}", ectx))
	assert.Equal(t, "gold", Render("{{vars.plan}}", ectx))
	assert.Equal(t, "gold", Render("{{variables.plan}}", ectx))
	assert.Equal(t, "ada@example.com", Render("{{steps.lookup.email}}", ectx))
	assert.Equal(t, "exec-1", Render("{{execution.id}}", ectx))
}

func TestRender_ArrayIndex(t *testing.T) {
	ectx := newTestContext(map[string]any{
		"items": []any{
			map[string]any{"sku": "A-1"},
			map[string]any{"sku": "B-2"},
		},
	})

	assert.Equal(t, "B-2", Render("{{items[1].sku}}", ectx))
	assert.Equal(t, "first=A-1", Render("first={{items[0].sku}}", ectx))
}

func TestRender_OutOfRangeIndexStaysVerbatim(t *testing.T) {
	ectx := newTestContext(map[string]any{"items": []any{"only"}})

	assert.Equal(t, "{{items[3]}}", Render("{{items[3]}}", ectx))
}

func TestRenderAny_RecursesStringLeaves(t *testing.T) {
	ectx := newTestContext(map[string]any{"name": "Ada", "n": float64(2)})

	input := map[string]any{
		"greeting": "hello {{name}}",
		"count":    "{{n}}",
		"nested":   []any{"{{name}}", float64(7)},
		"passthru": true,
	}

	out, ok := RenderAny(input, ectx).(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "hello Ada", out["greeting"])
	assert.Equal(t, float64(2), out["count"])
	assert.Equal(t, []any{"Ada", float64(7)}, out["nested"])
	assert.Equal(t, true, out["passthru"])
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"bool", true, "true"},
		{"float whole", float64(5), "5"},
		{"float fractional", 2.5, "2.5"},
		{"int", 42, "42"},
		{"object", map[string]any{"a": float64(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stringify(tt.value))
		})
	}
}
