package jpel

import (
	"testing"

	"github.com/harishgarg/procflow/model"
	"github.com/stretchr/testify/require"
)

func testInstance() *model.ProcessInstance {
	return &model.ProcessInstance{
		Id: "inst-1",
		Variables: map[string]any{
			"customerName": "Alice",
			"amount":       float64(120),
		},
		Activities: map[string]*model.ActivityInstance{
			"review": {
				Id:  "review",
				Def: &model.ActivityDef{Id: "review", Type: model.ACTIVITY_TYPE_HUMAN},
				Variables: []model.Variable{
					{Name: "approved", Type: model.FIELD_TYPE_BOOLEAN, Value: true},
					{Name: "comment", Type: model.FIELD_TYPE_TEXT, Value: "looks fine"},
				},
			},
		},
	}
}

func TestTokens(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"extract activity refs":       testExtractActivityRefs,
		"resolve token kinds":         testResolveTokens,
		"canonical string forms":      testCanonicalString,
		"substitute tokens in string": testSubstituteTokens,
	} {
		t.Run(scenario, fn)
	}
}

func testExtractActivityRefs(t *testing.T) {
	refs := ExtractActivityRefs([]string{
		"v:x = a:review.v:approved",
		"v:y = a:review.f:comment + a:score.v:total",
	})
	require.Equal(t, []string{"review", "score"}, refs)

	require.Empty(t, ExtractActivityRefs([]string{"v:x = 1 + 2"}))
}

func testResolveTokens(t *testing.T) {
	inst := testInstance()
	env := map[string]string{"API_HOST": "svc.example.com"}

	v, ok := Resolve("v:customerName", inst, env)
	require.True(t, ok)
	require.Equal(t, "Alice", v)

	v, ok = Resolve("var:amount", inst, env)
	require.True(t, ok)
	require.Equal(t, float64(120), v)

	v, ok = Resolve("a:review.v:approved", inst, env)
	require.True(t, ok)
	require.Equal(t, true, v)

	// legacy f: alias reads the same variable list
	v, ok = Resolve("a:review.f:comment", inst, env)
	require.True(t, ok)
	require.Equal(t, "looks fine", v)

	v, ok = Resolve("env:API_HOST", inst, env)
	require.True(t, ok)
	require.Equal(t, "svc.example.com", v)

	_, ok = Resolve("env:MISSING", inst, env)
	require.False(t, ok)

	_, ok = Resolve("v:unknown", inst, env)
	require.False(t, ok)

	_, ok = Resolve("a:ghost.v:x", inst, env)
	require.False(t, ok)
}

func testCanonicalString(t *testing.T) {
	require.Equal(t, "", CanonicalString(nil))
	require.Equal(t, "hello", CanonicalString("hello"))
	require.Equal(t, "true", CanonicalString(true))
	require.Equal(t, "42", CanonicalString(float64(42)))
	require.Equal(t, "42.5", CanonicalString(float64(42.5)))
	require.Equal(t, "7", CanonicalString(7))
	require.Equal(t, `{"a":1}`, CanonicalString(map[string]any{"a": 1}))
}

func testSubstituteTokens(t *testing.T) {
	inst := testInstance()
	env := map[string]string{"API_HOST": "svc.example.com"}

	out := SubstituteTokens("https://env:API_HOST/customers?name=v:customerName", inst, env)
	require.Equal(t, "https://svc.example.com/customers?name=Alice", out)

	out = SubstituteTokens("comment was: a:review.v:comment", inst, env)
	require.Equal(t, "comment was: looks fine", out)

	// unresolved env tokens stay literal, unresolved variables collapse
	out = SubstituteTokens("env:MISSING and v:unknown", inst, env)
	require.Equal(t, "env:MISSING and ", out)
}
