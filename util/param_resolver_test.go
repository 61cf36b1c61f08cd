package util

import (
	"testing"

	"github.com/harishgarg/procflow/model"
	"github.com/stretchr/testify/require"
)

func resolverInstance() *model.ProcessInstance {
	return &model.ProcessInstance{
		Id:        "inst-1",
		Variables: map[string]any{"orderId": float64(42), "customer": "Alice"},
		Activities: map[string]*model.ActivityInstance{
			"lookup": {
				Id:  "lookup",
				Def: &model.ActivityDef{Id: "lookup", Type: model.ACTIVITY_TYPE_EXTERNAL_CALL},
				Variables: []model.Variable{
					{Name: "body", Value: map[string]any{"price": 99.5}},
				},
			},
		},
	}
}

func TestResolveString(t *testing.T) {
	inst := resolverInstance()
	env := map[string]string{"API_HOST": "svc.example.com"}

	out := ResolveString("https://{env:API_HOST}/orders/{v:orderId}", inst, env)
	require.Equal(t, "https://svc.example.com/orders/42", out)

	out = ResolveString("price={$.activities.lookup.body.price}", inst, env)
	require.Equal(t, "price=99.5", out)

	out = ResolveString("customer={$.vars.customer}", inst, env)
	require.Equal(t, "customer=Alice", out)

	// unresolved env tokens keep their literal text
	out = ResolveString("host={env:MISSING}", inst, env)
	require.Equal(t, "host=env:MISSING", out)
}

func TestResolveParams(t *testing.T) {
	inst := resolverInstance()

	params := map[string]any{
		"id":      "{v:orderId}",
		"note":    "order {v:orderId} for {v:customer}",
		"nested":  map[string]any{"price": "{$.activities.lookup.body.price}"},
		"list":    []any{"{v:customer}", "literal"},
		"untyped": float64(7),
	}
	out := ResolveParams(params, inst, nil)

	// a lone token keeps the resolved value's type
	require.Equal(t, float64(42), out["id"])
	require.Equal(t, "order 42 for Alice", out["note"])
	require.Equal(t, 99.5, out["nested"].(map[string]any)["price"])
	require.Equal(t, "Alice", out["list"].([]any)[0])
	require.Equal(t, "literal", out["list"].([]any)[1])
	require.Equal(t, float64(7), out["untyped"])
}
