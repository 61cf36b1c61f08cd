package jpel

import (
	"testing"

	"github.com/harishgarg/procflow/model"
	"github.com/stretchr/testify/require"
)

func TestEvaluator(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, ev *Evaluator){
		"condition over process variables":  testConditionProcessVars,
		"condition over activity variables": testConditionActivityVars,
		"expression result export":          testExpression,
		"script writes this and vars":       testScriptOutputs,
		"script result fallback":            testScriptLastValue,
		"helpers":                           testHelpers,
		"missing env token stays literal":   testMissingEnv,
		"broken expression reports error":   testBrokenExpression,
	} {
		t.Run(scenario, func(t *testing.T) {
			ev := NewEvaluator(map[string]string{"REGION": "eu-west-1"})
			fn(t, ev)
		})
	}
}

func testConditionProcessVars(t *testing.T, ev *Evaluator) {
	inst := testInstance()
	ok, err := ev.EvaluateCondition("v:amount > 100", inst)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ev.EvaluateCondition("v:amount > 500", inst)
	require.NoError(t, err)
	require.False(t, ok)
}

func testConditionActivityVars(t *testing.T, ev *Evaluator) {
	inst := testInstance()
	ok, err := ev.EvaluateCondition(`a:review.v:approved && v:customerName == "Alice"`, inst)
	require.NoError(t, err)
	require.True(t, ok)
}

func testExpression(t *testing.T, ev *Evaluator) {
	inst := testInstance()
	val, err := ev.EvaluateExpression("v:amount * 2", inst)
	require.NoError(t, err)
	require.Equal(t, float64(240), val)

	val, err = ev.EvaluateExpression(`env:REGION`, inst)
	require.NoError(t, err)
	require.Equal(t, "eu-west-1", val)
}

func testScriptOutputs(t *testing.T, ev *Evaluator) {
	inst := testInstance()
	result, err := ev.ExecuteScript([]string{
		"v:total = v:amount + 30",
		`this.summary = upper(v:customerName)`,
		`this.passFail = a:review.v:approved ? "PASS" : "FAIL"`,
	}, inst, "")
	require.NoError(t, err)
	require.Equal(t, float64(150), result.Vars["total"])
	require.Equal(t, "ALICE", result.Output["summary"])
	require.Equal(t, "PASS", result.Output["passFail"])
	// the snapshot itself is untouched
	require.NotContains(t, inst.Variables, "total")
}

func testScriptLastValue(t *testing.T, ev *Evaluator) {
	inst := testInstance()
	result, err := ev.ExecuteScript([]string{"v:amount * 3"}, inst, "")
	require.NoError(t, err)
	require.Equal(t, float64(360), result.Output["result"])
}

func testHelpers(t *testing.T, ev *Evaluator) {
	inst := testInstance()
	val, err := ev.EvaluateExpression(`trim("  hi  ") + str(round(2.6))`, inst)
	require.NoError(t, err)
	require.Equal(t, "hi3", val)

	val, err = ev.EvaluateExpression(`daysBetween(parseDate("2026-01-01"), parseDate("2026-01-11"))`, inst)
	require.NoError(t, err)
	require.Equal(t, float64(10), val)
}

func testMissingEnv(t *testing.T, ev *Evaluator) {
	inst := testInstance()
	val, err := ev.EvaluateExpression("env:NOT_CONFIGURED", inst)
	require.NoError(t, err)
	require.Equal(t, "env:NOT_CONFIGURED", val)
}

func testBrokenExpression(t *testing.T, ev *Evaluator) {
	inst := testInstance()
	_, err := ev.EvaluateCondition("v:amount >", inst)
	require.Error(t, err)
	var exprErr model.ExpressionError
	require.ErrorAs(t, err, &exprErr)
}
