package engine

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harishgarg/procflow/executor"
	"github.com/harishgarg/procflow/flow"
	"github.com/harishgarg/procflow/jpel"
	"github.com/harishgarg/procflow/metadata"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/persistence/inmem"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, defs ...model.ProcessDefinition) *Engine {
	t.Helper()
	storage := inmem.NewStorage()
	metadataService := metadata.NewMetadataService(storage)
	for _, def := range defs {
		result, err := metadataService.SaveProcessDefinition(def)
		require.NoError(t, err)
		require.True(t, result.Valid)
	}
	evaluator := jpel.NewEvaluator(nil)
	resolver := flow.NewResolver(evaluator)
	callExecutor := executor.NewCallExecutor(evaluator, nil, 5*time.Second)
	return NewEngine(metadataService, storage, resolver, evaluator, callExecutor)
}

func computeDef(id string, script ...string) *model.ActivityDef {
	return &model.ActivityDef{Id: id, Type: model.ACTIVITY_TYPE_COMPUTE, Script: script}
}

func TestEngine(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"compute sequence runs to completion":  testComputeSequence,
		"human task suspends and resumes":      testHumanTask,
		"rejected submission leaves task open": testRejectedSubmission,
		"switch default routing":               testSwitchDefault,
		"nested sequence continues in parent":  testNestedContinuation,
		"terminate failure fails the process":  testTerminateFailure,
		"external call feeds downstream logic": testExternalCall,
		"aggregate pass fail rollup":           testAggregate,
		"rerun preserves entered values":       testRerunPreservesValues,
		"restart keeps completed work":         testRestart,
		"navigate reports resume point":        testNavigate,
		"cancel stops a waiting instance":      testCancel,
	} {
		t.Run(scenario, fn)
	}
}

func testComputeSequence(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "calc", Name: "calc", StartActivity: "main",
		Variables: []model.VariableDef{{Name: "base", Type: model.FIELD_TYPE_NUMBER, Default: float64(10)}},
		Activities: map[string]*model.ActivityDef{
			"main":   {Id: "main", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"double", "label"}},
			"double": computeDef("double", "v:base = v:base * 2"),
			"label":  computeDef("label", `this.text = "base is " + str(v:base)`),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("calc", nil)
	require.NoError(t, err)
	require.False(t, result.Waiting)
	require.Equal(t, model.INSTANCE_COMPLETED, result.Instance.State)
	require.Equal(t, float64(20), result.Instance.Variables["base"])
	text, ok := result.Instance.Activities["label"].GetVariable("text")
	require.True(t, ok)
	require.Equal(t, "base is 20", text)
	require.Empty(t, result.Instance.CurrentActivity)
}

func testHumanTask(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "intake", Name: "intake", StartActivity: "main",
		Activities: map[string]*model.ActivityDef{
			"main": {Id: "main", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"form", "greet"}},
			"form": {Id: "form", Type: model.ACTIVITY_TYPE_HUMAN, Prompt: "enter your name",
				Fields: []model.FieldDef{{Name: "name", Type: model.FIELD_TYPE_TEXT, Required: true}}},
			"greet": computeDef("greet", `this.greeting = "hello " + a:form.v:name`),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("intake", nil)
	require.NoError(t, err)
	require.True(t, result.Waiting)
	require.Equal(t, "form", result.Task.ActivityId)
	require.Equal(t, "enter your name", result.Task.Prompt)
	require.Equal(t, model.ACTIVITY_RUNNING, result.Instance.Activities["form"].Status)

	task, err := eng.CurrentHumanTask(result.Instance.Id)
	require.NoError(t, err)
	require.Equal(t, "form", task.ActivityId)

	result, err = eng.SubmitHumanTask(result.Instance.Id, "form", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, result.Instance.State)
	greeting, _ := result.Instance.Activities["greet"].GetVariable("greeting")
	require.Equal(t, "hello Alice", greeting)
}

func testRejectedSubmission(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "strict", Name: "strict", StartActivity: "form",
		Activities: map[string]*model.ActivityDef{
			"form": {Id: "form", Type: model.ACTIVITY_TYPE_HUMAN,
				Fields: []model.FieldDef{
					{Name: "age", Type: model.FIELD_TYPE_NUMBER, Required: true},
				}},
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("strict", nil)
	require.NoError(t, err)
	require.True(t, result.Waiting)
	id := result.Instance.Id

	_, err = eng.SubmitHumanTask(id, "form", map[string]any{})
	var fieldErr model.FieldValidationError
	require.ErrorAs(t, err, &fieldErr)

	_, err = eng.SubmitHumanTask(id, "form", map[string]any{"age": "not a number"})
	require.ErrorAs(t, err, &fieldErr)

	// the task is still open and the instance still running
	inst, err := eng.GetInstance(id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_RUNNING, inst.State)
	require.Equal(t, model.ACTIVITY_RUNNING, inst.Activities["form"].Status)

	result, err = eng.SubmitHumanTask(id, "form", map[string]any{"age": float64(30)})
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, result.Instance.State)

	// a completed task rejects further submissions
	_, err = eng.SubmitHumanTask(id, "form", map[string]any{"age": float64(31)})
	var notWaiting model.ActivityNotWaitingError
	require.ErrorAs(t, err, &notWaiting)
}

func testSwitchDefault(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "tiers", Name: "tiers", StartActivity: "route",
		Variables: []model.VariableDef{{Name: "tier", Type: model.FIELD_TYPE_TEXT, Default: "bronze"}},
		Activities: map[string]*model.ActivityDef{
			"route": {Id: "route", Type: model.ACTIVITY_TYPE_SWITCH, Expression: "v:tier",
				Cases: map[string]string{"gold": "vip"}, Default: "std"},
			"vip": computeDef("vip", `this.lane = "vip"`),
			"std": computeDef("std", `this.lane = "std"`),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("tiers", nil)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, result.Instance.State)
	require.Equal(t, "default", result.Instance.Activities["route"].Choice.Outcome)
	require.Equal(t, model.ACTIVITY_COMPLETED, result.Instance.Activities["std"].Status)
	require.Equal(t, model.ACTIVITY_PENDING, result.Instance.Activities["vip"].Status)
}

func testNestedContinuation(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "nested", Name: "nested", StartActivity: "outer",
		Activities: map[string]*model.ActivityDef{
			"outer": {Id: "outer", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"inner", "z"}},
			"inner": {Id: "inner", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"x", "y"}},
			"x":     computeDef("x", "v:trace = 'x'"),
			"y": {Id: "y", Type: model.ACTIVITY_TYPE_HUMAN,
				Fields: []model.FieldDef{{Name: "ack", Type: model.FIELD_TYPE_BOOLEAN}}},
			"z": computeDef("z", "v:trace = v:trace + 'z'"),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("nested", nil)
	require.NoError(t, err)
	require.True(t, result.Waiting)
	require.Equal(t, "y", result.Task.ActivityId)

	result, err = eng.SubmitHumanTask(result.Instance.Id, "y", map[string]any{"ack": true})
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, result.Instance.State)
	require.Equal(t, "xz", result.Instance.Variables["trace"])
	require.Equal(t, model.ACTIVITY_COMPLETED, result.Instance.Activities["inner"].Status)
	require.Equal(t, model.ACTIVITY_COMPLETED, result.Instance.Activities["outer"].Status)
}

func testTerminateFailure(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "abort", Name: "abort", StartActivity: "main",
		Activities: map[string]*model.ActivityDef{
			"main": {Id: "main", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"stop", "never"}},
			"stop": {Id: "stop", Type: model.ACTIVITY_TYPE_TERMINATE, Result: "failure", Reason: "out of stock"},
			"never": computeDef("never", "1"),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("abort", nil)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_FAILED, result.Instance.State)
	require.Equal(t, "out of stock", result.Instance.Reason)
	require.Equal(t, model.ACTIVITY_PENDING, result.Instance.Activities["never"].Status)
}

func testExternalCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "42", r.URL.Query().Get("orderId"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price": 99.5, "currency": "EUR"}`))
	}))
	defer srv.Close()

	def := model.ProcessDefinition{
		Id: "pricing", Name: "pricing", StartActivity: "main",
		Variables: []model.VariableDef{{Name: "orderId", Type: model.FIELD_TYPE_NUMBER, Default: float64(42)}},
		Activities: map[string]*model.ActivityDef{
			"main":  {Id: "main", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"fetch", "judge"}},
			"fetch": {Id: "fetch", Type: model.ACTIVITY_TYPE_EXTERNAL_CALL, Call: &model.CallDef{
				Method: http.MethodGet,
				Url:    srv.URL,
				Query:  map[string]string{"orderId": "{v:orderId}"},
				PostScript: []string{
					"v:price = a:fetch.v:body.price",
				},
			}},
			"judge": computeDef("judge", `this.passFail = v:price < 100 ? "PASS" : "FAIL"`),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("pricing", nil)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, result.Instance.State)
	status, _ := result.Instance.Activities["fetch"].GetVariable("status")
	require.Equal(t, 200, status)
	require.Equal(t, float64(99.5), result.Instance.Variables["price"])
	require.Equal(t, model.PASS, result.Instance.Activities["judge"].PassFail)
	require.Equal(t, model.AGGREGATE_ALL_PASS, result.Instance.Aggregate)
}

func testAggregate(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "qa", Name: "qa", StartActivity: "main",
		Activities: map[string]*model.ActivityDef{
			"main":   {Id: "main", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"first", "second"}},
			"first":  computeDef("first", `this.passFail = "PASS"`),
			"second": computeDef("second", `this.passFail = "FAIL"`),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("qa", nil)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, result.Instance.State)
	require.Equal(t, model.AGGREGATE_ANY_FAIL, result.Instance.Aggregate)
}

func testRerunPreservesValues(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "redo", Name: "redo", StartActivity: "form",
		Activities: map[string]*model.ActivityDef{
			"form": {Id: "form", Type: model.ACTIVITY_TYPE_HUMAN,
				Fields: []model.FieldDef{{Name: "name", Type: model.FIELD_TYPE_TEXT, Required: true}}},
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("redo", nil)
	require.NoError(t, err)
	result, err = eng.SubmitHumanTask(result.Instance.Id, "form", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, result.Instance.State)

	result, err = eng.Rerun(result.Instance.Id)
	require.NoError(t, err)
	require.True(t, result.Waiting)
	require.Equal(t, model.INSTANCE_RUNNING, result.Instance.State)
	// the previously entered value is offered again
	require.Equal(t, "Alice", result.Task.Fields[0].Value)
}

func testRestart(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "resume", Name: "resume", StartActivity: "main",
		Activities: map[string]*model.ActivityDef{
			"main": {Id: "main", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"a", "b", "c"}},
			"a":    computeDef("a", "v:ran = 'a'"),
			"b": {Id: "b", Type: model.ACTIVITY_TYPE_HUMAN,
				Fields: []model.FieldDef{{Name: "ok", Type: model.FIELD_TYPE_BOOLEAN}}},
			"c": computeDef("c", "v:ran = v:ran + 'c'"),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("resume", nil)
	require.NoError(t, err)
	require.True(t, result.Waiting)

	result, err = eng.Restart(result.Instance.Id)
	require.NoError(t, err)
	require.True(t, result.Waiting)
	// completed work is kept, the pending human task comes up again
	require.Equal(t, "b", result.Task.ActivityId)
	require.Equal(t, model.ACTIVITY_COMPLETED, result.Instance.Activities["a"].Status)
}

func testNavigate(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "nav", Name: "nav", StartActivity: "main",
		Activities: map[string]*model.ActivityDef{
			"main": {Id: "main", Type: model.ACTIVITY_TYPE_SEQUENCE, Activities: []string{"a", "b"}},
			"a": {Id: "a", Type: model.ACTIVITY_TYPE_HUMAN,
				Fields: []model.FieldDef{{Name: "x", Type: model.FIELD_TYPE_TEXT}}},
			"b": computeDef("b", "1"),
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("nav", nil)
	require.NoError(t, err)

	next, err := eng.Navigate(result.Instance.Id)
	require.NoError(t, err)
	require.Equal(t, "a", next)

	inst, err := eng.GetInstance(result.Instance.Id)
	require.NoError(t, err)
	require.Equal(t, "a", inst.CurrentActivity)
}

func testCancel(t *testing.T) {
	def := model.ProcessDefinition{
		Id: "drop", Name: "drop", StartActivity: "form",
		Activities: map[string]*model.ActivityDef{
			"form": {Id: "form", Type: model.ACTIVITY_TYPE_HUMAN,
				Fields: []model.FieldDef{{Name: "x", Type: model.FIELD_TYPE_TEXT}}},
		},
	}
	eng := newTestEngine(t, def)

	result, err := eng.CreateInstance("drop", nil)
	require.NoError(t, err)

	inst, err := eng.CancelInstance(result.Instance.Id)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_CANCELLED, inst.State)
	require.Equal(t, model.ACTIVITY_CANCELLED, inst.Activities["form"].Status)

	_, err = eng.SubmitHumanTask(inst.Id, "form", map[string]any{"x": "late"})
	var notWaiting model.ActivityNotWaitingError
	require.ErrorAs(t, err, &notWaiting)
}
