package jpel

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/harishgarg/procflow/model"
)

// Evaluator runs JPEL conditions and scripts inside a fresh goja VM per
// evaluation. The VM sees only the injected snapshot objects and the helper
// allow-list below; there is no module system, host introspection or I/O.
type Evaluator struct {
	env map[string]string
}

func NewEvaluator(env map[string]string) *Evaluator {
	if env == nil {
		env = map[string]string{}
	}
	return &Evaluator{env: env}
}

// ScriptResult carries what a script produced: Output becomes the activity's
// recorded variable list, Vars is the process variable bag after any
// v:name assignments.
type ScriptResult struct {
	Output map[string]any
	Vars   map[string]any
}

func (e *Evaluator) EvaluateCondition(expr string, inst *model.ProcessInstance) (bool, error) {
	vm, err := e.newVM(inst, "")
	if err != nil {
		return false, model.ExpressionError{Expression: expr, Cause: err}
	}
	val, err := vm.RunString(translate(expr, e.env))
	if err != nil {
		return false, model.ExpressionError{Expression: expr, Cause: err}
	}
	return val.ToBoolean(), nil
}

func (e *Evaluator) EvaluateExpression(expr string, inst *model.ProcessInstance) (any, error) {
	vm, err := e.newVM(inst, "")
	if err != nil {
		return nil, model.ExpressionError{Expression: expr, Cause: err}
	}
	val, err := vm.RunString(translate(expr, e.env))
	if err != nil {
		return nil, model.ExpressionError{Expression: expr, Cause: err}
	}
	return exportValue(val)
}

// ExecuteScript runs the statements in order against the instance snapshot.
// The produced output is the set of properties assigned on `this`, or, when
// the script never touches `this`, the value of its final statement under
// the key "result".
func (e *Evaluator) ExecuteScript(lines []string, inst *model.ProcessInstance, currentActivityId string) (*ScriptResult, error) {
	script := strings.Join(lines, "\n")
	vm, err := e.newVM(inst, currentActivityId)
	if err != nil {
		return nil, model.ExpressionError{Expression: script, Cause: err}
	}
	last, err := vm.RunString(translate(script, e.env))
	if err != nil {
		return nil, model.ExpressionError{Expression: script, Cause: err}
	}
	vars, err := exportObject(vm, "$v")
	if err != nil {
		return nil, model.ExpressionError{Expression: script, Cause: err}
	}
	self, err := exportObject(vm, "$this")
	if err != nil {
		return nil, model.ExpressionError{Expression: script, Cause: err}
	}
	output := self
	if len(output) == 0 {
		output = map[string]any{}
		if lastVal, err := exportValue(last); err == nil && lastVal != nil {
			output["result"] = lastVal
		}
	}
	return &ScriptResult{Output: output, Vars: vars}, nil
}

func (e *Evaluator) newVM(inst *model.ProcessInstance, currentActivityId string) (*goja.Runtime, error) {
	vm := goja.New()
	if err := registerHelpers(vm); err != nil {
		return nil, err
	}
	preamble, err := e.preamble(inst, currentActivityId)
	if err != nil {
		return nil, err
	}
	if _, err := vm.RunString(preamble); err != nil {
		return nil, err
	}
	return vm, nil
}

// preamble injects the snapshot as plain JS objects, the same way the
// teacher of this codebase feeds flow data into script actions.
func (e *Evaluator) preamble(inst *model.ProcessInstance, currentActivityId string) (string, error) {
	vars := inst.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	acts := make(map[string]map[string]any)
	for id, act := range inst.Activities {
		m := make(map[string]any)
		for _, v := range act.Variables {
			m[v.Name] = v.Value
		}
		acts[id] = m
	}
	varsJs, err := json.Marshal(vars)
	if err != nil {
		return "", err
	}
	actsJs, err := json.Marshal(acts)
	if err != nil {
		return "", err
	}
	envJs, err := json.Marshal(e.env)
	if err != nil {
		return "", err
	}
	b := strings.Builder{}
	fmt.Fprintf(&b, "var $v = %s;\n", varsJs)
	fmt.Fprintf(&b, "var $a = %s;\n", actsJs)
	fmt.Fprintf(&b, "var $env = %s;\n", envJs)
	b.WriteString("var $this = {};\n")
	if currentActivityId != "" {
		if self, ok := acts[currentActivityId]; ok && len(self) > 0 {
			selfJs, err := json.Marshal(self)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "$this = %s;\n", selfJs)
		}
	}
	return b.String(), nil
}

// The helper allow-list. Scripts get these plus plain operators and the
// injected snapshot objects; nothing else.
func registerHelpers(vm *goja.Runtime) error {
	helpers := map[string]any{
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"trim":     strings.TrimSpace,
		"contains": strings.Contains,
		"replace":  strings.ReplaceAll,
		"abs":      math.Abs,
		"round":    math.Round,
		"floor":    math.Floor,
		"ceil":     math.Ceil,
		"num": func(s string) float64 {
			f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return f
		},
		"str": func(v any) string {
			return CanonicalString(v)
		},
		"now": func() string {
			return time.Now().UTC().Format(time.RFC3339)
		},
		"parseDate": func(s string) string {
			for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
			return ""
		},
		"daysBetween": func(a, b string) float64 {
			ta, err1 := time.Parse(time.RFC3339, a)
			tb, err2 := time.Parse(time.RFC3339, b)
			if err1 != nil || err2 != nil {
				return 0
			}
			return math.Abs(tb.Sub(ta).Hours() / 24)
		},
	}
	for name, fn := range helpers {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func exportObject(vm *goja.Runtime, expr string) (map[string]any, error) {
	val, err := vm.RunString(expr)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(val.Export())
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func exportValue(val goja.Value) (any, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	data, err := json.Marshal(val.Export())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
