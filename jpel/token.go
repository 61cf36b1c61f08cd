package jpel

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/harishgarg/procflow/model"
)

// Reference token grammar, resolved against the current instance snapshot:
//
//	v:name / var:name        process variable
//	a:activityId.v:name      activity runtime variable
//	a:activityId.f:name      legacy alias for the above
//	env:NAME                 read-only configuration value
//	this.prop                property of the currently executing activity
var activityRefRe = regexp.MustCompile(`a:([A-Za-z0-9_-]+)\.(?:v|f):([A-Za-z_][A-Za-z0-9_]*)`)
var processVarRe = regexp.MustCompile(`\b(?:var|v):([A-Za-z_][A-Za-z0-9_]*)`)
var envRefRe = regexp.MustCompile(`env:([A-Za-z_][A-Za-z0-9_]*)`)
var thisRefRe = regexp.MustCompile(`\bthis\.`)

// ExtractActivityRefs returns the activity ids referenced through
// a:id.v:name tokens in the given script lines. Used by definition
// validation to check reference integrity before any instance exists.
func ExtractActivityRefs(lines []string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, line := range lines {
		for _, m := range activityRefRe.FindAllStringSubmatch(line, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				refs = append(refs, m[1])
			}
		}
	}
	return refs
}

// Resolve looks up a single reference token against instance state. The
// second return reports whether the token resolved; unresolved env: tokens
// are a configuration concern, not a workflow bug, so callers keep the
// literal text in that case.
func Resolve(token string, inst *model.ProcessInstance, env map[string]string) (any, bool) {
	if m := activityRefRe.FindStringSubmatch(token); m != nil && m[0] == token {
		act, ok := inst.Activities[m[1]]
		if !ok {
			return nil, false
		}
		return act.GetVariable(m[2])
	}
	if m := processVarRe.FindStringSubmatch(token); m != nil && m[0] == token {
		v, ok := inst.Variables[m[1]]
		return v, ok
	}
	if m := envRefRe.FindStringSubmatch(token); m != nil && m[0] == token {
		v, ok := env[m[1]]
		return v, ok
	}
	return nil, false
}

// translate rewrites JPEL tokens into member expressions over the objects
// injected into the script runtime ($v, $a, $env, $this). env: tokens with
// no configured value become quoted literal placeholders.
func translate(src string, env map[string]string) string {
	out := activityRefRe.ReplaceAllString(src, `$$a["$1"]["$2"]`)
	out = processVarRe.ReplaceAllString(out, `$$v.$1`)
	out = envRefRe.ReplaceAllStringFunc(out, func(tok string) string {
		name := envRefRe.FindStringSubmatch(tok)[1]
		if _, ok := env[name]; ok {
			return "$env." + name
		}
		return strconv.Quote(tok)
	})
	out = thisRefRe.ReplaceAllString(out, `$$this.`)
	return out
}

// CanonicalString serializes an evaluation result for switch-case matching.
// Primitives render in their natural form; anything structured goes through
// JSON so that equal values always compare equal.
func CanonicalString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// SubstituteTokens replaces every JPEL token inside a text fragment with its
// resolved value, leaving unresolved env: tokens as literal placeholders.
func SubstituteTokens(text string, inst *model.ProcessInstance, env map[string]string) string {
	replace := func(tok string) string {
		if v, ok := Resolve(tok, inst, env); ok {
			return CanonicalString(v)
		}
		if envRefRe.MatchString(tok) {
			return tok
		}
		return ""
	}
	out := activityRefRe.ReplaceAllStringFunc(text, replace)
	out = processVarRe.ReplaceAllStringFunc(out, replace)
	out = envRefRe.ReplaceAllStringFunc(out, replace)
	return out
}
