package util

import (
	"regexp"
	"strings"

	"github.com/harishgarg/procflow/jpel"
	"github.com/harishgarg/procflow/model"
	"github.com/oliveagle/jsonpath"
)

var braceTokenRe = regexp.MustCompile(`\{(.*?)\}`)

// ResolveString substitutes every {token} in a text fragment against the
// instance snapshot. A token is either a $.path jsonpath over the snapshot
// document or a JPEL reference. Unresolved env: tokens keep their literal
// text.
func ResolveString(value string, inst *model.ProcessInstance, env map[string]string) string {
	doc := snapshotDocument(inst)
	return braceTokenRe.ReplaceAllStringFunc(value, func(token string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if strings.HasPrefix(inner, "$") {
			if v, err := jsonpath.JsonPathLookup(doc, inner); err == nil {
				return jpel.CanonicalString(v)
			}
			return ""
		}
		return jpel.SubstituteTokens(inner, inst, env)
	})
}

// ResolveParams walks a parameter map and substitutes references in every
// string value, recursing through nested maps and lists.
func ResolveParams(params map[string]any, inst *model.ProcessInstance, env map[string]string) map[string]any {
	output := make(map[string]any, len(params))
	for k, v := range params {
		output[k] = resolveValue(v, inst, env)
	}
	return output
}

func resolveValue(v any, inst *model.ProcessInstance, env map[string]string) any {
	switch t := v.(type) {
	case map[string]any:
		return ResolveParams(t, inst, env)
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, resolveValue(e, inst, env))
		}
		return out
	case string:
		// a string that is exactly one token keeps the resolved value's type
		if m := braceTokenRe.FindStringSubmatch(strings.TrimSpace(t)); m != nil && m[0] == strings.TrimSpace(t) {
			inner := m[1]
			if strings.HasPrefix(inner, "$") {
				if val, err := jsonpath.JsonPathLookup(snapshotDocument(inst), inner); err == nil {
					return val
				}
				return nil
			}
			if val, ok := jpel.Resolve(strings.TrimSpace(inner), inst, env); ok {
				return val
			}
		}
		return ResolveString(t, inst, env)
	default:
		return v
	}
}

// snapshotDocument is the jsonpath root: process variables under .vars and
// per-activity variable maps under .activities.<id>.
func snapshotDocument(inst *model.ProcessInstance) map[string]any {
	acts := make(map[string]any, len(inst.Activities))
	for id, act := range inst.Activities {
		m := make(map[string]any, len(act.Variables))
		for _, v := range act.Variables {
			m[v.Name] = v.Value
		}
		acts[id] = m
	}
	return map[string]any{
		"vars":       inst.Variables,
		"activities": acts,
	}
}
