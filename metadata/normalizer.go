package metadata

import (
	"fmt"

	"github.com/harishgarg/procflow/flow"
	"github.com/harishgarg/procflow/jpel"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/model"
	"go.uber.org/zap"
)

// field-type aliases accepted from older definitions, rewritten on normalize
var deprecatedFieldTypes = map[model.FieldType]model.FieldType{
	"string":     model.FIELD_TYPE_TEXT,
	"int":        model.FIELD_TYPE_NUMBER,
	"integer":    model.FIELD_TYPE_NUMBER,
	"float":      model.FIELD_TYPE_NUMBER,
	"bool":       model.FIELD_TYPE_BOOLEAN,
	"datetime":   model.FIELD_TYPE_DATE,
	"dropdown":   model.FIELD_TYPE_SELECT,
	"enum":       model.FIELD_TYPE_SELECT,
	"attachment": model.FIELD_TYPE_FILE,
}

var knownFieldTypes = map[model.FieldType]bool{
	model.FIELD_TYPE_TEXT:    true,
	model.FIELD_TYPE_NUMBER:  true,
	model.FIELD_TYPE_BOOLEAN: true,
	model.FIELD_TYPE_DATE:    true,
	model.FIELD_TYPE_SELECT:  true,
	model.FIELD_TYPE_FILE:    true,
}

// Validate checks a definition for structural soundness: required fields,
// known activity types and full reference integrity. Every reference used
// anywhere must resolve inside the activity map; nothing is deferred to run
// time.
func Validate(def *model.ProcessDefinition) model.ValidationResult {
	res := model.ValidationResult{Valid: true}
	addErr := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}
	addWarn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}
	if def.Id == "" {
		addErr("process id is required")
	}
	if def.Name == "" {
		addErr("process name is required")
	}
	if err := flow.ValidateStateHandler(def.OnFailure); err != nil {
		addErr("%v", err)
	}
	if err := flow.ValidateStateHandler(def.OnSuccess); err != nil {
		addErr("%v", err)
	}
	if len(def.Activities) == 0 {
		addErr("process has no activities")
		return res
	}
	resolves := func(owner, kind, ref string) {
		if _, ok := def.Activities[ref]; !ok {
			addErr("activity %s: %s reference %q does not resolve", owner, kind, ref)
		}
	}
	if def.StartActivity == "" {
		addErr("process has no start activity")
	} else {
		resolves("(process)", "start", def.StartActivity)
	}
	for key, act := range def.Activities {
		if act.Id != "" && act.Id != key {
			addWarn("activity %s: embedded id %q differs from map key and will be overwritten", key, act.Id)
		}
		switch act.Type {
		case model.ACTIVITY_TYPE_HUMAN:
			for _, f := range act.Fields {
				if f.Name == "" {
					addErr("activity %s: field with empty name", key)
				}
				if _, deprecated := deprecatedFieldTypes[f.Type]; deprecated {
					addWarn("activity %s: field %s uses deprecated type %q", key, f.Name, f.Type)
				} else if f.Type != "" && !knownFieldTypes[f.Type] {
					addErr("activity %s: field %s has unknown type %q", key, f.Name, f.Type)
				}
				if f.Type == model.FIELD_TYPE_SELECT && len(f.Options) == 0 {
					addErr("activity %s: select field %s has no options", key, f.Name)
				}
			}
		case model.ACTIVITY_TYPE_COMPUTE:
			if len(act.Script) == 0 {
				addErr("activity %s: compute script can not be empty", key)
			}
			for _, ref := range jpel.ExtractActivityRefs(act.Script) {
				resolves(key, "script", ref)
			}
		case model.ACTIVITY_TYPE_EXTERNAL_CALL:
			if act.Call == nil || act.Call.Url == "" {
				addErr("activity %s: external call needs a url", key)
			} else if act.Call.Method == "" {
				addErr("activity %s: external call needs a method", key)
			}
			if act.Call != nil {
				for _, ref := range jpel.ExtractActivityRefs(act.Call.PostScript) {
					resolves(key, "post-script", ref)
				}
			}
		case model.ACTIVITY_TYPE_SEQUENCE, model.ACTIVITY_TYPE_PARALLEL:
			if len(act.Activities) == 0 {
				addErr("activity %s: %s member list can not be empty", key, act.Type)
			}
			for _, member := range act.Activities {
				resolves(key, "member", member)
			}
		case model.ACTIVITY_TYPE_BRANCH:
			if act.Condition == "" {
				addErr("activity %s: branch condition can not be empty", key)
			}
			if act.Then == "" {
				addErr("activity %s: branch needs a then reference", key)
			} else {
				resolves(key, "then", act.Then)
			}
			if act.Else != "" {
				resolves(key, "else", act.Else)
			}
		case model.ACTIVITY_TYPE_SWITCH:
			if act.Expression == "" {
				addErr("activity %s: switch expression can not be empty", key)
			}
			if len(act.Cases) == 0 {
				addErr("activity %s: switch has no cases", key)
			}
			for value, target := range act.Cases {
				resolves(key, fmt.Sprintf("case %q", value), target)
			}
			if act.Default != "" {
				resolves(key, "default", act.Default)
			}
		case model.ACTIVITY_TYPE_TERMINATE:
			if act.Result != "" && act.Result != model.TERMINATE_RESULT_SUCCESS && act.Result != model.TERMINATE_RESULT_FAILURE {
				addErr("activity %s: terminate result must be %q or %q", key, model.TERMINATE_RESULT_SUCCESS, model.TERMINATE_RESULT_FAILURE)
			}
		case "":
			addErr("activity %s: type is required", key)
		default:
			addErr("activity %s: unknown type %q", key, act.Type)
		}
	}
	return res
}

// Normalize forces every activity id to equal its map key and rewrites
// deprecated field-type aliases. It is idempotent and runs before first
// instantiation and again defensively whenever a definition is loaded from
// a store that may predate normalization.
func Normalize(def *model.ProcessDefinition) {
	for key, act := range def.Activities {
		if act.Id != key {
			if act.Id != "" {
				logger.Warn("overwriting embedded activity id with map key",
					zap.String("process", def.Id), zap.String("key", key), zap.String("embedded", act.Id))
			}
			act.Id = key
		}
		for i := range act.Fields {
			if current, ok := deprecatedFieldTypes[act.Fields[i].Type]; ok {
				act.Fields[i].Type = current
			}
			if act.Fields[i].Type == "" {
				act.Fields[i].Type = model.FIELD_TYPE_TEXT
			}
		}
		if act.Type == model.ACTIVITY_TYPE_TERMINATE && act.Result == "" {
			act.Result = model.TERMINATE_RESULT_SUCCESS
		}
	}
	for i := range def.Variables {
		if current, ok := deprecatedFieldTypes[def.Variables[i].Type]; ok {
			def.Variables[i].Type = current
		}
	}
}
