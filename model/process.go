package model

type ActivityType string

const ACTIVITY_TYPE_HUMAN ActivityType = "HUMAN"
const ACTIVITY_TYPE_COMPUTE ActivityType = "COMPUTE"
const ACTIVITY_TYPE_EXTERNAL_CALL ActivityType = "EXTERNAL_CALL"
const ACTIVITY_TYPE_SEQUENCE ActivityType = "SEQUENCE"
const ACTIVITY_TYPE_PARALLEL ActivityType = "PARALLEL"
const ACTIVITY_TYPE_BRANCH ActivityType = "BRANCH"
const ACTIVITY_TYPE_SWITCH ActivityType = "SWITCH"
const ACTIVITY_TYPE_TERMINATE ActivityType = "TERMINATE"

func (t ActivityType) IsContainer() bool {
	switch t {
	case ACTIVITY_TYPE_SEQUENCE, ACTIVITY_TYPE_PARALLEL, ACTIVITY_TYPE_BRANCH, ACTIVITY_TYPE_SWITCH:
		return true
	}
	return false
}

type FieldType string

const FIELD_TYPE_TEXT FieldType = "text"
const FIELD_TYPE_NUMBER FieldType = "number"
const FIELD_TYPE_BOOLEAN FieldType = "boolean"
const FIELD_TYPE_DATE FieldType = "date"
const FIELD_TYPE_SELECT FieldType = "select"
const FIELD_TYPE_FILE FieldType = "file"

const TERMINATE_RESULT_SUCCESS string = "success"
const TERMINATE_RESULT_FAILURE string = "failure"

type ProcessDefinition struct {
	Id            string                  `json:"id"`
	Name          string                  `json:"name"`
	Version       int                     `json:"version"`
	OnSuccess     string                  `json:"onSuccess,omitempty"`
	OnFailure     string                  `json:"onFailure,omitempty"`
	Variables     []VariableDef           `json:"variables,omitempty"`
	StartActivity string                  `json:"startActivity"`
	Activities    map[string]*ActivityDef `json:"activities"`
}

type VariableDef struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type,omitempty"`
	Default any       `json:"default,omitempty"`
}

// ActivityDef is a closed variant over the eight activity kinds. The Type
// discriminant selects which fields are meaningful; the loader rejects
// definitions whose kind-specific fields are missing.
type ActivityDef struct {
	Id   string       `json:"id"`
	Type ActivityType `json:"type"`
	Name string       `json:"name,omitempty"`

	// Human
	Prompt string     `json:"prompt,omitempty"`
	Fields []FieldDef `json:"fields,omitempty"`

	// Compute
	Script []string `json:"script,omitempty"`

	// ExternalCall
	Call *CallDef `json:"call,omitempty"`

	// Sequence / Parallel
	Activities []string `json:"activities,omitempty"`

	// Branch
	Condition string `json:"condition,omitempty"`
	Then      string `json:"then,omitempty"`
	Else      string `json:"else,omitempty"`

	// Switch
	Expression string            `json:"expression,omitempty"`
	Cases      map[string]string `json:"cases,omitempty"`
	Default    string            `json:"default,omitempty"`

	// Terminate
	Result string `json:"result,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type CallDef struct {
	Method         string            `json:"method"`
	Url            string            `json:"url"`
	Headers        map[string]string `json:"headers,omitempty"`
	Query          map[string]string `json:"query,omitempty"`
	Body           map[string]any    `json:"body,omitempty"`
	PostScript     []string          `json:"postScript,omitempty"`
	TimeoutSeconds int               `json:"timeoutSeconds,omitempty"`
}

type FieldDef struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	Label     string    `json:"label,omitempty"`
	Required  bool      `json:"required,omitempty"`
	Default   any       `json:"default,omitempty"`
	Pattern   string    `json:"pattern,omitempty"`
	MinLength int       `json:"minLength,omitempty"`
	MaxLength int       `json:"maxLength,omitempty"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
	Options   []string  `json:"options,omitempty"`
}
