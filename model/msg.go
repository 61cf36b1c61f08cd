package model

type ProcessRunRequest struct {
	ProcessId string         `json:"processId"`
	Input     map[string]any `json:"input,omitempty"`
}

type TaskSubmitRequest struct {
	Data map[string]any `json:"data"`
}

type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// HumanTask is the field snapshot returned when an instance suspends on a
// human activity: defaults, or previously entered values after a rerun.
type HumanTask struct {
	InstanceId string      `json:"instanceId"`
	ActivityId string      `json:"activityId"`
	Prompt     string      `json:"prompt,omitempty"`
	Fields     []TaskField `json:"fields"`
}

type TaskField struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label,omitempty"`
	Required bool      `json:"required,omitempty"`
	Value    any       `json:"value,omitempty"`
	Options  []string  `json:"options,omitempty"`
}
