package model

import "time"

type InstanceState string

const INSTANCE_RUNNING InstanceState = "RUNNING"
const INSTANCE_COMPLETED InstanceState = "COMPLETED"
const INSTANCE_FAILED InstanceState = "FAILED"
const INSTANCE_CANCELLED InstanceState = "CANCELLED"

type ActivityState string

const ACTIVITY_PENDING ActivityState = "PENDING"
const ACTIVITY_RUNNING ActivityState = "RUNNING"
const ACTIVITY_COMPLETED ActivityState = "COMPLETED"
const ACTIVITY_FAILED ActivityState = "FAILED"
const ACTIVITY_CANCELLED ActivityState = "CANCELLED"
const ACTIVITY_TIMEOUT ActivityState = "TIMEOUT"

func (s ActivityState) IsTerminal() bool {
	switch s {
	case ACTIVITY_COMPLETED, ACTIVITY_FAILED, ACTIVITY_CANCELLED, ACTIVITY_TIMEOUT:
		return true
	}
	return false
}

type PassFail string

const PASS_FAIL_NONE PassFail = ""
const PASS PassFail = "PASS"
const FAIL PassFail = "FAIL"

type AggregateResult string

const AGGREGATE_NONE AggregateResult = ""
const AGGREGATE_ALL_PASS AggregateResult = "ALL_PASS"
const AGGREGATE_ANY_FAIL AggregateResult = "ANY_FAIL"

// ExecutionFrame is one level of the container call stack. Position is the
// index of the member currently being executed for sequences; unused for
// parallel, branch and switch frames.
type ExecutionFrame struct {
	ActivityId string `json:"activityId"`
	ParentId   string `json:"parentId,omitempty"`
	Position   int    `json:"position"`
}

type ProcessInstance struct {
	Id              string                       `json:"id"`
	ProcessId       string                       `json:"processId"`
	State           InstanceState                `json:"state"`
	CreatedAt       time.Time                    `json:"createdAt"`
	CompletedAt     *time.Time                   `json:"completedAt,omitempty"`
	Variables       map[string]any               `json:"variables"`
	Activities      map[string]*ActivityInstance `json:"activities"`
	CurrentActivity string                       `json:"currentActivity,omitempty"`
	Stack           []ExecutionFrame             `json:"stack,omitempty"`
	Aggregate       AggregateResult              `json:"aggregatePassFail,omitempty"`
	Reason          string                       `json:"reason,omitempty"`
}

// ActivityInstance embeds its definition plus runtime state. Exactly one of
// Sequence, Parallel and Choice is non-nil, selected by Def.Type; leaf
// activities carry none of them.
type ActivityInstance struct {
	Id          string         `json:"id"`
	Def         *ActivityDef   `json:"definition"`
	Status      ActivityState  `json:"status"`
	PassFail    PassFail       `json:"passFail,omitempty"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Error       string         `json:"error,omitempty"`
	Variables   []Variable     `json:"variables,omitempty"`
	Sequence    *SequenceState `json:"sequence,omitempty"`
	Parallel    *ParallelState `json:"parallel,omitempty"`
	Choice      *ChoiceState   `json:"choice,omitempty"`
}

type SequenceState struct {
	CurrentIndex int      `json:"currentIndex"`
	Activities   []string `json:"activities"`
}

const PARALLEL_STATE_RUNNING string = "running"
const PARALLEL_STATE_COMPLETED string = "completed"

type ParallelState struct {
	State      string   `json:"state"`
	Activities []string `json:"activities"`
	Completed  []string `json:"completed,omitempty"`
}

type ChoiceState struct {
	// Outcome is the matched case value, "then"/"else" for branches, or
	// "default" when the switch fell back to its default target.
	Outcome string `json:"outcome"`
	Next    string `json:"next,omitempty"`
}

type Variable struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type,omitempty"`
	Value   any       `json:"value,omitempty"`
	Default any       `json:"default,omitempty"`
}

func (ai *ActivityInstance) GetVariable(name string) (any, bool) {
	for _, v := range ai.Variables {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

func (ai *ActivityInstance) SetVariable(name string, typ FieldType, value any) {
	for i := range ai.Variables {
		if ai.Variables[i].Name == name {
			ai.Variables[i].Value = value
			return
		}
	}
	ai.Variables = append(ai.Variables, Variable{Name: name, Type: typ, Value: value})
}
