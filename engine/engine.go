package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harishgarg/procflow/analytics"
	"github.com/harishgarg/procflow/executor"
	"github.com/harishgarg/procflow/flow"
	"github.com/harishgarg/procflow/jpel"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/metadata"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/persistence"
	"go.uber.org/zap"
)

// Engine drives process instances forward activity by activity until they
// block on human input, complete or fail. Execution is single-threaded
// cooperative per instance: a chain of synchronous steps runs until a human
// activity suspends by returning control to the caller. Mutation per
// instance is serialized through a keyed lock; independent instances step
// concurrently.
type Engine struct {
	metadataService metadata.MetadataService
	storage         persistence.InstanceStorage
	resolver        *flow.Resolver
	evaluator       *jpel.Evaluator
	callExecutor    *executor.CallExecutor
	locks           *instanceLocks
	stateHandlers   *StateHandlerContainer
}

// StepResult is what a chain of steps ends in: either the instance reached a
// terminal state, or it is waiting on the contained human task.
type StepResult struct {
	Instance *model.ProcessInstance `json:"instance"`
	Waiting  bool                   `json:"waiting"`
	Task     *model.HumanTask       `json:"task,omitempty"`
}

func NewEngine(metadataService metadata.MetadataService, storage persistence.InstanceStorage,
	resolver *flow.Resolver, evaluator *jpel.Evaluator, callExecutor *executor.CallExecutor) *Engine {
	return &Engine{
		metadataService: metadataService,
		storage:         storage,
		resolver:        resolver,
		evaluator:       evaluator,
		callExecutor:    callExecutor,
		locks:           newInstanceLocks(),
		stateHandlers:   NewStateHandlerContainer(storage),
	}
}

// CreateInstance instantiates a running copy of the definition: every
// activity gets a Pending ActivityInstance mirroring the definition 1:1,
// variables are seeded from defaults and the caller's input, and execution
// starts immediately.
func (e *Engine) CreateInstance(processId string, input map[string]any) (*StepResult, error) {
	def, err := e.metadataService.GetProcessDefinition(processId)
	if err != nil {
		return nil, err
	}
	if def.StartActivity == "" {
		return nil, model.DefinitionInvalidError{ProcessId: processId, Errors: []string{"process has no start activity"}}
	}
	inst := &model.ProcessInstance{
		Id:         uuid.New().String(),
		ProcessId:  def.Id,
		State:      model.INSTANCE_RUNNING,
		CreatedAt:  time.Now(),
		Variables:  make(map[string]any),
		Activities: make(map[string]*model.ActivityInstance, len(def.Activities)),
	}
	for _, v := range def.Variables {
		if v.Default != nil {
			inst.Variables[v.Name] = v.Default
		}
	}
	for name, value := range input {
		inst.Variables[name] = value
	}
	for id, actDef := range def.Activities {
		ai := &model.ActivityInstance{Id: id, Def: actDef, Status: model.ACTIVITY_PENDING}
		for _, f := range actDef.Fields {
			ai.Variables = append(ai.Variables, model.Variable{Name: f.Name, Type: f.Type, Default: f.Default})
		}
		inst.Activities[id] = ai
	}
	defer e.locks.lock(inst.Id)()
	first, err := e.resolver.FirstLeaf(def, inst, def.StartActivity)
	if err != nil {
		return nil, e.failProcess(inst, def.StartActivity, err)
	}
	if first == "" {
		// nothing executable under the start reference
		return e.completeProcess(inst, "", true)
	}
	inst.CurrentActivity = first
	if err := e.storage.SaveProcessInstance(*inst); err != nil {
		return nil, err
	}
	logger.Info("process instance created", zap.String("process", def.Id), zap.String("instanceId", inst.Id))
	return e.step(def, inst)
}

// Step resumes the execution chain of a running instance from its current
// activity. For instances not in the Running state it just reports them.
func (e *Engine) Step(instanceId string) (*StepResult, error) {
	defer e.locks.lock(instanceId)()
	def, inst, err := e.load(instanceId)
	if err != nil {
		return nil, err
	}
	return e.step(def, inst)
}

func (e *Engine) step(def *model.ProcessDefinition, inst *model.ProcessInstance) (*StepResult, error) {
	if inst.State != model.INSTANCE_RUNNING {
		return &StepResult{Instance: inst}, nil
	}
	if inst.CurrentActivity == "" {
		return e.completeProcess(inst, "", true)
	}
	act, ok := inst.Activities[inst.CurrentActivity]
	if !ok {
		return nil, model.ActivityNotFoundError{InstanceId: inst.Id, ActivityId: inst.CurrentActivity}
	}
	switch act.Def.Type {
	case model.ACTIVITY_TYPE_HUMAN:
		if act.Status == model.ACTIVITY_PENDING {
			e.markRunning(act)
			if err := e.storage.SaveProcessInstance(*inst); err != nil {
				return nil, err
			}
		}
		return &StepResult{Instance: inst, Waiting: true, Task: e.humanTask(inst, act)}, nil
	case model.ACTIVITY_TYPE_COMPUTE:
		e.markRunning(act)
		result, err := e.evaluator.ExecuteScript(act.Def.Script, inst, act.Id)
		if err != nil {
			return nil, e.failProcess(inst, act.Id, err)
		}
		inst.Variables = result.Vars
		e.applyOutputs(act, result.Output)
		e.markCompleted(act)
		recordActivitySuccess(inst, act)
		if err := e.storage.SaveProcessInstance(*inst); err != nil {
			return nil, err
		}
		return e.continueExecution(def, inst, act.Id)
	case model.ACTIVITY_TYPE_EXTERNAL_CALL:
		e.markRunning(act)
		result, err := e.callExecutor.Execute(act.Def.Call, inst)
		if err != nil {
			return nil, e.failProcess(inst, act.Id, err)
		}
		act.SetVariable("status", model.FIELD_TYPE_NUMBER, result.Status)
		if result.Body != nil {
			act.SetVariable("body", "", result.Body)
		} else if result.Raw != "" {
			act.SetVariable("body", model.FIELD_TYPE_TEXT, result.Raw)
		}
		if len(act.Def.Call.PostScript) > 0 {
			scriptResult, err := e.evaluator.ExecuteScript(act.Def.Call.PostScript, inst, act.Id)
			if err != nil {
				return nil, e.failProcess(inst, act.Id, err)
			}
			inst.Variables = scriptResult.Vars
			e.applyOutputs(act, scriptResult.Output)
		}
		e.markCompleted(act)
		recordActivitySuccess(inst, act)
		if err := e.storage.SaveProcessInstance(*inst); err != nil {
			return nil, err
		}
		return e.continueExecution(def, inst, act.Id)
	case model.ACTIVITY_TYPE_SEQUENCE, model.ACTIVITY_TYPE_PARALLEL,
		model.ACTIVITY_TYPE_BRANCH, model.ACTIVITY_TYPE_SWITCH:
		next, err := e.resolver.FirstLeaf(def, inst, act.Id)
		if err != nil {
			return nil, e.failProcess(inst, act.Id, err)
		}
		if next == "" {
			return e.completeProcess(inst, "", true)
		}
		inst.CurrentActivity = next
		if err := e.storage.SaveProcessInstance(*inst); err != nil {
			return nil, err
		}
		return e.step(def, inst)
	case model.ACTIVITY_TYPE_TERMINATE:
		e.markRunning(act)
		e.markCompleted(act)
		recordActivitySuccess(inst, act)
		return e.completeProcess(inst, act.Def.Reason, act.Def.Result != model.TERMINATE_RESULT_FAILURE)
	default:
		err := model.UnknownActivityTypeError{ActivityId: act.Id, Type: act.Def.Type}
		return nil, e.failProcess(inst, act.Id, err)
	}
}

// SubmitHumanTask validates and applies submitted values to the named human
// activity, then resumes the execution chain. A validation failure leaves
// the activity Running and the instance untouched.
func (e *Engine) SubmitHumanTask(instanceId string, activityId string, data map[string]any) (*StepResult, error) {
	defer e.locks.lock(instanceId)()
	def, inst, err := e.load(instanceId)
	if err != nil {
		return nil, err
	}
	act, ok := inst.Activities[activityId]
	if !ok {
		return nil, model.ActivityNotFoundError{InstanceId: instanceId, ActivityId: activityId}
	}
	if act.Def.Type != model.ACTIVITY_TYPE_HUMAN || act.Status != model.ACTIVITY_RUNNING || inst.CurrentActivity != activityId {
		return nil, model.ActivityNotWaitingError{ActivityId: activityId, Status: act.Status}
	}
	if failures := ValidateSubmission(act.Def.Fields, data); len(failures) > 0 {
		return nil, model.FieldValidationError{ActivityId: activityId, Failures: failures}
	}
	for _, field := range act.Def.Fields {
		value, present := data[field.Name]
		if !present || value == nil || value == "" {
			if existing, ok := act.GetVariable(field.Name); ok && existing != nil {
				continue
			}
			value = field.Default
		}
		act.SetVariable(field.Name, field.Type, value)
	}
	e.markCompleted(act)
	recordActivitySuccess(inst, act)
	if err := e.storage.SaveProcessInstance(*inst); err != nil {
		return nil, err
	}
	logger.Info("human task submitted", zap.String("instanceId", instanceId), zap.String("activity", activityId))
	return e.continueExecution(def, inst, activityId)
}

func (e *Engine) continueExecution(def *model.ProcessDefinition, inst *model.ProcessInstance, completedId string) (*StepResult, error) {
	next, err := e.resolver.NextAfterLeaf(def, inst, completedId)
	if err != nil {
		return nil, e.failProcess(inst, completedId, err)
	}
	if next == "" {
		return e.completeProcess(inst, "", true)
	}
	inst.CurrentActivity = next
	if err := e.storage.SaveProcessInstance(*inst); err != nil {
		return nil, err
	}
	return e.step(def, inst)
}

// Rerun resets every activity to Pending while preserving its variable list,
// so previously entered human-task values become the new defaults, and
// replays the whole process from the start.
func (e *Engine) Rerun(instanceId string) (*StepResult, error) {
	defer e.locks.lock(instanceId)()
	def, inst, err := e.load(instanceId)
	if err != nil {
		return nil, err
	}
	for _, act := range inst.Activities {
		e.resetActivity(act)
	}
	e.resetInstance(inst)
	first, err := e.resolver.FirstLeaf(def, inst, def.StartActivity)
	if err != nil {
		return nil, e.failProcess(inst, def.StartActivity, err)
	}
	inst.CurrentActivity = first
	if err := e.storage.SaveProcessInstance(*inst); err != nil {
		return nil, err
	}
	logger.Info("process instance rerun", zap.String("instanceId", instanceId))
	return e.step(def, inst)
}

// Restart keeps completed leaf work and fast-forwards past it: Running,
// Failed and Cancelled activities go back to Pending, container state is
// rebuilt by replay, and execution resumes at the first leaf that still
// needs work.
func (e *Engine) Restart(instanceId string) (*StepResult, error) {
	defer e.locks.lock(instanceId)()
	def, inst, err := e.load(instanceId)
	if err != nil {
		return nil, err
	}
	for _, act := range inst.Activities {
		if act.Def.Type.IsContainer() || act.Status != model.ACTIVITY_COMPLETED {
			e.resetActivity(act)
		}
	}
	e.resetInstance(inst)
	next, err := e.resolver.Replay(def, inst)
	if err != nil {
		return nil, e.failProcess(inst, def.StartActivity, err)
	}
	if next == "" {
		return e.completeProcess(inst, "", true)
	}
	inst.CurrentActivity = next
	if err := e.storage.SaveProcessInstance(*inst); err != nil {
		return nil, err
	}
	logger.Info("process instance restarted", zap.String("instanceId", instanceId), zap.String("resumeAt", next))
	return e.step(def, inst)
}

// Navigate is the read-only counterpart of Restart: it reports where the
// engine would resume, computed by the fast-forward planner, without
// touching instance state.
func (e *Engine) Navigate(instanceId string) (string, error) {
	def, inst, err := e.load(instanceId)
	if err != nil {
		return "", err
	}
	return e.resolver.Plan(def, inst)
}

func (e *Engine) GetInstance(instanceId string) (*model.ProcessInstance, error) {
	return e.storage.GetProcessInstance(instanceId)
}

// Storage exposes the instance store for query surfaces.
func (e *Engine) Storage() persistence.InstanceStorage {
	return e.storage
}

// CurrentHumanTask returns the field snapshot of the human activity the
// instance is suspended on.
func (e *Engine) CurrentHumanTask(instanceId string) (*model.HumanTask, error) {
	_, inst, err := e.load(instanceId)
	if err != nil {
		return nil, err
	}
	if inst.CurrentActivity == "" {
		return nil, model.ActivityNotWaitingError{ActivityId: "", Status: model.ACTIVITY_PENDING}
	}
	act := inst.Activities[inst.CurrentActivity]
	if act.Def.Type != model.ACTIVITY_TYPE_HUMAN || act.Status != model.ACTIVITY_RUNNING {
		return nil, model.ActivityNotWaitingError{ActivityId: act.Id, Status: act.Status}
	}
	return e.humanTask(inst, act), nil
}

// CancelInstance stops a running instance externally.
func (e *Engine) CancelInstance(instanceId string) (*model.ProcessInstance, error) {
	defer e.locks.lock(instanceId)()
	_, inst, err := e.load(instanceId)
	if err != nil {
		return nil, err
	}
	if inst.State != model.INSTANCE_RUNNING {
		return inst, nil
	}
	for _, act := range inst.Activities {
		if act.Status == model.ACTIVITY_RUNNING {
			act.Status = model.ACTIVITY_CANCELLED
			now := time.Now()
			act.CompletedAt = &now
		}
	}
	inst.State = model.INSTANCE_CANCELLED
	now := time.Now()
	inst.CompletedAt = &now
	inst.CurrentActivity = ""
	inst.Stack = nil
	if err := e.storage.SaveProcessInstance(*inst); err != nil {
		return nil, err
	}
	logger.Info("process instance cancelled", zap.String("instanceId", instanceId))
	return inst, nil
}

func (e *Engine) load(instanceId string) (*model.ProcessDefinition, *model.ProcessInstance, error) {
	inst, err := e.storage.GetProcessInstance(instanceId)
	if err != nil {
		return nil, nil, err
	}
	def, err := e.metadataService.GetProcessDefinition(inst.ProcessId)
	if err != nil {
		return nil, nil, err
	}
	return def, inst, nil
}

func (e *Engine) completeProcess(inst *model.ProcessInstance, reason string, success bool) (*StepResult, error) {
	if success {
		inst.State = model.INSTANCE_COMPLETED
	} else {
		inst.State = model.INSTANCE_FAILED
	}
	now := time.Now()
	inst.CompletedAt = &now
	inst.CurrentActivity = ""
	inst.Stack = nil
	inst.Reason = reason
	inst.Aggregate = computeAggregate(inst)
	if err := e.storage.SaveProcessInstance(*inst); err != nil {
		return nil, err
	}
	if success {
		logger.Info("process completed", zap.String("instanceId", inst.Id), zap.String("aggregate", string(inst.Aggregate)))
	} else {
		logger.Info("process failed", zap.String("instanceId", inst.Id), zap.String("reason", reason))
	}
	analytics.RecordProcessEnd(inst.ProcessId, inst.Id, string(inst.State), string(inst.Aggregate))
	e.fireStateHandler(inst, success)
	return &StepResult{Instance: inst}, nil
}

func (e *Engine) fireStateHandler(inst *model.ProcessInstance, success bool) {
	def, err := e.metadataService.GetProcessDefinition(inst.ProcessId)
	if err != nil {
		return
	}
	name := def.OnFailure
	if success {
		name = def.OnSuccess
	}
	if name == "" {
		return
	}
	handler := e.stateHandlers.GetHandler(flow.Statehandler(name))
	if err := handler(inst.Id); err != nil {
		logger.Error("state handler failed", zap.String("instanceId", inst.Id), zap.String("handler", name), zap.Error(err))
	}
}

// failProcess records the activity-local failure and fails the owning
// process: routing cannot safely continue past a failed activity and there
// is no automatic retry.
func (e *Engine) failProcess(inst *model.ProcessInstance, activityId string, cause error) error {
	if act, ok := inst.Activities[activityId]; ok {
		act.Status = model.ACTIVITY_FAILED
		act.Error = cause.Error()
		now := time.Now()
		act.CompletedAt = &now
	}
	analytics.RecordActivityFailure(inst.ProcessId, inst.Id, activityId, cause.Error())
	reason := fmt.Sprintf("activity %s failed: %v", activityId, cause)
	if _, err := e.completeProcess(inst, reason, false); err != nil {
		logger.Error("error persisting failed instance", zap.String("instanceId", inst.Id), zap.Error(err))
	}
	logger.Error("process failed", zap.String("instanceId", inst.Id), zap.String("activity", activityId), zap.Error(cause))
	return cause
}

func (e *Engine) markRunning(act *model.ActivityInstance) {
	if act.Status == model.ACTIVITY_PENDING {
		act.Status = model.ACTIVITY_RUNNING
		now := time.Now()
		act.StartedAt = &now
	}
}

func (e *Engine) markCompleted(act *model.ActivityInstance) {
	act.Status = model.ACTIVITY_COMPLETED
	now := time.Now()
	act.CompletedAt = &now
}

func recordActivitySuccess(inst *model.ProcessInstance, act *model.ActivityInstance) {
	data := make(map[string]any, len(act.Variables))
	for _, v := range act.Variables {
		data[v.Name] = v.Value
	}
	analytics.RecordActivitySuccess(inst.ProcessId, inst.Id, act.Id, data)
}

// applyOutputs stores script outputs into the activity's variable list; a
// passFail output additionally sets the activity's pass/fail marker.
func (e *Engine) applyOutputs(act *model.ActivityInstance, outputs map[string]any) {
	for name, value := range outputs {
		if name == "passFail" {
			switch strings.ToUpper(fmt.Sprintf("%v", value)) {
			case "PASS", "TRUE":
				act.PassFail = model.PASS
			case "FAIL", "FALSE":
				act.PassFail = model.FAIL
			}
		}
		act.SetVariable(name, "", value)
	}
}

func (e *Engine) humanTask(inst *model.ProcessInstance, act *model.ActivityInstance) *model.HumanTask {
	task := &model.HumanTask{
		InstanceId: inst.Id,
		ActivityId: act.Id,
		Prompt:     act.Def.Prompt,
	}
	for _, f := range act.Def.Fields {
		value, _ := act.GetVariable(f.Name)
		if value == nil {
			value = f.Default
		}
		task.Fields = append(task.Fields, model.TaskField{
			Name:     f.Name,
			Type:     f.Type,
			Label:    f.Label,
			Required: f.Required,
			Value:    value,
			Options:  f.Options,
		})
	}
	return task
}

func (e *Engine) resetActivity(act *model.ActivityInstance) {
	act.Status = model.ACTIVITY_PENDING
	act.StartedAt = nil
	act.CompletedAt = nil
	act.Error = ""
	act.PassFail = model.PASS_FAIL_NONE
	act.Sequence = nil
	act.Parallel = nil
	act.Choice = nil
}

func (e *Engine) resetInstance(inst *model.ProcessInstance) {
	inst.State = model.INSTANCE_RUNNING
	inst.CompletedAt = nil
	inst.CurrentActivity = ""
	inst.Stack = nil
	inst.Aggregate = model.AGGREGATE_NONE
	inst.Reason = ""
}

func computeAggregate(inst *model.ProcessInstance) model.AggregateResult {
	reported := false
	for _, act := range inst.Activities {
		switch act.PassFail {
		case model.FAIL:
			return model.AGGREGATE_ANY_FAIL
		case model.PASS:
			reported = true
		}
	}
	if reported {
		return model.AGGREGATE_ALL_PASS
	}
	return model.AGGREGATE_NONE
}
