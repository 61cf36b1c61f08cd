package flow

import (
	"fmt"
	"time"

	"github.com/harishgarg/procflow/jpel"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/util"
)

// Resolver computes routing decisions over (definition, instance snapshot)
// pairs without executing activity effects. Both live stepping and read-only
// navigation go through it, so the engine and the planner can never disagree
// about where execution goes next.
//
// Container tracking uses an explicit call stack of ExecutionFrames on the
// instance: FirstLeaf pushes a frame per container it descends through,
// NextAfterLeaf unwinds them as containers complete. A Branch or Switch that
// redirects execution into a nested target leaves its own frame on the
// stack, so the unwind always credits completion to the literal sequence
// member even when the member was entered indirectly.
type Resolver struct {
	evaluator *jpel.Evaluator
}

func NewResolver(evaluator *jpel.Evaluator) *Resolver {
	return &Resolver{evaluator: evaluator}
}

// FirstLeaf descends from ref through containers, branches and switches to
// the first executable leaf, recording container state and frames on the
// snapshot as it goes. It returns "" when ref resolves to no leaf at all
// (a false branch with no else at the end of the definition).
func (r *Resolver) FirstLeaf(def *model.ProcessDefinition, inst *model.ProcessInstance, ref string) (string, error) {
	act, ok := inst.Activities[ref]
	if !ok {
		return "", model.ActivityNotFoundError{InstanceId: inst.Id, ActivityId: ref}
	}
	switch act.Def.Type {
	case model.ACTIVITY_TYPE_SEQUENCE:
		r.enterContainer(inst, act)
		if act.Sequence == nil {
			act.Sequence = &model.SequenceState{CurrentIndex: 0, Activities: append([]string{}, act.Def.Activities...)}
		}
		return r.FirstLeaf(def, inst, act.Sequence.Activities[act.Sequence.CurrentIndex])
	case model.ACTIVITY_TYPE_PARALLEL:
		r.enterContainer(inst, act)
		if act.Parallel == nil {
			act.Parallel = &model.ParallelState{State: model.PARALLEL_STATE_RUNNING, Activities: append([]string{}, act.Def.Activities...)}
		}
		for _, member := range act.Parallel.Activities {
			if !util.Contains(act.Parallel.Completed, member) {
				return r.FirstLeaf(def, inst, member)
			}
		}
		// every member already done, the parallel completes in place
		act.Parallel.State = model.PARALLEL_STATE_COMPLETED
		markCompleted(act)
		r.pop(inst)
		return r.NextAfterLeaf(def, inst, ref)
	case model.ACTIVITY_TYPE_BRANCH:
		cond, err := r.evaluator.EvaluateCondition(act.Def.Condition, inst)
		if err != nil {
			return "", err
		}
		if cond {
			r.enterContainer(inst, act)
			act.Choice = &model.ChoiceState{Outcome: "then", Next: act.Def.Then}
			return r.FirstLeaf(def, inst, act.Def.Then)
		}
		if act.Def.Else != "" {
			r.enterContainer(inst, act)
			act.Choice = &model.ChoiceState{Outcome: "else", Next: act.Def.Else}
			return r.FirstLeaf(def, inst, act.Def.Else)
		}
		// false with no else: the branch completes with no successor and
		// routing falls through to whatever contains it
		act.Choice = &model.ChoiceState{Outcome: "else"}
		markCompleted(act)
		return r.NextAfterLeaf(def, inst, ref)
	case model.ACTIVITY_TYPE_SWITCH:
		value, err := r.evaluator.EvaluateExpression(act.Def.Expression, inst)
		if err != nil {
			return "", err
		}
		matched := jpel.CanonicalString(value)
		target, ok := act.Def.Cases[matched]
		outcome := matched
		if !ok {
			if act.Def.Default == "" {
				return "", model.NoMatchingCaseError{ActivityId: ref, Value: matched}
			}
			target = act.Def.Default
			outcome = "default"
		}
		r.enterContainer(inst, act)
		act.Choice = &model.ChoiceState{Outcome: outcome, Next: target}
		return r.FirstLeaf(def, inst, target)
	default:
		return ref, nil
	}
}

// NextAfterLeaf routes onward after completedId finished, unwinding the
// container stack. It returns "" when no container routes further, which
// signals process completion.
func (r *Resolver) NextAfterLeaf(def *model.ProcessDefinition, inst *model.ProcessInstance, completedId string) (string, error) {
	for len(inst.Stack) > 0 {
		top := &inst.Stack[len(inst.Stack)-1]
		cont, ok := inst.Activities[top.ActivityId]
		if !ok {
			return "", model.ActivityNotFoundError{InstanceId: inst.Id, ActivityId: top.ActivityId}
		}
		switch cont.Def.Type {
		case model.ACTIVITY_TYPE_SEQUENCE:
			seq := cont.Sequence
			if seq.CurrentIndex+1 < len(seq.Activities) {
				seq.CurrentIndex++
				top.Position = seq.CurrentIndex
				return r.FirstLeaf(def, inst, seq.Activities[seq.CurrentIndex])
			}
			markCompleted(cont)
			r.pop(inst)
			completedId = cont.Id
		case model.ACTIVITY_TYPE_PARALLEL:
			par := cont.Parallel
			if !util.Contains(par.Completed, completedId) {
				par.Completed = append(par.Completed, completedId)
			}
			for _, member := range par.Activities {
				if !util.Contains(par.Completed, member) {
					return r.FirstLeaf(def, inst, member)
				}
			}
			par.State = model.PARALLEL_STATE_COMPLETED
			markCompleted(cont)
			r.pop(inst)
			completedId = cont.Id
		case model.ACTIVITY_TYPE_BRANCH, model.ACTIVITY_TYPE_SWITCH:
			markCompleted(cont)
			r.pop(inst)
			completedId = cont.Id
		default:
			return "", fmt.Errorf("activity %s on container stack is not a container", cont.Id)
		}
	}
	return "", nil
}

// Replay walks the definition from its start, skipping leaves that are
// already Completed, and stops at the first leaf that still needs work. It
// rebuilds the frame stack on the given instance as it goes. Returns ""
// when the whole definition is already complete.
func (r *Resolver) Replay(def *model.ProcessDefinition, inst *model.ProcessInstance) (string, error) {
	inst.Stack = nil
	cur, err := r.FirstLeaf(def, inst, def.StartActivity)
	if err != nil {
		return "", err
	}
	for cur != "" {
		act := inst.Activities[cur]
		if act.Status != model.ACTIVITY_COMPLETED {
			return cur, nil
		}
		cur, err = r.NextAfterLeaf(def, inst, cur)
		if err != nil {
			return "", err
		}
	}
	return "", nil
}

// Plan is the read-only fast-forward planner: it replays routing decisions
// on a deep copy of the snapshot, never mutating live state or re-executing
// side effects, and returns the leaf the engine would run next.
func (r *Resolver) Plan(def *model.ProcessDefinition, inst *model.ProcessInstance) (string, error) {
	codec := util.NewJsonEncoderDecoder[model.ProcessInstance]()
	data, err := codec.Encode(*inst)
	if err != nil {
		return "", err
	}
	clone, err := codec.Decode(data)
	if err != nil {
		return "", err
	}
	return r.Replay(def, clone)
}

func (r *Resolver) enterContainer(inst *model.ProcessInstance, act *model.ActivityInstance) {
	if act.Status == model.ACTIVITY_PENDING {
		act.Status = model.ACTIVITY_RUNNING
		now := time.Now()
		act.StartedAt = &now
	}
	for _, frame := range inst.Stack {
		if frame.ActivityId == act.Id {
			return
		}
	}
	parent := ""
	if len(inst.Stack) > 0 {
		parent = inst.Stack[len(inst.Stack)-1].ActivityId
	}
	position := 0
	if act.Sequence != nil {
		position = act.Sequence.CurrentIndex
	}
	inst.Stack = append(inst.Stack, model.ExecutionFrame{ActivityId: act.Id, ParentId: parent, Position: position})
}

func (r *Resolver) pop(inst *model.ProcessInstance) {
	if len(inst.Stack) > 0 {
		inst.Stack = inst.Stack[:len(inst.Stack)-1]
	}
}

func markCompleted(act *model.ActivityInstance) {
	act.Status = model.ACTIVITY_COMPLETED
	now := time.Now()
	act.CompletedAt = &now
}
