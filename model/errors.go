package model

import (
	"fmt"
	"strings"
)

type DefinitionInvalidError struct {
	ProcessId string
	Errors    []string
}

func (e DefinitionInvalidError) Error() string {
	return fmt.Sprintf("process definition %s invalid: %s", e.ProcessId, strings.Join(e.Errors, "; "))
}

type InstanceNotFoundError struct {
	Id string
}

func (e InstanceNotFoundError) Error() string {
	return fmt.Sprintf("process instance %s not found", e.Id)
}

type ActivityNotFoundError struct {
	InstanceId string
	ActivityId string
}

func (e ActivityNotFoundError) Error() string {
	return fmt.Sprintf("activity %s not found in instance %s", e.ActivityId, e.InstanceId)
}

type ActivityNotWaitingError struct {
	ActivityId string
	Status     ActivityState
}

func (e ActivityNotWaitingError) Error() string {
	return fmt.Sprintf("activity %s is not waiting for input, status is %s", e.ActivityId, e.Status)
}

type FieldValidationError struct {
	ActivityId string
	Failures   []string
}

func (e FieldValidationError) Error() string {
	return fmt.Sprintf("activity %s failed: validation rejected submission: %s", e.ActivityId, strings.Join(e.Failures, "; "))
}

type ExpressionError struct {
	Expression string
	Cause      error
}

func (e ExpressionError) Error() string {
	return fmt.Sprintf("expression evaluation failed for %q: %v", e.Expression, e.Cause)
}

func (e ExpressionError) Unwrap() error {
	return e.Cause
}

type NoMatchingCaseError struct {
	ActivityId string
	Value      string
}

func (e NoMatchingCaseError) Error() string {
	return fmt.Sprintf("activity %s failed: no case matches value %q and no default target", e.ActivityId, e.Value)
}

type UnknownActivityTypeError struct {
	ActivityId string
	Type       ActivityType
}

func (e UnknownActivityTypeError) Error() string {
	return fmt.Sprintf("activity %s failed: unknown activity type %q", e.ActivityId, e.Type)
}

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}
