package persistence

import (
	"time"

	"github.com/harishgarg/procflow/model"
)

// InstanceStorage is the repository boundary for process instances. The
// engine treats every implementation as interchangeable; a crash between
// saves leaves a well-formed snapshot, never a half-applied one.
type InstanceStorage interface {
	SaveProcessInstance(inst model.ProcessInstance) error
	GetProcessInstance(id string) (*model.ProcessInstance, error)
	DeleteProcessInstance(id string) error
	GetAllProcessInstances() ([]model.ProcessInstance, error)
	FindByState(state model.InstanceState) ([]model.ProcessInstance, error)
	FindByProcess(processId string) ([]model.ProcessInstance, error)
	Count() (int, error)
	// DeleteCompletedBefore removes terminal instances older than the cutoff
	// and reports how many were dropped.
	DeleteCompletedBefore(cutoff time.Time) (int, error)
}
