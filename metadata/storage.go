package metadata

import "github.com/harishgarg/procflow/model"

type MetadataStorage interface {
	SaveProcessDefinition(def model.ProcessDefinition) error
	DeleteProcessDefinition(id string) error
	GetProcessDefinition(id string) (*model.ProcessDefinition, error)
	GetAllProcessDefinitions() ([]model.ProcessDefinition, error)
	ExistsProcessDefinition(id string) (bool, error)
}
