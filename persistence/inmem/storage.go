package inmem

import (
	"sync"
	"time"

	"github.com/harishgarg/procflow/metadata"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/persistence"
	"github.com/harishgarg/procflow/util"
)

var _ persistence.InstanceStorage = new(Storage)
var _ metadata.MetadataStorage = new(Storage)

// Storage keeps definitions and instances in process memory. Values are
// stored JSON-encoded so that reads hand out copies, same as the external
// backends.
type Storage struct {
	mu          sync.RWMutex
	definitions map[string][]byte
	instances   map[string][]byte

	defCodec  util.EncoderDecoder[model.ProcessDefinition]
	instCodec util.EncoderDecoder[model.ProcessInstance]
}

func NewStorage() *Storage {
	return &Storage{
		definitions: make(map[string][]byte),
		instances:   make(map[string][]byte),
		defCodec:    util.NewJsonEncoderDecoder[model.ProcessDefinition](),
		instCodec:   util.NewJsonEncoderDecoder[model.ProcessInstance](),
	}
}

func (s *Storage) SaveProcessDefinition(def model.ProcessDefinition) error {
	data, err := s.defCodec.Encode(def)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[def.Id] = data
	return nil
}

func (s *Storage) DeleteProcessDefinition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[id]; !ok {
		return model.StorageLayerError{Message: "process definition " + id + " not found"}
	}
	delete(s.definitions, id)
	return nil
}

func (s *Storage) GetProcessDefinition(id string) (*model.ProcessDefinition, error) {
	s.mu.RLock()
	data, ok := s.definitions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, model.StorageLayerError{Message: "process definition " + id + " not found"}
	}
	return s.defCodec.Decode(data)
}

func (s *Storage) GetAllProcessDefinitions() ([]model.ProcessDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ProcessDefinition, 0, len(s.definitions))
	for _, data := range s.definitions {
		def, err := s.defCodec.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, nil
}

func (s *Storage) ExistsProcessDefinition(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.definitions[id]
	return ok, nil
}

func (s *Storage) SaveProcessInstance(inst model.ProcessInstance) error {
	data, err := s.instCodec.Encode(inst)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.Id] = data
	return nil
}

func (s *Storage) GetProcessInstance(id string) (*model.ProcessInstance, error) {
	s.mu.RLock()
	data, ok := s.instances[id]
	s.mu.RUnlock()
	if !ok {
		return nil, model.InstanceNotFoundError{Id: id}
	}
	return s.instCodec.Decode(data)
}

func (s *Storage) DeleteProcessInstance(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		return model.InstanceNotFoundError{Id: id}
	}
	delete(s.instances, id)
	return nil
}

func (s *Storage) GetAllProcessInstances() ([]model.ProcessInstance, error) {
	return s.filterInstances(func(*model.ProcessInstance) bool { return true })
}

func (s *Storage) FindByState(state model.InstanceState) ([]model.ProcessInstance, error) {
	return s.filterInstances(func(inst *model.ProcessInstance) bool {
		return inst.State == state
	})
}

func (s *Storage) FindByProcess(processId string) ([]model.ProcessInstance, error) {
	return s.filterInstances(func(inst *model.ProcessInstance) bool {
		return inst.ProcessId == processId
	})
}

func (s *Storage) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances), nil
}

func (s *Storage) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, data := range s.instances {
		inst, err := s.instCodec.Decode(data)
		if err != nil {
			return deleted, err
		}
		if inst.State == model.INSTANCE_RUNNING {
			continue
		}
		if inst.CompletedAt != nil && inst.CompletedAt.Before(cutoff) {
			delete(s.instances, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Storage) filterInstances(keep func(*model.ProcessInstance) bool) ([]model.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ProcessInstance
	for _, data := range s.instances {
		inst, err := s.instCodec.Decode(data)
		if err != nil {
			return nil, err
		}
		if keep(inst) {
			out = append(out, *inst)
		}
	}
	return out, nil
}
