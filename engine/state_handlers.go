package engine

import (
	"strings"

	"github.com/harishgarg/procflow/flow"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/persistence"
	"go.uber.org/zap"
)

// StateHandlerContainer holds the terminal-state callbacks a definition can
// name through onSuccess/onFailure.
type StateHandlerContainer struct {
	handlers map[flow.Statehandler]func(instanceId string) error
	storage  persistence.InstanceStorage
}

func NewStateHandlerContainer(storage persistence.InstanceStorage) *StateHandlerContainer {
	hd := &StateHandlerContainer{
		storage:  storage,
		handlers: make(map[flow.Statehandler]func(instanceId string) error, 2),
	}
	hd.handlers[flow.DELETE] = hd.delete
	hd.handlers[flow.NOOP] = hd.noop
	return hd
}

func (s *StateHandlerContainer) GetHandler(st flow.Statehandler) func(instanceId string) error {
	handler, ok := s.handlers[flow.Statehandler(strings.ToUpper(string(st)))]
	if ok {
		return handler
	}
	return s.noop
}

func (s *StateHandlerContainer) delete(instanceId string) error {
	return s.storage.DeleteProcessInstance(instanceId)
}

func (s *StateHandlerContainer) noop(instanceId string) error {
	logger.Info("noop handler called", zap.String("instanceId", instanceId))
	return nil
}
