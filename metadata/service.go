package metadata

import (
	"time"

	"github.com/harishgarg/procflow/model"
	c "github.com/patrickmn/go-cache"
)

type MetadataService interface {
	SaveProcessDefinition(def model.ProcessDefinition) (*model.ValidationResult, error)
	GetProcessDefinition(id string) (*model.ProcessDefinition, error)
	DeleteProcessDefinition(id string) error
	ListProcessDefinitions() ([]model.ProcessDefinition, error)
	GetMetadataStorage() MetadataStorage
}

type metadataService struct {
	storage MetadataStorage
	cache   *c.Cache
}

func NewMetadataService(storage MetadataStorage) MetadataService {
	return &metadataService{
		storage: storage,
		cache:   c.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *metadataService) SaveProcessDefinition(def model.ProcessDefinition) (*model.ValidationResult, error) {
	result := Validate(&def)
	if !result.Valid {
		return &result, model.DefinitionInvalidError{ProcessId: def.Id, Errors: result.Errors}
	}
	Normalize(&def)
	if err := s.storage.SaveProcessDefinition(def); err != nil {
		return nil, err
	}
	s.cache.Delete(def.Id)
	return &result, nil
}

func (s *metadataService) GetProcessDefinition(id string) (*model.ProcessDefinition, error) {
	if cached, found := s.cache.Get(id); found {
		def := cached.(model.ProcessDefinition)
		return &def, nil
	}
	def, err := s.storage.GetProcessDefinition(id)
	if err != nil {
		return nil, err
	}
	// the store may hold definitions written before normalization existed
	Normalize(def)
	s.cache.Set(id, *def, c.DefaultExpiration)
	return def, nil
}

func (s *metadataService) DeleteProcessDefinition(id string) error {
	if err := s.storage.DeleteProcessDefinition(id); err != nil {
		return err
	}
	s.cache.Delete(id)
	return nil
}

func (s *metadataService) ListProcessDefinitions() ([]model.ProcessDefinition, error) {
	return s.storage.GetAllProcessDefinitions()
}

func (s *metadataService) GetMetadataStorage() MetadataStorage {
	return s.storage
}
