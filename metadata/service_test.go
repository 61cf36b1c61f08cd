package metadata

import (
	"testing"

	"github.com/harishgarg/procflow/model"
	"github.com/stretchr/testify/require"
)

type countingStorage struct {
	defs map[string]model.ProcessDefinition
	gets int
}

func newCountingStorage() *countingStorage {
	return &countingStorage{defs: make(map[string]model.ProcessDefinition)}
}

func (s *countingStorage) SaveProcessDefinition(def model.ProcessDefinition) error {
	s.defs[def.Id] = def
	return nil
}

func (s *countingStorage) DeleteProcessDefinition(id string) error {
	delete(s.defs, id)
	return nil
}

func (s *countingStorage) GetProcessDefinition(id string) (*model.ProcessDefinition, error) {
	s.gets++
	def, ok := s.defs[id]
	if !ok {
		return nil, model.StorageLayerError{Message: "process definition " + id + " not found"}
	}
	return &def, nil
}

func (s *countingStorage) GetAllProcessDefinitions() ([]model.ProcessDefinition, error) {
	out := make([]model.ProcessDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	return out, nil
}

func (s *countingStorage) ExistsProcessDefinition(id string) (bool, error) {
	_, ok := s.defs[id]
	return ok, nil
}

func TestMetadataService(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, svc MetadataService, storage *countingStorage,
	){
		"save validates and normalizes": testSaveValidatesAndNormalizes,
		"invalid definition rejected":   testInvalidRejected,
		"reads go through the cache":    testCachedReads,
		"delete evicts the cache":       testDeleteEvicts,
	} {
		t.Run(scenario, func(t *testing.T) {
			storage := newCountingStorage()
			fn(t, NewMetadataService(storage), storage)
		})
	}
}

func testSaveValidatesAndNormalizes(t *testing.T, svc MetadataService, storage *countingStorage) {
	def := *validDef()
	def.Activities["form"].Id = "stale"
	def.Activities["form"].Fields[0].Type = "int"

	result, err := svc.SaveProcessDefinition(def)
	require.NoError(t, err)
	require.True(t, result.Valid)

	stored := storage.defs["order"]
	require.Equal(t, "form", stored.Activities["form"].Id)
	require.Equal(t, model.FIELD_TYPE_NUMBER, stored.Activities["form"].Fields[0].Type)
}

func testInvalidRejected(t *testing.T, svc MetadataService, storage *countingStorage) {
	def := *validDef()
	def.StartActivity = "ghost"

	result, err := svc.SaveProcessDefinition(def)
	var invalid model.DefinitionInvalidError
	require.ErrorAs(t, err, &invalid)
	require.False(t, result.Valid)
	require.Empty(t, storage.defs)
}

func testCachedReads(t *testing.T, svc MetadataService, storage *countingStorage) {
	_, err := svc.SaveProcessDefinition(*validDef())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		def, err := svc.GetProcessDefinition("order")
		require.NoError(t, err)
		require.Equal(t, "order", def.Id)
	}
	require.Equal(t, 1, storage.gets)
}

func testDeleteEvicts(t *testing.T, svc MetadataService, storage *countingStorage) {
	_, err := svc.SaveProcessDefinition(*validDef())
	require.NoError(t, err)
	_, err = svc.GetProcessDefinition("order")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProcessDefinition("order"))
	_, err = svc.GetProcessDefinition("order")
	require.Error(t, err)
}
