package inmem

import (
	"testing"
	"time"

	"github.com/harishgarg/procflow/model"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, storage *Storage,
	){
		"definition round trip":     testDefinitionRoundTrip,
		"instance round trip":       testInstanceRoundTrip,
		"reads hand out copies":     testReadsAreCopies,
		"find by state and process": testFind,
		"retention cleanup":         testRetention,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewStorage())
		})
	}
}

func testDefinitionRoundTrip(t *testing.T, storage *Storage) {
	def := model.ProcessDefinition{Id: "p1", Name: "p1", StartActivity: "a",
		Activities: map[string]*model.ActivityDef{"a": {Id: "a", Type: model.ACTIVITY_TYPE_COMPUTE, Script: []string{"1"}}}}
	require.NoError(t, storage.SaveProcessDefinition(def))

	got, err := storage.GetProcessDefinition("p1")
	require.NoError(t, err)
	require.Equal(t, def, *got)

	exists, err := storage.ExistsProcessDefinition("p1")
	require.NoError(t, err)
	require.True(t, exists)

	all, err := storage.GetAllProcessDefinitions()
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, storage.DeleteProcessDefinition("p1"))
	_, err = storage.GetProcessDefinition("p1")
	require.Error(t, err)
}

func testInstanceRoundTrip(t *testing.T, storage *Storage) {
	inst := model.ProcessInstance{Id: "i1", ProcessId: "p1", State: model.INSTANCE_RUNNING,
		Variables: map[string]any{"x": "y"}, Activities: map[string]*model.ActivityInstance{}}
	require.NoError(t, storage.SaveProcessInstance(inst))

	got, err := storage.GetProcessInstance("i1")
	require.NoError(t, err)
	require.Equal(t, "y", got.Variables["x"])

	_, err = storage.GetProcessInstance("nope")
	var notFound model.InstanceNotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, storage.DeleteProcessInstance("i1"))
	require.ErrorAs(t, storage.DeleteProcessInstance("i1"), &notFound)
}

func testReadsAreCopies(t *testing.T, storage *Storage) {
	inst := model.ProcessInstance{Id: "i1", ProcessId: "p1", State: model.INSTANCE_RUNNING,
		Variables: map[string]any{"x": "original"}, Activities: map[string]*model.ActivityInstance{}}
	require.NoError(t, storage.SaveProcessInstance(inst))

	first, err := storage.GetProcessInstance("i1")
	require.NoError(t, err)
	first.Variables["x"] = "mutated"

	second, err := storage.GetProcessInstance("i1")
	require.NoError(t, err)
	require.Equal(t, "original", second.Variables["x"])
}

func testFind(t *testing.T, storage *Storage) {
	for _, inst := range []model.ProcessInstance{
		{Id: "i1", ProcessId: "p1", State: model.INSTANCE_RUNNING},
		{Id: "i2", ProcessId: "p1", State: model.INSTANCE_COMPLETED},
		{Id: "i3", ProcessId: "p2", State: model.INSTANCE_RUNNING},
	} {
		require.NoError(t, storage.SaveProcessInstance(inst))
	}

	running, err := storage.FindByState(model.INSTANCE_RUNNING)
	require.NoError(t, err)
	require.Len(t, running, 2)

	byProc, err := storage.FindByProcess("p1")
	require.NoError(t, err)
	require.Len(t, byProc, 2)

	count, err := storage.Count()
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func testRetention(t *testing.T, storage *Storage) {
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	for _, inst := range []model.ProcessInstance{
		{Id: "i1", State: model.INSTANCE_COMPLETED, CompletedAt: &old},
		{Id: "i2", State: model.INSTANCE_FAILED, CompletedAt: &old},
		{Id: "i3", State: model.INSTANCE_COMPLETED, CompletedAt: &recent},
		{Id: "i4", State: model.INSTANCE_RUNNING},
	} {
		require.NoError(t, storage.SaveProcessInstance(inst))
	}

	deleted, err := storage.DeleteCompletedBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	count, err := storage.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
