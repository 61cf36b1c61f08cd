package analytics

// Audit trail of execution events, kept apart from operational logging so it
// can be shipped to an analytics pipeline on its own.

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"

type ProcessDataCollector interface {
	RecordActivitySuccess(processId string, instanceId string, activityId string, data map[string]any)
	RecordActivityFailure(processId string, instanceId string, activityId string, reason string)
	RecordProcessEnd(processId string, instanceId string, state string, aggregate string)
}

var processCollector ProcessDataCollector

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		processCollector = c
	}
	return nil
}

func RecordActivitySuccess(processId string, instanceId string, activityId string, data map[string]any) {
	if processCollector == nil {
		return
	}
	processCollector.RecordActivitySuccess(processId, instanceId, activityId, data)
}

func RecordActivityFailure(processId string, instanceId string, activityId string, reason string) {
	if processCollector == nil {
		return
	}
	processCollector.RecordActivityFailure(processId, instanceId, activityId, reason)
}

func RecordProcessEnd(processId string, instanceId string, state string, aggregate string) {
	if processCollector == nil {
		return
	}
	processCollector.RecordProcessEnd(processId, instanceId, state, aggregate)
}
