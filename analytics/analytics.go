package analytics

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const PROMETHEUS_DATA_COLLECTOR DataCollectorType = "prometheus"
const NOOP_DATA_COLLECTOR DataCollectorType = "none"

// WorkflowDataCollector receives one record per executed step and per handled command.
type WorkflowDataCollector interface {
	RecordStepSuccess(flowKind string, subjectId string, stepName string, step int, data map[string]any)
	RecordStepFailure(flowKind string, subjectId string, stepName string, step int, reason string)
	RecordCommand(flowKind string, command string, outcome string)
}

func NewDataCollector(config DataCollectorConfig) (WorkflowDataCollector, error) {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		return NewLogFileDataCollector(config.FileName)
	case PROMETHEUS_DATA_COLLECTOR:
		return NewPrometheusDataCollector(), nil
	default:
		return NoopDataCollector{}, nil
	}
}

type NoopDataCollector struct{}

func (NoopDataCollector) RecordStepSuccess(string, string, string, int, map[string]any) {}
func (NoopDataCollector) RecordStepFailure(string, string, string, int, string)         {}
func (NoopDataCollector) RecordCommand(string, string, string)                          {}
