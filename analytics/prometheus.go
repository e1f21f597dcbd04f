package analytics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowbot"

var (
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_steps_total",
			Help:      "Total number of executed flow steps",
		},
		[]string{"flow", "step", "status"}, // status: success, failure
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_commands_total",
			Help:      "Total number of flow commands handled",
		},
		[]string{"flow", "command", "outcome"},
	)

	registerOnce sync.Once
)

type PrometheusDataCollector struct{}

// NewPrometheusDataCollector registers the flow metrics with the default registry once.
func NewPrometheusDataCollector() *PrometheusDataCollector {
	registerOnce.Do(func() {
		prometheus.MustRegister(stepsTotal, commandsTotal)
	})
	return &PrometheusDataCollector{}
}

func (PrometheusDataCollector) RecordStepSuccess(flowKind string, subjectId string, stepName string, step int, data map[string]any) {
	stepsTotal.WithLabelValues(flowKind, stepName, "success").Inc()
}

func (PrometheusDataCollector) RecordStepFailure(flowKind string, subjectId string, stepName string, step int, reason string) {
	stepsTotal.WithLabelValues(flowKind, stepName, "failure").Inc()
}

func (PrometheusDataCollector) RecordCommand(flowKind string, command string, outcome string) {
	commandsTotal.WithLabelValues(flowKind, command, outcome).Inc()
}
