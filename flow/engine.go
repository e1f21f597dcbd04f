package flow

import (
	"github.com/luximus/flowbot/analytics"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/util"
)

const DATA_RUN_ID = "run_id"

const DefaultUsageHint = "Comando inválido. Use 'iniciar', 'continuar', 'cancelar' ou 'reiniciar'."

type Dependencies struct {
	Registry  *Registry
	FlowDao   persistence.FlowDao
	Subjects  Subjects
	Messenger Messenger
	Collector analytics.WorkflowDataCollector
}

// Engine hands out controllers for (kind, subject) pairs. Commands on the same pair are
// serialised; commands on different pairs run independently.
type Engine struct {
	registry  *Registry
	flowDao   persistence.FlowDao
	subjects  Subjects
	messenger Messenger
	collector analytics.WorkflowDataCollector
	handlers  *StateHandlerContainer
	locks     *util.KeyLock
}

func NewEngine(deps Dependencies) *Engine {
	collector := deps.Collector
	if collector == nil {
		collector = analytics.NoopDataCollector{}
	}
	return &Engine{
		registry:  deps.Registry,
		flowDao:   deps.FlowDao,
		subjects:  deps.Subjects,
		messenger: deps.Messenger,
		collector: collector,
		handlers:  NewStateHandlerContainer(deps.FlowDao),
		locks:     util.NewKeyLock(util.DefaultLockStripes),
	}
}

func (e *Engine) Flow(kind string, subjectId string) (*Controller, error) {
	def, err := e.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	return &Controller{
		engine:     e,
		definition: def,
		subjectId:  subjectId,
	}, nil
}

func (e *Engine) Registry() *Registry {
	return e.registry
}
