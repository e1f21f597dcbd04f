package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/persistence"
	"go.uber.org/zap"
)

type Statehandler string

// DELETE purges the flow state as soon as the flow completes, NOOP lets it expire.
const DELETE Statehandler = "DELETE"
const NOOP Statehandler = "NOOP"

func ValidateStateHandler(st string) error {
	if len(st) == 0 || strings.EqualFold(st, string(DELETE)) || strings.EqualFold(st, string(NOOP)) {
		return nil
	}
	return fmt.Errorf("invalid state handler %s", st)
}

type StateHandlerContainer struct {
	handlers map[Statehandler]func(ctx context.Context, flowKind string, subjectId string) error
	flowDao  persistence.FlowDao
}

func NewStateHandlerContainer(flowDao persistence.FlowDao) *StateHandlerContainer {
	hd := &StateHandlerContainer{
		flowDao:  flowDao,
		handlers: make(map[Statehandler]func(ctx context.Context, flowKind string, subjectId string) error, 2),
	}
	hd.handlers[DELETE] = hd.delete
	hd.handlers[NOOP] = hd.noop
	return hd
}

func (s *StateHandlerContainer) GetHandler(st Statehandler) func(ctx context.Context, flowKind string, subjectId string) error {
	handler, ok := s.handlers[Statehandler(strings.ToUpper(string(st)))]
	if ok {
		return handler
	}
	return s.noop
}

func (s *StateHandlerContainer) delete(ctx context.Context, flowKind string, subjectId string) error {
	return s.flowDao.DeleteFlowState(ctx, flowKind, subjectId)
}

func (s *StateHandlerContainer) noop(ctx context.Context, flowKind string, subjectId string) error {
	logger.Debug("noop handler called", zap.String("flow", flowKind), zap.String("subject", subjectId))
	return nil
}
