package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/integration"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/util"
)

const DefaultSweepInterval = 5 * time.Minute

// MarkerSweeper clears integration markers left behind by flows that are no longer running,
// e.g. when the flow state expired while the user was away.
type MarkerSweeper struct {
	engine *flow.Engine
	users  persistence.UserDao
	worker *util.TickWorker
}

func NewMarkerSweeper(engine *flow.Engine, users persistence.UserDao, interval time.Duration, wg *sync.WaitGroup) *MarkerSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &MarkerSweeper{engine: engine, users: users}
	s.worker = util.NewTickWorker("marker-sweeper", interval, func(ctx context.Context) {
		if _, err := s.Sweep(ctx); err != nil {
			logger.Error("marker sweep failed", zap.Error(err))
		}
	}, wg)
	return s
}

func (s *MarkerSweeper) Start() {
	s.worker.Start()
}

func (s *MarkerSweeper) Stop() {
	s.worker.Stop()
}

// Sweep clears stale markers once and returns the ids of the users it touched.
func (s *MarkerSweeper) Sweep(ctx context.Context) ([]string, error) {
	users, err := s.users.ListRunningIntegrations(ctx)
	if err != nil {
		return nil, err
	}
	var cleared []string
	for _, user := range users {
		stale, err := s.isStale(ctx, user)
		if err != nil {
			logger.Error("checking integration marker", zap.String("user", user.Id), zap.String("marker", user.IntegrationRunning), zap.Error(err))
			continue
		}
		if !stale {
			continue
		}
		if _, err := s.users.UpdateUser(ctx, user.Id, model.UserUpdate{IntegrationRunning: model.String("")}); err != nil {
			logger.Error("clearing integration marker", zap.String("user", user.Id), zap.Error(err))
			continue
		}
		logger.Info("cleared stale integration marker", zap.String("user", user.Id), zap.String("marker", user.IntegrationRunning))
		cleared = append(cleared, user.Id)
	}
	return cleared, nil
}

func (s *MarkerSweeper) isStale(ctx context.Context, user *model.User) (bool, error) {
	kind, ok := integration.FlowForMarker(user.IntegrationRunning)
	if !ok {
		return true, nil
	}
	controller, err := s.engine.Flow(kind, user.Id)
	if err != nil {
		return false, err
	}
	st, err := controller.Load(ctx)
	if err != nil {
		return false, err
	}
	return !st.IsRunning, nil
}
