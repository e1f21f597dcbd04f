package util

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/logger"
)

// TickWorker runs fn every interval until stopped. A tick that is still running when the
// next one is due delays it rather than overlapping.
type TickWorker struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	wg       *sync.WaitGroup
	stop     chan struct{}
	once     sync.Once
	running  atomic.Bool
}

func NewTickWorker(name string, interval time.Duration, fn func(ctx context.Context), wg *sync.WaitGroup) *TickWorker {
	return &TickWorker{
		name:     name,
		interval: interval,
		fn:       fn,
		wg:       wg,
		stop:     make(chan struct{}),
	}
}

func (tw *TickWorker) Start() {
	ticker := time.NewTicker(tw.interval)
	ctx, cancel := context.WithCancel(context.Background())
	tw.running.Store(true)
	tw.wg.Add(1)
	go func() {
		defer tw.wg.Done()
		defer cancel()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tw.fn(ctx)
			case <-tw.stop:
				logger.Info("stopping tick worker", zap.String("worker", tw.name))
				tw.running.Store(false)
				return
			}
		}
	}()
	logger.Info("tick worker started", zap.String("worker", tw.name), zap.Duration("interval", tw.interval))
}

// Stop is safe to call more than once.
func (tw *TickWorker) Stop() {
	tw.once.Do(func() { close(tw.stop) })
}

func (tw *TickWorker) IsRunning() bool {
	return tw.running.Load()
}
