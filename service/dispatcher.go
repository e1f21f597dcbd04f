package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/flow"
	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/util"
)

const DefaultDispatchPartitions = 8
const DefaultDispatchCapacity = 128
const DefaultDispatchTimeout = 2 * time.Minute

var ErrQueueFull = errors.New("webhook queue is full")

type WebhookHandler interface {
	HandleWebhook(ctx context.Context, ev model.WebhookEvent) (*model.Result, error)
}

// WebhookDispatcher acknowledges gateway callbacks right away and processes them on a fixed
// set of workers. Events from one sender always land on the same worker, so a user's
// messages are handled in arrival order.
type WebhookDispatcher struct {
	handler WebhookHandler
	workers []*util.Worker
	timeout time.Duration
	wg      *sync.WaitGroup
}

func NewWebhookDispatcher(handler WebhookHandler, partitions int, capacity int, timeout time.Duration, wg *sync.WaitGroup) *WebhookDispatcher {
	if partitions <= 0 {
		partitions = DefaultDispatchPartitions
	}
	if capacity <= 0 {
		capacity = DefaultDispatchCapacity
	}
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	d := &WebhookDispatcher{
		handler: handler,
		timeout: timeout,
		wg:      wg,
	}
	for i := 0; i < partitions; i++ {
		d.workers = append(d.workers, util.NewWorker(fmt.Sprintf("webhook-%d", i), wg, d.handle, capacity))
	}
	return d
}

func (d *WebhookDispatcher) Start() {
	for _, w := range d.workers {
		w.Start()
	}
}

func (d *WebhookDispatcher) Stop() error {
	for _, w := range d.workers {
		w.Stop()
	}
	return nil
}

// Dispatch queues ev on its sender's worker without blocking.
func (d *WebhookDispatcher) Dispatch(ev model.WebhookEvent) error {
	idx := util.Partition(len(d.workers), ev.Session, ev.From)
	select {
	case d.workers[idx].Sender() <- ev:
		return nil
	default:
		logger.Warn("dropping webhook event", zap.String("event", ev.Event), zap.String("from", ev.From), zap.Int("worker", idx))
		return ErrQueueFull
	}
}

func (d *WebhookDispatcher) handle(task util.Task) error {
	ev, ok := task.(model.WebhookEvent)
	if !ok {
		return fmt.Errorf("unexpected webhook task %T", task)
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	_, err := d.handler.HandleWebhook(ctx, ev)
	if errors.Is(err, flow.ErrInvalidCommand) {
		// the subject already got the usage hint
		return nil
	}
	return err
}
