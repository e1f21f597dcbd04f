package util

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/logger"
)

type Task any

// Worker runs handler for every task sent to it, one at a time and in send order. Tasks
// already queued when Stop is called are still handled before the worker exits.
type Worker struct {
	name    string
	stop    chan struct{}
	wg      *sync.WaitGroup
	handler func(Task) error
	tasks   chan Task
}

func NewWorker(name string, wg *sync.WaitGroup, handler func(Task) error, capacity int) *Worker {
	return &Worker{
		name:    name,
		stop:    make(chan struct{}),
		wg:      wg,
		handler: handler,
		tasks:   make(chan Task, capacity),
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case task := <-w.tasks:
				w.handle(task)
			case <-w.stop:
				w.drain()
				logger.Info("stopping worker", zap.String("worker", w.name))
				return
			}
		}
	}()
}

func (w *Worker) drain() {
	for {
		select {
		case task := <-w.tasks:
			w.handle(task)
		default:
			return
		}
	}
}

func (w *Worker) handle(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker task panicked", zap.String("worker", w.name), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := w.handler(task); err != nil {
		logger.Error("error in executing task in worker", zap.String("worker", w.name), zap.Any("task", task), zap.Error(err))
	}
}

func (w *Worker) Sender() chan<- Task {
	return w.tasks
}

// Pending is the number of queued tasks not yet picked up.
func (w *Worker) Pending() int {
	return len(w.tasks)
}

func (w *Worker) Stop() {
	close(w.stop)
}
