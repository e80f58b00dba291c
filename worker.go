package loyalty

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"goflare.io/loyalty/models"
)

type PhoneChangeHandler func(context.Context, *models.PhoneChangedEvent) error

type WorkRequest struct {
	Event *models.PhoneChangedEvent
	Ctx   context.Context
}

// Worker applies the events of its shard one at a time, in arrival order.
type Worker struct {
	ID         int
	JobChannel chan WorkRequest
	handler    PhoneChangeHandler
	logger     *zap.Logger
}

func NewWorker(id, queueSize int, handler PhoneChangeHandler, logger *zap.Logger) *Worker {
	return &Worker{
		ID:         id,
		JobChannel: make(chan WorkRequest, queueSize),
		handler:    handler,
		logger:     logger,
	}
}

// Start runs until JobChannel is closed and drained.
func (w *Worker) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for job := range w.JobChannel {
			w.process(job)
		}
	}()
}

func (w *Worker) process(job WorkRequest) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("phone change handler panicked",
				zap.Int("worker_id", w.ID),
				zap.String("event_id", job.Event.EventID),
				zap.Any("panic", r))
		}
	}()

	if err := job.Ctx.Err(); err != nil {
		w.logger.Warn("Job context canceled before processing",
			zap.Error(err),
			zap.String("event_id", job.Event.EventID))
		return
	}

	w.logger.Debug("processing phone change",
		zap.Int("worker_id", w.ID),
		zap.String("event_id", job.Event.EventID),
		zap.String("owner_id", job.Event.UserID))

	if err := w.handler(job.Ctx, job.Event); err != nil {
		w.logger.Error("failed to process phone change",
			zap.Error(err),
			zap.String("event_id", job.Event.EventID),
			zap.String("owner_id", job.Event.UserID))
	}
}

func (w *Worker) Stop() {
	close(w.JobChannel)
}
