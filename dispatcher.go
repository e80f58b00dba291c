package loyalty

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"goflare.io/loyalty/models"
)

var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Dispatcher shards phone change events over a fixed set of workers by user
// id, so events for one user are applied in the order they were submitted.
type Dispatcher struct {
	workers []*Worker
	wg      sync.WaitGroup
	logger  *zap.Logger

	mu      sync.RWMutex
	running bool
	stopped bool
}

func NewDispatcher(maxWorkers, jobQueueSize int, handler PhoneChangeHandler, logger *zap.Logger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if jobQueueSize < 1 {
		jobQueueSize = 1
	}

	d := &Dispatcher{logger: logger}
	for i := 0; i < maxWorkers; i++ {
		d.workers = append(d.workers, NewWorker(i+1, jobQueueSize, handler, logger))
	}
	return d
}

func (d *Dispatcher) Run() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.stopped {
		return
	}
	d.running = true

	for _, worker := range d.workers {
		worker.Start(&d.wg)
	}
	d.logger.Info("phone change dispatcher started", zap.Int("workers", len(d.workers)))
}

func (d *Dispatcher) shard(userID string) *Worker {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return d.workers[h.Sum32()%uint32(len(d.workers))]
}

// Submit queues event on its user's worker, blocking while that queue is full.
func (d *Dispatcher) Submit(ctx context.Context, phoneChanged *models.PhoneChangedEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	// ctx bounds the wait for queue space only; the queued job must outlive
	// the request that submitted it.
	job := WorkRequest{Event: phoneChanged, Ctx: context.WithoutCancel(ctx)}

	worker := d.shard(phoneChanged.UserID)
	select {
	case worker.JobChannel <- job:
		return nil
	case <-ctx.Done():
		d.logger.Warn("Job context canceled while waiting for available worker",
			zap.Error(ctx.Err()),
			zap.String("event_id", phoneChanged.EventID))
		return ctx.Err()
	}
}

// Stop refuses new events and waits for queued ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, worker := range d.workers {
		worker.Stop()
	}
	running := d.running
	d.mu.Unlock()

	if running {
		d.wg.Wait()
	}
	d.logger.Info("phone change dispatcher stopped")
}
