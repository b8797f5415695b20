package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/blkout/ivor-core/internal/core/services"
)

// RetryExecutor re-runs one handler for one event
type RetryExecutor interface {
	ExecuteRetry(ctx context.Context, eventID, registrationID string) error
}

// Worker processes handler retry tasks from the task queue.
// Each task carries a single attempt; a failed retry is final.
type Worker struct {
	taskQueue driven.TaskQueue
	retries   RetryExecutor
	sweeper   *services.Sweeper
	onResult  func(domain.TaskResult)
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue driven.TaskQueue
	Retries   RetryExecutor
	Sweeper   *services.Sweeper // Optional: started and stopped with the worker
	// OnResult is called after every task with its outcome. Optional.
	OnResult       func(domain.TaskResult)
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		retries:        cfg.Retries,
		sweeper:        cfg.Sweeper,
		onResult:       cfg.OnResult,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.sweeper != nil {
		if err := w.sweeper.Start(ctx); err != nil {
			w.logger.Error("failed to start recovery sweeper", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.sweeper != nil {
		w.sweeper.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs a single task and acks or nacks it.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "event_id", task.EventID())
	logger.Info("processing task", "attempt", task.Attempts)

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeHandlerRetry:
		err = w.handleRetry(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)
	result := domain.TaskResult{
		TaskID:   task.ID,
		Type:     task.Type,
		EventID:  task.EventID(),
		Success:  err == nil,
		Duration: duration,
	}

	if err != nil {
		result.Error = err.Error()
		logger.Error("task failed",
			"duration", duration,
			"registration_id", task.RegistrationID(),
			"error", err,
		)

		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
	} else {
		logger.Info("task completed", "duration", duration)

		if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
			logger.Error("failed to ack task", "ack_error", ackErr)
		}
	}

	if w.onResult != nil {
		w.onResult(result)
	}
}

// handleRetry handles a handler_retry task.
func (w *Worker) handleRetry(ctx context.Context, task *domain.Task) error {
	eventID := task.EventID()
	registrationID := task.RegistrationID()
	if eventID == "" || registrationID == "" {
		return fmt.Errorf("event_id and registration_id are required in task payload")
	}
	if w.retries == nil {
		return fmt.Errorf("no retry executor configured")
	}
	return w.retries.ExecuteRetry(ctx, eventID, registrationID)
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
