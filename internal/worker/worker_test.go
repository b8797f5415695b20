package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/blkout/ivor-core/internal/core/ports/driven/mocks"
	"github.com/blkout/ivor-core/internal/core/services"
)

// mockTaskQueue implements driven.TaskQueue for testing
type mockTaskQueue struct {
	mu           sync.Mutex
	tasks        []*domain.Task
	acked        []string
	nacked       []string
	dequeueDelay time.Duration
	dequeueFn    func() (*domain.Task, error)
	ackFn        func(string) error
	nackFn       func(string, string) error
	pingFn       func() error
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{
		tasks: make([]*domain.Task, 0),
	}
}

func (m *mockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if m.dequeueDelay > 0 {
		select {
		case <-time.After(m.dequeueDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.dequeueFn != nil {
		return m.dequeueFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil, nil
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	task.MarkProcessing()
	return task, nil
}

func (m *mockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	m.acked = append(m.acked, taskID)
	m.mu.Unlock()
	if m.ackFn != nil {
		return m.ackFn(taskID)
	}
	return nil
}

func (m *mockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	m.nacked = append(m.nacked, taskID)
	m.mu.Unlock()
	if m.nackFn != nil {
		return m.nackFn(taskID, reason)
	}
	return nil
}

func (m *mockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &driven.QueueStats{PendingCount: int64(len(m.tasks))}, nil
}

func (m *mockTaskQueue) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn()
	}
	return nil
}

func (m *mockTaskQueue) Close() error {
	return nil
}

func (m *mockTaskQueue) counts() (acked, nacked int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.acked), len(m.nacked)
}

var _ driven.TaskQueue = (*mockTaskQueue)(nil)

// mockRetryExecutor implements RetryExecutor for testing
type mockRetryExecutor struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (m *mockRetryExecutor) ExecuteRetry(ctx context.Context, eventID, registrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, [2]string{eventID, registrationID})
	return m.err
}

func TestNewWorker(t *testing.T) {
	w := NewWorker(WorkerConfig{
		TaskQueue:      newMockTaskQueue(),
		Logger:         slog.Default(),
		Concurrency:    2,
		DequeueTimeout: 5,
	})

	if w.concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5 {
		t.Errorf("expected dequeue timeout 5, got %d", w.dequeueTimeout)
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: newMockTaskQueue()})

	if w.concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5 {
		t.Errorf("expected default dequeue timeout 5, got %d", w.dequeueTimeout)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
}

func TestWorker_StartStop(t *testing.T) {
	queue := newMockTaskQueue()
	queue.dequeueDelay = 50 * time.Millisecond

	w := NewWorker(WorkerConfig{TaskQueue: queue, DequeueTimeout: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if !w.Health(ctx).Running {
		t.Error("expected worker to be running")
	}
	if err := w.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	w.Stop()

	if w.Health(ctx).Running {
		t.Error("expected worker to be stopped")
	}
	w.Stop()
}

func TestWorker_Health_QueueError(t *testing.T) {
	queue := newMockTaskQueue()
	queue.pingFn = func() error { return errors.New("connection failed") }

	health := NewWorker(WorkerConfig{TaskQueue: queue}).Health(context.Background())

	if health.QueueHealth {
		t.Error("expected queue to be unhealthy")
	}
	if health.Error != "connection failed" {
		t.Errorf("expected error message, got %q", health.Error)
	}
}

func TestWorker_ProcessTask_Retry(t *testing.T) {
	queue := newMockTaskQueue()
	exec := &mockRetryExecutor{}
	var results []domain.TaskResult

	w := NewWorker(WorkerConfig{
		TaskQueue: queue,
		Retries:   exec,
		OnResult:  func(r domain.TaskResult) { results = append(results, r) },
	})

	task := domain.NewHandlerRetryTask("event_1", "community/2", 90)
	w.processTask(context.Background(), task, slog.Default())

	if len(exec.calls) != 1 || exec.calls[0] != [2]string{"event_1", "community/2"} {
		t.Errorf("unexpected retry calls: %v", exec.calls)
	}
	if acked, _ := queue.counts(); acked != 1 {
		t.Errorf("expected 1 ack, got %d", acked)
	}
	if len(results) != 1 || !results[0].Success || results[0].EventID != "event_1" {
		t.Errorf("unexpected result: %+v", results)
	}
}

func TestWorker_ProcessTask_RetryFailureIsNacked(t *testing.T) {
	queue := newMockTaskQueue()
	exec := &mockRetryExecutor{err: errors.New("handler still failing")}
	var results []domain.TaskResult

	w := NewWorker(WorkerConfig{
		TaskQueue: queue,
		Retries:   exec,
		OnResult:  func(r domain.TaskResult) { results = append(results, r) },
	})

	w.processTask(context.Background(), domain.NewHandlerRetryTask("event_1", "social/1", 85), slog.Default())

	if _, nacked := queue.counts(); nacked != 1 {
		t.Errorf("expected 1 nack, got %d", nacked)
	}
	if len(results) != 1 || results[0].Success || results[0].Error != "handler still failing" {
		t.Errorf("unexpected result: %+v", results)
	}
}

func TestWorker_ProcessTask_UnknownType(t *testing.T) {
	queue := newMockTaskQueue()
	w := NewWorker(WorkerConfig{TaskQueue: queue, Retries: &mockRetryExecutor{}})

	w.processTask(context.Background(), &domain.Task{ID: "task-123", Type: "sync_all"}, slog.Default())

	if _, nacked := queue.counts(); nacked != 1 {
		t.Errorf("expected 1 nack for unknown type, got %d", nacked)
	}
}

func TestWorker_ProcessTask_MissingPayload(t *testing.T) {
	queue := newMockTaskQueue()
	exec := &mockRetryExecutor{}
	w := NewWorker(WorkerConfig{TaskQueue: queue, Retries: exec})

	w.processTask(context.Background(), &domain.Task{ID: "task-123", Type: domain.TaskTypeHandlerRetry}, slog.Default())

	if _, nacked := queue.counts(); nacked != 1 {
		t.Errorf("expected 1 nack for missing payload, got %d", nacked)
	}
	if len(exec.calls) != 0 {
		t.Error("expected executor not called")
	}
}

func TestWorker_AckAndNackErrorsDoNotPanic(t *testing.T) {
	queue := newMockTaskQueue()
	queue.ackFn = func(string) error { return errors.New("ack failed") }
	queue.nackFn = func(string, string) error { return errors.New("nack failed") }

	w := NewWorker(WorkerConfig{TaskQueue: queue, Retries: &mockRetryExecutor{}})
	w.processTask(context.Background(), domain.NewHandlerRetryTask("e", "r/1", 80), slog.Default())

	w = NewWorker(WorkerConfig{TaskQueue: queue, Retries: &mockRetryExecutor{err: errors.New("x")}})
	w.processTask(context.Background(), domain.NewHandlerRetryTask("e", "r/1", 80), slog.Default())

	acked, nacked := queue.counts()
	if acked != 1 || nacked != 1 {
		t.Errorf("expected one ack and one nack attempt, got %d/%d", acked, nacked)
	}
}

func TestWorker_ContextCancellation(t *testing.T) {
	queue := newMockTaskQueue()
	queue.dequeueDelay = 500 * time.Millisecond

	w := NewWorker(WorkerConfig{TaskQueue: queue, DequeueTimeout: 10})
	ctx, cancel := context.WithCancel(context.Background())

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("worker did not stop after context cancellation")
		w.Stop()
	}
}

func TestWorker_ProcessLoop_DequeueError(t *testing.T) {
	queue := newMockTaskQueue()
	var mu sync.Mutex
	callCount := 0
	queue.dequeueFn = func() (*domain.Task, error) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
		if callCount < 2 {
			return nil, errors.New("temporary error")
		}
		return nil, nil
	}

	w := NewWorker(WorkerConfig{TaskQueue: queue, DequeueTimeout: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	// one 1s backoff after the first error
	time.Sleep(1500 * time.Millisecond)
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if callCount < 2 {
		t.Errorf("expected at least 2 dequeue attempts, got %d", callCount)
	}
}

// End to end: a failing handler on a high-score event gets exactly one retry
// through the queue and the event keeps its first-pass status.
func TestWorker_RetriesThroughCoordinator(t *testing.T) {
	store := mocks.NewMockEventStore()
	tasks := mocks.NewMockTaskQueue()
	coord := services.NewCoordinator(services.CoordinatorConfig{
		Store:     store,
		Broker:    mocks.NewMockBroker(),
		TaskQueue: tasks,
	})

	var mu sync.Mutex
	attempts := 0
	_, err := coord.RegisterHandler("community", []domain.EventType{domain.EventTypeSocialShare},
		func(context.Context, *domain.CrossDomainEvent) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts == 1 {
				return errors.New("first attempt fails")
			}
			return nil
		}, 1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := coord.PublishEvent(context.Background(), domain.EventDraft{
		EventType:                domain.EventTypeSocialShare,
		SourceDomain:             "social",
		TargetDomains:            []string{"community"},
		LiberationRelevanceScore: 88,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	event, _ := store.Get(context.Background(), id)
	result, err := coord.ProcessIncomingEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Status != domain.ProcessingStatusFailed || result.RetriesScheduled != 1 {
		t.Fatalf("expected failed with one retry scheduled, got %s/%d", result.Status, result.RetriesScheduled)
	}

	completed := make(chan domain.TaskResult, 1)
	w := NewWorker(WorkerConfig{
		TaskQueue:      tasks,
		Retries:        coord,
		OnResult:       func(r domain.TaskResult) { completed <- r },
		DequeueTimeout: 1,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case r := <-completed:
		if !r.Success || r.EventID != id {
			t.Errorf("unexpected retry result: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry task was not processed")
	}
	w.Stop()

	stored, _ := store.Get(context.Background(), id)
	if stored.ProcessingStatus != domain.ProcessingStatusFailed {
		t.Errorf("expected status to stay failed, got %s", stored.ProcessingStatus)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("expected 2 handler attempts, got %d", attempts)
	}
}
