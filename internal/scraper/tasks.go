package scraper

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

var (
	ErrTaskNotFound     = errors.New("scrape task not found")
	ErrScrapeInProgress = errors.New("scrape already in progress")
	ErrManagerStopped   = errors.New("task manager stopped")
)

// TaskRunner executes a single run
type TaskRunner interface {
	Run(ctx context.Context, src *Source, pages int) (*RunResult, error)
}

// TaskManager runs scrapes in the background, at most one per source
type TaskManager struct {
	runner   TaskRunner
	registry *Registry
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[uuid.UUID]*domain.ScrapeTask
	active map[domain.JobSource]uuid.UUID
	now    func() time.Time
}

// NewTaskManager creates a task manager
func NewTaskManager(runner TaskRunner, registry *Registry, logger *zap.Logger) *TaskManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskManager{
		runner:   runner,
		registry: registry,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[uuid.UUID]*domain.ScrapeTask),
		active:   make(map[domain.JobSource]uuid.UUID),
		now:      time.Now,
	}
}

// Trigger queues a run for source and returns immediately
func (m *TaskManager) Trigger(source domain.JobSource, pages int) (*domain.ScrapeTask, error) {
	src, ok := m.registry.Get(source)
	if !ok {
		return nil, domain.ErrUnknownSource
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return nil, ErrManagerStopped
	}
	if _, busy := m.active[source]; busy {
		return nil, ErrScrapeInProgress
	}

	task := &domain.ScrapeTask{
		ID:        uuid.New(),
		Source:    source,
		Pages:     pages,
		Status:    domain.ScrapeStatusQueued,
		CreatedAt: m.now(),
	}
	m.tasks[task.ID] = task
	m.active[source] = task.ID

	m.wg.Add(1)
	go m.run(task.ID, src, pages)

	snapshot := *task
	return &snapshot, nil
}

// Status returns a copy of the task
func (m *TaskManager) Status(id uuid.UUID) (*domain.ScrapeTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	snapshot := *task
	return &snapshot, nil
}

// List returns every known task, newest first
func (m *TaskManager) List() []domain.ScrapeTask {
	m.mu.Lock()
	out := make([]domain.ScrapeTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Shutdown cancels running tasks and waits for them to persist and exit
func (m *TaskManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *TaskManager) run(id uuid.UUID, src *Source, pages int) {
	defer m.wg.Done()

	m.update(id, func(t *domain.ScrapeTask) {
		started := m.now()
		t.Status = domain.ScrapeStatusInProgress
		t.StartedAt = &started
	})

	result, err := m.runner.Run(m.ctx, src, pages)

	m.update(id, func(t *domain.ScrapeTask) {
		finished := m.now()
		t.FinishedAt = &finished
		if result != nil {
			t.JobsFound = result.Accepted
			t.JobsAdded = result.Added
		}
		if err != nil {
			msg := err.Error()
			t.Error = &msg
			t.Status = domain.ScrapeStatusFailed
			return
		}
		t.Status = domain.ScrapeStatusCompleted
	})

	m.mu.Lock()
	delete(m.active, src.ID)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Scrape task failed",
			zap.String("task_id", id.String()),
			zap.String("source", string(src.ID)),
			zap.Error(err),
		)
		return
	}
	m.logger.Info("Scrape task completed",
		zap.String("task_id", id.String()),
		zap.String("source", string(src.ID)),
	)
}

func (m *TaskManager) update(id uuid.UUID, fn func(*domain.ScrapeTask)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		fn(t)
	}
}
