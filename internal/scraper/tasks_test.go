package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openintern/backend/internal/domain"
)

// blockingRunner holds each run until release is closed or ctx ends
type blockingRunner struct {
	release chan struct{}
	result  *RunResult
	err     error
}

func (b *blockingRunner) Run(ctx context.Context, src *Source, pages int) (*RunResult, error) {
	select {
	case <-b.release:
		return b.result, b.err
	case <-ctx.Done():
		return &RunResult{Source: src.ID}, ctx.Err()
	}
}

func waitForStatus(t *testing.T, m *TaskManager, id uuid.UUID, want domain.ScrapeStatus) *domain.ScrapeTask {
	t.Helper()
	var task *domain.ScrapeTask
	require.Eventually(t, func() bool {
		var err error
		task, err = m.Status(id)
		return err == nil && task.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return task
}

func TestTaskManager_CompletesRun(t *testing.T) {
	runner := &blockingRunner{
		release: make(chan struct{}),
		result:  &RunResult{Accepted: 4, Added: 3},
	}
	m := NewTaskManager(runner, NewRegistry(nil), nil)

	task, err := m.Trigger(domain.JobSourceBayt, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.ScrapeStatusQueued, task.Status)
	assert.Equal(t, 2, task.Pages)

	_, err = m.Trigger(domain.JobSourceBayt, 2)
	assert.ErrorIs(t, err, ErrScrapeInProgress)

	close(runner.release)
	done := waitForStatus(t, m, task.ID, domain.ScrapeStatusCompleted)
	assert.Equal(t, 4, done.JobsFound)
	assert.Equal(t, 3, done.JobsAdded)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
	assert.Nil(t, done.Error)
	assert.True(t, done.Done())

	require.Eventually(t, func() bool {
		_, err := m.Trigger(domain.JobSourceBayt, 1)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond, "source is free again")

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestTaskManager_RecordsFailure(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), err: errBoom}
	close(runner.release)
	m := NewTaskManager(runner, NewRegistry(nil), nil)

	task, err := m.Trigger(domain.JobSourceIndeed, 1)
	require.NoError(t, err)

	failed := waitForStatus(t, m, task.ID, domain.ScrapeStatusFailed)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, errBoom.Error())
}

func TestTaskManager_UnknownSource(t *testing.T) {
	m := NewTaskManager(&blockingRunner{}, NewRegistry(nil), nil)

	_, err := m.Trigger("monster", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownSource)

	_, err = m.Status(uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskManager_ShutdownCancelsRuns(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	m := NewTaskManager(runner, NewRegistry(nil), nil)

	task, err := m.Trigger(domain.JobSourceWuzzuf, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	got, err := m.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScrapeStatusFailed, got.Status)

	_, err = m.Trigger(domain.JobSourceWuzzuf, 1)
	assert.ErrorIs(t, err, ErrManagerStopped)
}

func TestTaskManager_ListNewestFirst(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	close(runner.release)
	m := NewTaskManager(runner, NewRegistry(nil), nil)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := m.Trigger(domain.JobSourceBayt, 1)
	require.NoError(t, err)
	second, err := m.Trigger(domain.JobSourceJobzella, 1)
	require.NoError(t, err)

	waitForStatus(t, m, first.ID, domain.ScrapeStatusCompleted)
	waitForStatus(t, m, second.ID, domain.ScrapeStatusCompleted)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
