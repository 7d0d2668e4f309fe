package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTokenStore is a mock implementation of TokenStore
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockTaskQueue is a mock implementation of TaskQueue
type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) Schedule(ctx context.Context, task Task) (bool, error) {
	args := m.Called(ctx, task)
	return args.Bool(0), args.Error(1)
}

// recordingQueue accepts each task ID once, like asynq does with TaskID.
type recordingQueue struct {
	mu    sync.Mutex
	tasks map[string]Task
}

func (q *recordingQueue) Schedule(ctx context.Context, task Task) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.tasks[task.ID]; ok {
		return false, nil
	}
	q.tasks[task.ID] = task
	return true, nil
}

func TestScheduler_ScheduleOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("schedules task when token is acquired", func(t *testing.T) {
		tokens := &MockTokenStore{}
		queue := &MockTaskQueue{}
		scheduler := NewScheduler(tokens, queue)
		scheduler.now = func() time.Time { return now }

		tokens.On("Acquire", ctx, "calendar-sync:1", 20*time.Second).Return(true, nil)
		queue.On("Schedule", ctx, Task{
			ID:        "calendar-sync:1:1",
			Type:      "calendar:sync_retry",
			Payload:   []byte(`{"appointment_id":"1"}`),
			NotBefore: now.Add(30 * time.Second),
		}).Return(true, nil)

		scheduled, err := scheduler.ScheduleOnce(ctx, Request{
			Subject:  "calendar-sync:1",
			TaskID:   "calendar-sync:1:1",
			TaskType: "calendar:sync_retry",
			Payload:  []byte(`{"appointment_id":"1"}`),
			Delay:    30 * time.Second,
			TokenTTL: 20 * time.Second,
		})

		require.NoError(t, err)
		assert.True(t, scheduled)
		tokens.AssertExpectations(t)
		queue.AssertExpectations(t)
	})

	t.Run("token ttl defaults to delay", func(t *testing.T) {
		tokens := &MockTokenStore{}
		queue := &MockTaskQueue{}
		scheduler := NewScheduler(tokens, queue)

		tokens.On("Acquire", ctx, "outbound:1", 8*time.Second).Return(true, nil)
		queue.On("Schedule", ctx, mock.AnythingOfType("retry.Task")).Return(true, nil)

		scheduled, err := scheduler.ScheduleOnce(ctx, Request{Subject: "outbound:1", TaskID: "outbound:1:2", Delay: 8 * time.Second})

		require.NoError(t, err)
		assert.True(t, scheduled)
		tokens.AssertExpectations(t)
	})

	t.Run("token ttl has a floor", func(t *testing.T) {
		tokens := &MockTokenStore{}
		queue := &MockTaskQueue{}
		scheduler := NewScheduler(tokens, queue)

		tokens.On("Acquire", ctx, "outbound:2", time.Second).Return(true, nil)
		queue.On("Schedule", ctx, mock.AnythingOfType("retry.Task")).Return(true, nil)

		_, err := scheduler.ScheduleOnce(ctx, Request{Subject: "outbound:2", TaskID: "outbound:2:1"})

		require.NoError(t, err)
		tokens.AssertExpectations(t)
	})

	t.Run("held token skips scheduling", func(t *testing.T) {
		tokens := &MockTokenStore{}
		queue := &MockTaskQueue{}
		scheduler := NewScheduler(tokens, queue)

		tokens.On("Acquire", ctx, "calendar-sync:1", time.Minute).Return(false, nil)

		scheduled, err := scheduler.ScheduleOnce(ctx, Request{Subject: "calendar-sync:1", Delay: time.Minute})

		require.NoError(t, err)
		assert.False(t, scheduled)
		queue.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
	})

	t.Run("token store error", func(t *testing.T) {
		tokens := &MockTokenStore{}
		queue := &MockTaskQueue{}
		scheduler := NewScheduler(tokens, queue)

		storeErr := errors.New("redis down")
		tokens.On("Acquire", ctx, "calendar-sync:1", time.Minute).Return(false, storeErr)

		scheduled, err := scheduler.ScheduleOnce(ctx, Request{Subject: "calendar-sync:1", Delay: time.Minute})

		assert.ErrorIs(t, err, storeErr)
		assert.False(t, scheduled)
	})

	t.Run("enqueue error releases token", func(t *testing.T) {
		tokens := &MockTokenStore{}
		queue := &MockTaskQueue{}
		scheduler := NewScheduler(tokens, queue)

		queueErr := errors.New("enqueue failed")
		tokens.On("Acquire", ctx, "calendar-sync:1", time.Minute).Return(true, nil)
		tokens.On("Release", ctx, "calendar-sync:1").Return(nil)
		queue.On("Schedule", ctx, mock.AnythingOfType("retry.Task")).Return(false, queueErr)

		scheduled, err := scheduler.ScheduleOnce(ctx, Request{Subject: "calendar-sync:1", Delay: time.Minute})

		assert.ErrorIs(t, err, queueErr)
		assert.False(t, scheduled)
		tokens.AssertExpectations(t)
	})

	t.Run("duplicate task id releases token", func(t *testing.T) {
		tokens := &MockTokenStore{}
		queue := &MockTaskQueue{}
		scheduler := NewScheduler(tokens, queue)

		tokens.On("Acquire", ctx, "calendar-sync:1", time.Minute).Return(true, nil)
		tokens.On("Release", ctx, "calendar-sync:1").Return(nil)
		queue.On("Schedule", ctx, mock.AnythingOfType("retry.Task")).Return(false, nil)

		scheduled, err := scheduler.ScheduleOnce(ctx, Request{Subject: "calendar-sync:1", Delay: time.Minute})

		require.NoError(t, err)
		assert.False(t, scheduled)
		tokens.AssertExpectations(t)
	})
}

func TestScheduler_ConcurrentTriggersCollapse(t *testing.T) {
	ctx := context.Background()
	queue := &recordingQueue{tasks: make(map[string]Task)}
	scheduler := NewScheduler(NewMemoryTokenStore(), queue)

	var wg sync.WaitGroup
	results := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduled, err := scheduler.ScheduleOnce(ctx, Request{
				Subject:  "calendar-sync:42",
				TaskID:   "calendar-sync:42:1",
				TaskType: "calendar:sync_retry",
				Delay:    30 * time.Second,
			})
			if err == nil {
				results <- scheduled
			}
		}()
	}
	wg.Wait()
	close(results)

	scheduledCount := 0
	for scheduled := range results {
		if scheduled {
			scheduledCount++
		}
	}

	assert.Equal(t, 1, scheduledCount)
	assert.Len(t, queue.tasks, 1)
}

func TestScheduler_Complete(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokenStore()
	queue := &recordingQueue{tasks: make(map[string]Task)}
	scheduler := NewScheduler(tokens, queue)

	scheduled, err := scheduler.ScheduleOnce(ctx, Request{Subject: "outbound:9", TaskID: "outbound:9:1", Delay: time.Minute})
	require.NoError(t, err)
	require.True(t, scheduled)

	require.NoError(t, scheduler.Complete(ctx, "outbound:9"))

	scheduled, err = scheduler.ScheduleOnce(ctx, Request{Subject: "outbound:9", TaskID: "outbound:9:2", Delay: time.Minute})
	require.NoError(t, err)
	assert.True(t, scheduled)
}

func TestScheduler_DuplicateTaskDoesNotBlockNextAttempt(t *testing.T) {
	ctx := context.Background()
	queue := &recordingQueue{tasks: map[string]Task{
		// Attempt 3 is already queued, e.g. running while a sweep fires.
		"calendar-sync:7:3": {ID: "calendar-sync:7:3"},
	}}
	scheduler := NewScheduler(NewMemoryTokenStore(), queue)

	scheduled, err := scheduler.ScheduleOnce(ctx, Request{Subject: "calendar-sync:7", TaskID: "calendar-sync:7:3", Delay: time.Minute})
	require.NoError(t, err)
	assert.False(t, scheduled)

	scheduled, err = scheduler.ScheduleOnce(ctx, Request{Subject: "calendar-sync:7", TaskID: "calendar-sync:7:4", Delay: time.Minute})
	require.NoError(t, err)
	assert.True(t, scheduled)
	assert.Contains(t, queue.tasks, "calendar-sync:7:4")
}
