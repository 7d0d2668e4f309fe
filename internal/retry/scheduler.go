package retry

import (
	"context"
	"time"
)

// minTokenTTL keeps a token alive long enough for the enqueue that follows Acquire.
const minTokenTTL = time.Second

// Request describes one retry to schedule for a subject (an appointment or a message).
type Request struct {
	// Subject identifies what is being retried; it is the token key.
	Subject string
	// TaskID identifies this particular attempt in the task queue.
	TaskID   string
	TaskType string
	Payload  []byte
	Delay    time.Duration
	// TokenTTL bounds how long the subject stays locked. Zero uses Delay.
	TokenTTL time.Duration
}

// Scheduler schedules at most one pending retry per subject.
type Scheduler struct {
	tokens TokenStore
	queue  TaskQueue
	now    func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(tokens TokenStore, queue TaskQueue) *Scheduler {
	return &Scheduler{
		tokens: tokens,
		queue:  queue,
		now:    time.Now,
	}
}

// ScheduleOnce acquires the subject's token and enqueues the task. It returns false
// without error when the token is already held or the task ID is already queued.
// The token is kept only while the enqueued task is ours.
func (s *Scheduler) ScheduleOnce(ctx context.Context, req Request) (bool, error) {
	ttl := req.TokenTTL
	if ttl <= 0 {
		ttl = req.Delay
	}
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}

	acquired, err := s.tokens.Acquire(ctx, req.Subject, ttl)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	scheduled, err := s.queue.Schedule(ctx, Task{
		ID:        req.TaskID,
		Type:      req.TaskType,
		Payload:   req.Payload,
		NotBefore: s.now().Add(req.Delay),
	})
	if err != nil || !scheduled {
		_ = s.tokens.Release(ctx, req.Subject)
		return false, err
	}

	return true, nil
}

// Complete releases the subject's token. Call it when the scheduled retry starts executing.
func (s *Scheduler) Complete(ctx context.Context, subject string) error {
	return s.tokens.Release(ctx, subject)
}
