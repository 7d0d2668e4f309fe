package retry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// TaskServer runs asynq handlers for the retry task types.
type TaskServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewTaskServer creates a TaskServer consuming the given queue.
func NewTaskServer(redisOpt asynq.RedisConnOpt, queue string, concurrency int, logger *slog.Logger) *TaskServer {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      &asynqLogger{logger: logger},
	})

	return &TaskServer{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: logger,
	}
}

// HandleFunc registers fn for taskType.
func (s *TaskServer) HandleFunc(taskType string, fn func(ctx context.Context, task *asynq.Task) error) {
	s.mux.HandleFunc(taskType, fn)
}

// Start runs the server until ctx is cancelled.
func (s *TaskServer) Start(ctx context.Context) error {
	s.logger.Info("starting task server")

	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}

	<-ctx.Done()

	s.logger.Info("stopping task server")
	s.server.Shutdown()
	return ctx.Err()
}

// asynqLogger adapts slog to asynq.Logger.
type asynqLogger struct {
	logger *slog.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }

// Fatal logs at error level. asynq only calls it on unrecoverable startup errors,
// which Start already reports.
func (l *asynqLogger) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
