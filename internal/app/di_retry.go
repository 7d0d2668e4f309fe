package app

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/allisson/clinicops/internal/retry"
)

// retryTokenPrefix namespaces the retry tokens in Redis.
const retryTokenPrefix = "clinicops:retry:"

// RedisClient returns the Redis client backing retry tokens.
func (c *Container) RedisClient() redis.UniversalClient {
	c.redisClientInit.Do(func() {
		c.redisClient = redis.NewClient(&redis.Options{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})
	})
	return c.redisClient
}

// TaskClient returns the asynq client used to schedule delayed tasks.
func (c *Container) TaskClient() *asynq.Client {
	c.taskClientInit.Do(func() {
		c.taskClient = asynq.NewClient(c.redisConnOpt())
	})
	return c.taskClient
}

// TokenStore returns the retry token store selected by RETRY_TOKEN_BACKEND.
func (c *Container) TokenStore() (retry.TokenStore, error) {
	var err error
	c.tokenStoreInit.Do(func() {
		c.tokenStore, err = c.initTokenStore()
		if err != nil {
			c.initErrors["tokenStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["tokenStore"]; exists {
		return nil, storedErr
	}
	return c.tokenStore, nil
}

// TaskQueue returns the delayed task queue.
func (c *Container) TaskQueue() retry.TaskQueue {
	c.taskQueueInit.Do(func() {
		c.taskQueue = retry.NewAsynqTaskQueue(c.TaskClient(), c.config.TaskQueueName)
	})
	return c.taskQueue
}

// RetryScheduler returns the schedule-at-most-once retry scheduler.
func (c *Container) RetryScheduler() (*retry.Scheduler, error) {
	var err error
	c.retrySchedulerInit.Do(func() {
		c.retryScheduler, err = c.initRetryScheduler()
		if err != nil {
			c.initErrors["retryScheduler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["retryScheduler"]; exists {
		return nil, storedErr
	}
	return c.retryScheduler, nil
}

// TaskServer returns the asynq server consuming retry tasks. Handlers are registered by
// EventRouter.
func (c *Container) TaskServer() *retry.TaskServer {
	c.taskServerInit.Do(func() {
		c.taskServer = retry.NewTaskServer(
			c.redisConnOpt(),
			c.config.TaskQueueName,
			c.config.TaskWorkerConcurrency,
			c.Logger(),
		)
	})
	return c.taskServer
}

func (c *Container) redisConnOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.config.RedisAddr,
		Password: c.config.RedisPassword,
		DB:       c.config.RedisDB,
	}
}

func (c *Container) initTokenStore() (retry.TokenStore, error) {
	switch c.config.RetryTokenBackend {
	case "redis":
		return retry.NewRedisTokenStore(c.RedisClient(), retryTokenPrefix), nil
	case "memory":
		c.Logger().Warn("using in-memory retry tokens, retries are only deduplicated within this process")
		return retry.NewMemoryTokenStore(), nil
	default:
		return nil, fmt.Errorf("unsupported retry token backend: %s", c.config.RetryTokenBackend)
	}
}

func (c *Container) initRetryScheduler() (*retry.Scheduler, error) {
	tokens, err := c.TokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get token store for retry scheduler: %w", err)
	}
	return retry.NewScheduler(tokens, c.TaskQueue()), nil
}
