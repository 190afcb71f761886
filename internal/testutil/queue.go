package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/queue"
)

type TestQueue struct {
	Queue     *queue.TaskQueue
	Config    config.RedisConfig
	Redis     *rdb.Client
	Inspector *asynq.Inspector
}

// NewTestQueue starts (or reuses) a Redis container and connects the task
// queue, an inspector and a raw client to it.
func NewTestQueue(t *testing.T) *TestQueue {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithReuseByName("bazaar-backend-test-redis"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Ready to accept connections").
					WithStartupTimeout(30*time.Second),
				wait.ForListeningPort("6379/tcp").
					WithStartupTimeout(30*time.Second),
			),
		),
	)
	require.NoError(t, err, "Failed to start Redis container")

	endpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err, "Failed to get redis endpoint")

	cfg := config.RedisConfig{Addr: endpoint}

	taskQueue, err := queue.NewQueue(&cfg)
	require.NoError(t, err, "Failed to create task queue")

	tq := &TestQueue{
		Queue:     taskQueue,
		Config:    cfg,
		Redis:     rdb.NewClient(&rdb.Options{Addr: endpoint}),
		Inspector: asynq.NewInspector(asynq.RedisClientOpt{Addr: endpoint}),
	}
	t.Cleanup(tq.Close)
	return tq
}

// Flush empties Redis between tests sharing the reused container.
func (tq *TestQueue) Flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tq.Redis.FlushDB(ctx).Err(); err != nil {
		t.Logf("WARNING: failed to flush Redis between tests: %v", err)
	}
}

func (tq *TestQueue) Close() {
	if tq.Queue != nil {
		tq.Queue.Close()
	}
	if tq.Inspector != nil {
		tq.Inspector.Close()
	}
	if tq.Redis != nil {
		tq.Redis.Close()
	}
}
