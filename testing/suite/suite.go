package suite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/repository/storage"
)

const (
	expireDuration  = 120
	maxWaitDuration = 120 * time.Second
)

const (
	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "alpine"
)

// Suite is a test fixture holding a logger, a throwaway Redis container and a SQLite archive.
type Suite struct {
	*testing.T
	Logger zerolog.Logger

	Storage *redis.Client
	Archive *storage.SQLiteStorage
}

// New starts a Redis container. Tests calling it need a reachable docker daemon.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, st := NewWithoutRedis(t)

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	// pulls an image, creates a container based on it and runs it
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: redisImage,
		Tag:        redisTag,
		Env:        []string{},
	}, func(config *docker.HostConfig) {
		// set AutoRemove to true so that stopped container goes away by itself
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start resource: %v", err)
	}

	// never returns error
	_ = resource.Expire(expireDuration) // Tell docker to hard kill the container in 120 seconds

	redisHost := resource.GetHostPort(redisPort)

	// exponential backoff-retry, because the application in the container might not be ready to accept connections yet
	pool.MaxWait = maxWaitDuration

	var redisClient *redis.Client
	if err = pool.Retry(func() error {
		redisClient = redis.NewClient(&redis.Options{
			Addr: redisHost,
		})
		return redisClient.Ping(ctx).Err()
	}); err != nil {
		if err = pool.Purge(resource); err != nil {
			t.Fatalf("could not purge resource: %v", err)
		}

		t.Fatalf("could not connect to redis: %v", err)
	}

	if err = redisClient.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("could not flush database: %v", err)
	}

	t.Cleanup(func() {
		t.Helper()

		_ = redisClient.Close()

		if err = pool.Purge(resource); err != nil {
			t.Fatalf("could not purge resource: %v", err)
		}
	})

	st.Storage = redisClient

	return ctx, st
}

// NewWithoutRedis builds the parts of the fixture that run in process.
func NewWithoutRedis(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(func() {
		cancel()
	})

	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).With().Timestamp().Logger()

	archive, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("could not open archive: %v", err)
	}

	if err = archive.Init(ctx); err != nil {
		t.Fatalf("could not init archive: %v", err)
	}

	t.Cleanup(func() {
		_ = archive.Close()
	})

	return ctx, &Suite{
		T:       t,
		Logger:  logger,
		Archive: archive,
	}
}
