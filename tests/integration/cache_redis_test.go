//go:build integration

// Package integration provides integration tests that need external services.
package integration

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical/pdf-compiler/internal/cache"
	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
)

type countingCompiler struct {
	calls atomic.Int32
}

func (c *countingCompiler) Compile(_ context.Context, source string) (*domain.Artifact, error) {
	c.calls.Add(1)
	return &domain.Artifact{Data: []byte("%PDF-1.5\n" + source), MediaType: domain.MediaTypePDF}, nil
}

// isDockerAvailable checks if Docker is available for testing.
func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	if !isDockerAvailable() {
		t.Skip("Docker is not available")
	}
	ctx := context.Background()

	container, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return config.RedisConfig{
		Addr:     fmt.Sprintf("%s:%s", host, port.Port()),
		PoolSize: 4,
		Prefix:   "pdfc-test:",
	}
}

func TestRedisClient(t *testing.T) {
	client, err := cache.NewRedisClient(startRedis(t))
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	_, err = client.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, client.Set(ctx, "artifact:a", []byte("one"), time.Minute))
	require.NoError(t, client.Set(ctx, "artifact:b", []byte("two"), time.Minute))
	require.NoError(t, client.Set(ctx, "other:c", []byte("three"), time.Minute))

	got, err := client.Get(ctx, "artifact:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, client.DeleteByPrefix(ctx, "artifact:"))
	_, err = client.Get(ctx, "artifact:b")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	got, err = client.Get(ctx, "other:c")
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), got)

	require.NoError(t, client.Set(ctx, "short", []byte("x"), time.Second))
	assert.Eventually(t, func() bool {
		_, err := client.Get(ctx, "short")
		return err == cache.ErrCacheMiss
	}, 5*time.Second, 100*time.Millisecond)
}

func TestArtifactCache_Redis(t *testing.T) {
	store, err := cache.NewClient(config.CacheConfig{Driver: "redis", Redis: startRedis(t)})
	require.NoError(t, err)
	defer store.Close()

	next := &countingCompiler{}
	c := cache.NewArtifactCache(next, store, "pdflatex", time.Hour, observability.Nop())

	for i := 0; i < 3; i++ {
		artifact, err := c.Compile(context.Background(), `\documentclass{article}`)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.5\n\\documentclass{article}", string(artifact.Data))
	}

	assert.Equal(t, int32(1), next.calls.Load())
}
