package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/domain"
)

func TestMemoryClient_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("value")
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))
	value[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got, "stored value must not alias the caller's slice")

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryClient(10)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("b"), 0))

	now = now.Add(2 * time.Second)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	got, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}

func TestMemoryClient_Eviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryClient(2)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "soon", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "later", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "new", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "soon")
	assert.ErrorIs(t, err, ErrCacheMiss, "entry expiring soonest is evicted first")

	require.NoError(t, c.Set(ctx, "later", []byte("2b"), time.Hour))
	assert.Equal(t, 2, c.Len(), "overwriting does not evict")
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)
	require.NoError(t, c.Set(ctx, "artifact:1", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "artifact:2", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "other", []byte("c"), 0))

	require.NoError(t, c.DeleteByPrefix(ctx, "artifact:"))
	assert.Equal(t, 1, c.Len())
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryClient(10)
	next := &countingCompiler{}
	c := NewArtifactCache(next, store, "pdflatex", time.Hour, nil)

	_, err := c.Compile(ctx, "doc")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "artifact:v0:old", []byte("stale"), 0))
	require.NoError(t, store.Set(ctx, "session:1", []byte("keep"), 0))
	require.Equal(t, 3, store.Len())

	require.NoError(t, Purge(ctx, store))
	assert.Equal(t, 1, store.Len())

	_, err = c.Compile(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "purged artifact is compiled again")
}

func TestPurge_StoreError(t *testing.T) {
	assert.ErrorIs(t, Purge(context.Background(), brokenStore{}), errRefused)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(config.CacheConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewClient(config.CacheConfig{Driver: "memory", MaxEntries: 4})
	require.NoError(t, err)
	assert.IsType(t, &MemoryClient{}, c)

	_, err = NewClient(config.CacheConfig{Driver: "memcached"})
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	a := Key("pdflatex", "doc")
	assert.True(t, strings.HasPrefix(a, keyPrefix))
	assert.Len(t, a, len(keyPrefix)+64)
	assert.Equal(t, a, Key("pdflatex", "doc"))
	assert.NotEqual(t, a, Key("xelatex", "doc"))
	assert.NotEqual(t, a, Key("pdflatex", "doc "))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

type countingCompiler struct {
	calls int
	err   error
}

func (c *countingCompiler) Compile(_ context.Context, source string) (*domain.Artifact, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &domain.Artifact{Data: []byte("%PDF-1.5\n" + source), MediaType: domain.MediaTypePDF}, nil
}

func TestArtifactCache_ServesRepeats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryClient(10)
	next := &countingCompiler{}
	c := NewArtifactCache(next, store, "pdflatex", time.Hour, nil)

	first, err := c.Compile(ctx, strings.Repeat("lorem ipsum ", 1000))
	require.NoError(t, err)
	second, err := c.Compile(ctx, strings.Repeat("lorem ipsum ", 1000))
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, domain.MediaTypePDF, second.MediaType)

	stored, err := store.Get(ctx, Key("pdflatex", strings.Repeat("lorem ipsum ", 1000)))
	require.NoError(t, err)
	assert.Less(t, len(stored), len(first.Data), "entries are stored compressed")
}

func TestArtifactCache_DoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryClient(10)
	next := &countingCompiler{err: domain.CompilationFailed("! Emergency stop.")}
	c := NewArtifactCache(next, store, "pdflatex", time.Hour, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Compile(ctx, "broken")
		assert.Equal(t, domain.KindCompilationFailed, domain.KindOf(err))
	}
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, store.Len())
}

func TestArtifactCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryClient(10)
	require.NoError(t, store.Set(ctx, Key("pdflatex", "doc"), []byte("not zstd"), 0))
	next := &countingCompiler{}

	artifact, err := NewArtifactCache(next, store, "pdflatex", 0, nil).Compile(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.True(t, bytes.HasPrefix(artifact.Data, []byte("%PDF-")))
}

var errRefused = errors.New("connection refused")

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errRefused }

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return errRefused }

func (brokenStore) Delete(context.Context, string) error { return errRefused }

func (brokenStore) DeleteByPrefix(context.Context, string) error { return errRefused }

func (brokenStore) Close() error { return nil }

func TestArtifactCache_StoreUnavailable(t *testing.T) {
	next := &countingCompiler{}
	c := NewArtifactCache(next, brokenStore{}, "pdflatex", time.Hour, nil)

	artifact, err := c.Compile(context.Background(), "doc")
	require.NoError(t, err)
	assert.NotNil(t, artifact)
	assert.Equal(t, 1, next.calls)
}
