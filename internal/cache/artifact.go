package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
)

const (
	artifactPrefix = "artifact:"
	keyPrefix      = artifactPrefix + "v1:"
)

// The encoder and decoder are safe for concurrent EncodeAll and DecodeAll
// calls and are expensive to create, so one of each is shared.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("cache: zstd decoder initialization failed: " + err.Error())
	}
}

// Key returns the cache key for source compiled with engine.
func Key(engine, source string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(engine))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(source))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Purge removes every cached artifact from store, whatever key version it
// was written under.
func Purge(ctx context.Context, store Client) error {
	return store.DeleteByPrefix(ctx, artifactPrefix)
}

// ArtifactCache is a domain.Compiler that serves repeated documents from a
// cache. Only successful compilations are stored. Cache failures are logged
// and never fail the compilation.
type ArtifactCache struct {
	next   domain.Compiler
	store  Client
	engine string
	ttl    time.Duration
	logger *observability.Logger
}

// NewArtifactCache wraps next with a cache held in store
func NewArtifactCache(next domain.Compiler, store Client, engine string, ttl time.Duration, logger *observability.Logger) *ArtifactCache {
	if logger == nil {
		logger = observability.Nop()
	}
	return &ArtifactCache{
		next:   next,
		store:  store,
		engine: engine,
		ttl:    ttl,
		logger: logger,
	}
}

// Compile implements domain.Compiler
func (c *ArtifactCache) Compile(ctx context.Context, sourceText string) (*domain.Artifact, error) {
	log := c.logger.WithContext(ctx).WithOperation("artifact_cache")
	key := Key(c.engine, sourceText)

	if artifact, ok := c.lookup(ctx, log, key); ok {
		return artifact, nil
	}

	artifact, err := c.next.Compile(ctx, sourceText)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, key, zstdEncoder.EncodeAll(artifact.Data, nil), c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to store artifact")
	}
	return artifact, nil
}

func (c *ArtifactCache) lookup(ctx context.Context, log *observability.Logger, key string) (*domain.Artifact, bool) {
	compressed, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		log.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
		return nil, false
	}

	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dropping corrupt cache entry")
		_ = c.store.Delete(ctx, key)
		return nil, false
	}

	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("Cache hit")
	return &domain.Artifact{Data: data, MediaType: domain.MediaTypePDF}, true
}

var _ domain.Compiler = (*ArtifactCache)(nil)
