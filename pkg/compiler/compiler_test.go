package compiler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPDF = []byte("%PDF-1.5\n%%EOF\n")

func TestNewClientWithConfig_Nil(t *testing.T) {
	_, err := NewClientWithConfig(nil, nil)
	require.Error(t, err)
}

func TestClient_FallbackAndCache(t *testing.T) {
	var primaryHits, secondaryHits atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondaryHits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(testPDF)
	}))
	defer secondary.Close()

	cfg := DefaultConfig()
	cfg.Service.Endpoint = primary.URL
	fallback := cfg.Service
	fallback.Endpoint = secondary.URL
	cfg.Fallbacks = []ServiceConfig{fallback}
	cfg.Cache.Driver = "memory"

	client, err := NewClientWithConfig(cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 2; i++ {
		artifact, err := client.Compile(context.Background(), `\documentclass{article}`)
		require.NoError(t, err)
		assert.Equal(t, testPDF, artifact.Data)
	}

	assert.Equal(t, int32(1), primaryHits.Load())
	assert.Equal(t, int32(1), secondaryHits.Load(), "second compile is served from cache")
}

func TestClient_CompilationFailureStopsChain(t *testing.T) {
	var secondaryHits atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("! Undefined control sequence."))
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondaryHits.Add(1)
	}))
	defer secondary.Close()

	cfg := DefaultConfig()
	cfg.Service.Endpoint = primary.URL
	fallback := cfg.Service
	fallback.Endpoint = secondary.URL
	cfg.Fallbacks = []ServiceConfig{fallback}

	client, err := NewClientWithConfig(cfg, nil)
	require.NoError(t, err)

	_, err = client.Compile(context.Background(), `\foo`)
	ce := AsCompilationError(err)
	require.NotNil(t, ce)
	assert.Equal(t, KindCompilationFailed, ce.Kind)
	assert.Equal(t, "! Undefined control sequence.", ce.Log)
	assert.Equal(t, int32(0), secondaryHits.Load())
}

func TestClient_UnknownCacheDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Driver = "memcached"

	_, err := NewClientWithConfig(cfg, nil)
	require.Error(t, err)
}
