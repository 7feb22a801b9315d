package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/infrastructure/config"
)

func validConfig(endpoint string) *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:       "audits",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		Region:       "us-east-1",
		Endpoint:     endpoint,
		UsePathStyle: true,
	}
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := validConfig("")
		cfg.Bucket = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		cfg := validConfig("")
		cfg.AccessKey = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		cfg := validConfig("")
		cfg.SecretKey = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		s, err := NewS3ObjectStorage(validConfig("http://localhost:9000"), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.Equal(t, "audits", s.Bucket())
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		useSSL   bool
		want     string
		wantErr  bool
	}{
		{name: "empty means AWS", endpoint: "", want: ""},
		{name: "keeps scheme", endpoint: "https://s3.example.com", want: "https://s3.example.com"},
		{name: "adds http", endpoint: "localhost:9000", want: "http://localhost:9000"},
		{name: "adds https with ssl", endpoint: "minio.internal:9000", useSSL: true, want: "https://minio.internal:9000"},
		{name: "rejects missing host", endpoint: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.endpoint, tt.useSSL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestS3ObjectStorage_EmptyKey(t *testing.T) {
	s, err := NewS3ObjectStorage(validConfig("http://localhost:9000"))
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, s.Put(ctx, "", []byte("x"), "text/plain"), ErrEmptyKey)
	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = s.Exists(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, s.Delete(ctx, ""), ErrEmptyKey)
}

// fakeS3 answers the path-style requests the client makes
type fakeS3 struct {
	mu          sync.Mutex
	requests    []string
	stored      map[string]bool
	contentType string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	key := strings.TrimPrefix(r.URL.Path, "/audits/")
	switch r.Method {
	case http.MethodPut:
		f.stored[key] = true
		f.contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.stored[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if _, ok := f.stored[key]; !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		_, _ = w.Write([]byte(`{"tenant_id":"t"}`))
	case http.MethodDelete:
		delete(f.stored, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3ObjectStorage_AgainstFakeServer(t *testing.T) {
	fake := &fakeS3{stored: map[string]bool{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3ObjectStorage(validConfig(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()
	key := "ledger-audits/2026-03-01/tenant.json"

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, s.Put(ctx, key, []byte(`{"tenant_id":"t"}`), "application/json"))

	exists, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tenant_id":"t"}`, string(data))

	require.NoError(t, s.Delete(ctx, key))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "application/json", fake.contentType)
	assert.False(t, fake.stored[key])
	assert.Contains(t, fake.requests, "PUT /audits/"+key)
	assert.Contains(t, fake.requests, "DELETE /audits/"+key)
}

// TestIntegration_EnsureBucketAndRoundTrip needs a MinIO or RustFS server.
// Set STORAGE_TEST_ENDPOINT (and optionally the key pair) to run it.
func TestIntegration_EnsureBucketAndRoundTrip(t *testing.T) {
	endpoint := os.Getenv("STORAGE_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("STORAGE_TEST_ENDPOINT not set")
	}
	cfg := validConfig(endpoint)
	cfg.Bucket = "jewel-ledger-test"
	cfg.AccessKey = envOr("STORAGE_TEST_ACCESS_KEY", "minioadmin")
	cfg.SecretKey = envOr("STORAGE_TEST_SECRET_KEY", "minioadmin")

	s, err := NewS3ObjectStorage(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.EnsureBucket(ctx))

	key := "integration/round-trip.json"
	require.NoError(t, s.Put(ctx, key, []byte(`{"ok":true}`), "application/json"))
	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	require.NoError(t, s.Delete(ctx, key))

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
