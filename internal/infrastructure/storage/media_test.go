package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/config"
)

func testStorageConfig(endpoint string) *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:          "listing-media",
		Region:          "us-west-2",
		Endpoint:        endpoint,
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
		PresignExpiry:   time.Hour,
	}
}

func TestNewS3MediaResolver_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3MediaResolver(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := testStorageConfig("http://localhost:9000")
		cfg.Bucket = ""
		_, err := NewS3MediaResolver(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half configured credentials return error", func(t *testing.T) {
		cfg := testStorageConfig("http://localhost:9000")
		cfg.SecretAccessKey = ""
		_, err := NewS3MediaResolver(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "set together")
	})

	t.Run("default presign expiry is seven days", func(t *testing.T) {
		cfg := testStorageConfig("http://localhost:9000")
		cfg.PresignExpiry = 0
		r, err := NewS3MediaResolver(ctx, cfg, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, 7*24*time.Hour, r.expiry)
		assert.Equal(t, "listing-media", r.Bucket())
	})
}

func TestS3MediaResolver_ResolveURL(t *testing.T) {
	ctx := context.Background()
	r, err := NewS3MediaResolver(ctx, testStorageConfig("http://localhost:9000"))
	require.NoError(t, err)

	t.Run("empty key returns error", func(t *testing.T) {
		_, err := r.ResolveURL(ctx, "  ")
		assert.ErrorIs(t, err, ErrMediaKeyRequired)
	})

	t.Run("presigns path-style URL", func(t *testing.T) {
		raw, err := r.ResolveURL(ctx, "/listings/123/front.jpg")
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "localhost:9000", u.Host)
		assert.Equal(t, "/listing-media/listings/123/front.jpg", u.Path)
		assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
		assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	})
}

func TestS3MediaResolver_VerifyObjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listing-media/present.jpg":
			w.WriteHeader(http.StatusOK)
		case "/listing-media/broken.jpg":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testStorageConfig(server.URL)
	cfg.VerifyObjects = true
	ctx := context.Background()
	r, err := NewS3MediaResolver(ctx, cfg)
	require.NoError(t, err)

	t.Run("existing object is presigned", func(t *testing.T) {
		raw, err := r.ResolveURL(ctx, "present.jpg")
		require.NoError(t, err)
		assert.Contains(t, raw, "/listing-media/present.jpg")
	})

	t.Run("missing object is reported", func(t *testing.T) {
		_, err := r.ResolveURL(ctx, "absent.jpg")
		assert.ErrorIs(t, err, ErrMediaNotFound)
	})

	t.Run("other failures are returned", func(t *testing.T) {
		_, err := r.ResolveURL(ctx, "broken.jpg")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMediaNotFound)
	})
}

func TestPublicURLResolver(t *testing.T) {
	ctx := context.Background()

	_, err := NewPublicURLResolver("cdn.example.com")
	assert.Error(t, err)

	r, err := NewPublicURLResolver("https://cdn.example.com/media/")
	require.NoError(t, err)

	got, err := r.ResolveURL(ctx, "/listings/12/back yard.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/listings/12/back%20yard.jpg", got)

	_, err = r.ResolveURL(ctx, "/")
	assert.ErrorIs(t, err, ErrMediaKeyRequired)
}

func TestNewMediaResolver(t *testing.T) {
	ctx := context.Background()

	r, err := NewMediaResolver(ctx, &config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = NewMediaResolver(ctx, &config.StorageConfig{PublicBaseURL: "https://cdn.example.com", Bucket: "ignored"})
	require.NoError(t, err)
	assert.IsType(t, &PublicURLResolver{}, r)

	r, err = NewMediaResolver(ctx, testStorageConfig("http://localhost:9000"))
	require.NoError(t, err)
	assert.IsType(t, &S3MediaResolver{}, r)

	_, err = NewMediaResolver(ctx, &config.StorageConfig{PublicBaseURL: "ftp://files"})
	assert.Error(t, err)
}
