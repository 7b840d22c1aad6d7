package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	infraconfig "github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/config"
)

var _ integration.MediaURLResolver = (*PublicURLResolver)(nil)

// PublicURLResolver joins media keys onto a public origin such as a CDN
type PublicURLResolver struct {
	base *url.URL
}

// NewPublicURLResolver creates a resolver for an absolute http(s) base URL
func NewPublicURLResolver(baseURL string) (*PublicURLResolver, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("storage: public base URL must be absolute http(s)")
	}
	return &PublicURLResolver{base: u}, nil
}

// ResolveURL returns base/key with the key path-escaped per segment
func (r *PublicURLResolver) ResolveURL(ctx context.Context, key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", ErrMediaKeyRequired
	}
	return r.base.JoinPath(strings.Split(key, "/")...).String(), nil
}

// NewMediaResolver picks the resolver configured for media. It returns nil
// when neither a public origin nor a bucket is configured, which leaves
// attachment fields unresolved.
func NewMediaResolver(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3MediaOption) (integration.MediaURLResolver, error) {
	switch {
	case cfg == nil:
		return nil, nil
	case cfg.PublicBaseURL != "":
		r, err := NewPublicURLResolver(cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case cfg.Bucket != "":
		r, err := NewS3MediaResolver(ctx, cfg, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, nil
	}
}
