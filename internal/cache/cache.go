// Package cache provides read-through caching for hot list endpoints.
// Cached pages hold base data only; viewer-specific like status is
// overlaid by the query service after retrieval.
package cache

import (
	"context"
	"time"

	"github.com/web3-forum-api/internal/models"
)

// TTLs and key prefixes for the cached pages
const (
	PostsTTL    = 300 * time.Second
	CommentsTTL = 180 * time.Second

	postsKeyPrefix    = "posts:"
	commentsKeyPrefix = "comments:"
)

// Cache abstracts the cache backend. A miss is reported as (nil, false,
// nil); backend failures surface as errors so callers can degrade to
// the store without failing the request.
type Cache interface {
	GetPosts(ctx context.Context, limit, offset int) ([]*models.Post, bool, error)
	SetPosts(ctx context.Context, limit, offset int, posts []*models.Post) error
	InvalidatePosts(ctx context.Context) error

	GetComments(ctx context.Context, postID string) ([]*models.Comment, bool, error)
	SetComments(ctx context.Context, postID string, comments []*models.Comment) error
	InvalidateComments(ctx context.Context, postID string) error

	// AcquireLock takes a best-effort distributed lock (SET NX EX).
	// Returns false when another holder owns the lock.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	Close() error
}

// Noop is the fallback used when no cache backend is configured. Every
// read misses, every lock acquisition succeeds.
type Noop struct{}

// NewNoop creates a no-op cache
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) GetPosts(ctx context.Context, limit, offset int) ([]*models.Post, bool, error) {
	return nil, false, nil
}

func (n *Noop) SetPosts(ctx context.Context, limit, offset int, posts []*models.Post) error {
	return nil
}

func (n *Noop) InvalidatePosts(ctx context.Context) error { return nil }

func (n *Noop) GetComments(ctx context.Context, postID string) ([]*models.Comment, bool, error) {
	return nil, false, nil
}

func (n *Noop) SetComments(ctx context.Context, postID string, comments []*models.Comment) error {
	return nil
}

func (n *Noop) InvalidateComments(ctx context.Context, postID string) error { return nil }

func (n *Noop) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (n *Noop) ReleaseLock(ctx context.Context, key string) error { return nil }

func (n *Noop) Close() error { return nil }
