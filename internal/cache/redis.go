package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/config"
	"github.com/web3-forum-api/internal/models"
)

// Redis implements Cache on top of a redigo connection pool
type Redis struct {
	pool *redis.Pool
	log  zerolog.Logger
}

// NewRedis creates a redis-backed cache and verifies connectivity with
// a PING so a misconfigured backend is caught at startup.
func NewRedis(cfg *config.RedisConfig, log zerolog.Logger) (*Redis, error) {
	pool := &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, cfg.URL,
				redis.DialConnectTimeout(cfg.DialTimeout),
				redis.DialReadTimeout(cfg.ReadTimeout),
			)
		},
	}

	conn, err := pool.GetContext(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	r := &Redis{
		pool: pool,
		log:  log.With().Str("component", "cache").Logger(),
	}
	r.log.Info().Msg("Redis cache connected")
	return r, nil
}

func postsKey(limit, offset int) string {
	return fmt.Sprintf("%s%d:%d", postsKeyPrefix, limit, offset)
}

func commentsKey(postID string) string {
	return commentsKeyPrefix + postID
}

// GetPosts looks up a cached post page
func (r *Redis) GetPosts(ctx context.Context, limit, offset int) ([]*models.Post, bool, error) {
	var posts []*models.Post
	ok, err := r.getJSON(ctx, postsKey(limit, offset), &posts)
	return posts, ok, err
}

// SetPosts caches a post page for PostsTTL
func (r *Redis) SetPosts(ctx context.Context, limit, offset int, posts []*models.Post) error {
	return r.setJSON(ctx, postsKey(limit, offset), posts, PostsTTL)
}

// InvalidatePosts drops every cached post page
func (r *Redis) InvalidatePosts(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	keys, err := redis.Strings(conn.Do("KEYS", postsKeyPrefix+"*"))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	_, err = conn.Do("DEL", args...)
	return err
}

// GetComments looks up a post's cached comment page
func (r *Redis) GetComments(ctx context.Context, postID string) ([]*models.Comment, bool, error) {
	var comments []*models.Comment
	ok, err := r.getJSON(ctx, commentsKey(postID), &comments)
	return comments, ok, err
}

// SetComments caches a post's comments for CommentsTTL
func (r *Redis) SetComments(ctx context.Context, postID string, comments []*models.Comment) error {
	return r.setJSON(ctx, commentsKey(postID), comments, CommentsTTL)
}

// InvalidateComments drops a post's cached comments
func (r *Redis) InvalidateComments(ctx context.Context, postID string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("DEL", commentsKey(postID))
	return err
}

// AcquireLock takes the lock with SET NX EX semantics
func (r *Redis) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	reply, err := redis.String(conn.Do("SET", key, "1", "NX", "EX", int(ttl.Seconds())))
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return reply == "OK", nil
}

// ReleaseLock drops the lock
func (r *Redis) ReleaseLock(ctx context.Context, key string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("DEL", key)
	return err
}

// Close shuts down the connection pool
func (r *Redis) Close() error {
	return r.pool.Close()
}

func (r *Redis) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", key))
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// Treat a corrupt entry as a miss and drop it
		r.log.Warn().Str("key", key).Err(err).Msg("Dropping unparseable cache entry")
		conn.Do("DEL", key)
		return false, nil
	}
	return true, nil
}

func (r *Redis) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SET", key, data, "EX", int(ttl.Seconds()))
	return err
}
