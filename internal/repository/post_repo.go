package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/web3-forum-api/internal/database"
	"github.com/web3-forum-api/internal/models"
)

// postRepo is the concrete implementation of PostRepository
type postRepo struct {
	db *database.DB
}

// NewPostRepo creates a new post repository
func NewPostRepo(db *database.DB) PostRepository {
	return &postRepo{db: db}
}

const postColumns = `id, user_address, title, content, tags, image_url, likes, comments_count, views,
	transaction_hash, chain_post_id, created_at, updated_at`

// Create inserts a new post
func (r *postRepo) Create(ctx context.Context, post *models.Post) error {
	tags, err := json.Marshal(post.Tags)
	if err != nil {
		return err
	}
	post.TagsJSON = string(tags)

	query := `
		INSERT INTO posts (id, user_address, title, content, tags, image_url, transaction_hash, chain_post_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		post.ID, post.UserAddress, post.Title, post.Content, post.TagsJSON,
		post.ImageURL, post.TransactionHash, post.ChainPostID,
		post.CreatedAt, post.UpdatedAt,
	)
	return err
}

// GetByID retrieves a post by ID, excluding soft-deleted rows
func (r *postRepo) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND deleted_at IS NULL`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// List retrieves posts ordered by newest first
func (r *postRepo) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.queryPosts(ctx, query, limit, offset)
}

// ListByUser retrieves a user's posts ordered by newest first
func (r *postRepo) ListByUser(ctx context.Context, address string, limit, offset int) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE user_address = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryPosts(ctx, query, address, limit, offset)
}

// ListSince retrieves all posts created after the given time, used by
// the recommendation refresh over its lookback window
func (r *postRepo) ListSince(ctx context.Context, since time.Time) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE created_at >= $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	return r.queryPosts(ctx, query, since)
}

// IncrementViews bumps the view counter
func (r *postRepo) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE posts SET views = views + 1 WHERE id = $1`, id)
	return err
}

// IncrementComments bumps the comment counter
func (r *postRepo) IncrementComments(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET comments_count = comments_count + 1, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// FindRecentDuplicate reports whether the author already submitted a
// post with identical title and content inside the window. Best-effort
// guard: concurrent duplicates can still race through.
func (r *postRepo) FindRecentDuplicate(ctx context.Context, address, title, content string, window time.Duration) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM posts
			WHERE user_address = $1 AND title = $2 AND content = $3
				AND created_at > NOW() - ($4 * INTERVAL '1 second')
				AND deleted_at IS NULL
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, address, title, content, window.Seconds()).Scan(&exists)
	return exists, err
}

// Count returns the total number of non-deleted posts
func (r *postRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE deleted_at IS NULL`).Scan(&count)
	return count, err
}

func (r *postRepo) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID, &post.UserAddress, &post.Title, &post.Content, &post.TagsJSON,
		&post.ImageURL, &post.Likes, &post.CommentsCount, &post.Views,
		&post.TransactionHash, &post.ChainPostID, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if post.TagsJSON != "" {
		if err := json.Unmarshal([]byte(post.TagsJSON), &post.Tags); err != nil {
			post.Tags = nil
		}
	}
	return &post, nil
}
