package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/web3-forum-api/internal/database"
	"github.com/web3-forum-api/internal/models"
)

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	db *database.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{db: db}
}

const commentColumns = `id, post_id, parent_id, user_address, content, likes, transaction_hash, created_at`

// Create inserts a new comment
func (r *commentRepo) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, post_id, parent_id, user_address, content, transaction_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		comment.ID, comment.PostID, comment.ParentID, comment.UserAddress,
		comment.Content, comment.TransactionHash, comment.CreatedAt,
	)
	return err
}

// GetByID retrieves a comment by ID, excluding soft-deleted rows
func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1 AND deleted_at IS NULL`

	var comment models.Comment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID, &comment.PostID, &comment.ParentID, &comment.UserAddress,
		&comment.Content, &comment.Likes, &comment.TransactionHash, &comment.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByPost retrieves a post's comments ordered oldest first
func (r *commentRepo) ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error) {
	query := `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE post_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		var comment models.Comment
		err := rows.Scan(
			&comment.ID, &comment.PostID, &comment.ParentID, &comment.UserAddress,
			&comment.Content, &comment.Likes, &comment.TransactionHash, &comment.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

// FindRecentDuplicate reports whether the author already submitted an
// identical comment on the same post inside the window
func (r *commentRepo) FindRecentDuplicate(ctx context.Context, address, postID, content string, window time.Duration) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM comments
			WHERE user_address = $1 AND post_id = $2 AND content = $3
				AND created_at > NOW() - ($4 * INTERVAL '1 second')
				AND deleted_at IS NULL
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, address, postID, content, window.Seconds()).Scan(&exists)
	return exists, err
}

// Count returns the total number of non-deleted comments
func (r *commentRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE deleted_at IS NULL`).Scan(&count)
	return count, err
}
