package repository

import (
	"context"

	"github.com/lib/pq"

	"github.com/web3-forum-api/internal/database"
)

// likeRepo is the concrete implementation of LikeRepository
type likeRepo struct {
	db *database.DB
}

// NewLikeRepo creates a new like repository
func NewLikeRepo(db *database.DB) LikeRepository {
	return &likeRepo{db: db}
}

// TogglePostLike flips the viewer's like on a post. The like row and the
// post counter move together inside one transaction; the insert probe
// relies on the primary key so two concurrent likes from the same viewer
// produce exactly one row.
func (r *likeRepo) TogglePostLike(ctx context.Context, postID, address string) (bool, int, error) {
	return r.toggle(ctx, toggleTarget{
		insert:    `INSERT INTO post_likes (post_id, user_address) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		remove:    `DELETE FROM post_likes WHERE post_id = $1 AND user_address = $2`,
		increment: `UPDATE posts SET likes = likes + 1 WHERE id = $1 RETURNING likes`,
		decrement: `UPDATE posts SET likes = GREATEST(0, likes - 1) WHERE id = $1 RETURNING likes`,
	}, postID, address)
}

// ToggleCommentLike flips the viewer's like on a comment
func (r *likeRepo) ToggleCommentLike(ctx context.Context, commentID, address string) (bool, int, error) {
	return r.toggle(ctx, toggleTarget{
		insert:    `INSERT INTO comment_likes (comment_id, user_address) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		remove:    `DELETE FROM comment_likes WHERE comment_id = $1 AND user_address = $2`,
		increment: `UPDATE comments SET likes = likes + 1 WHERE id = $1 RETURNING likes`,
		decrement: `UPDATE comments SET likes = GREATEST(0, likes - 1) WHERE id = $1 RETURNING likes`,
	}, commentID, address)
}

type toggleTarget struct {
	insert    string
	remove    string
	increment string
	decrement string
}

func (r *likeRepo) toggle(ctx context.Context, t toggleTarget, entityID, address string) (bool, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, t.insert, entityID, address)
	if err != nil {
		return false, 0, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}

	var liked bool
	var likes int
	if inserted > 0 {
		liked = true
		err = tx.QueryRowContext(ctx, t.increment, entityID).Scan(&likes)
	} else {
		// Row already existed: this call is an unlike
		if _, err := tx.ExecContext(ctx, t.remove, entityID, address); err != nil {
			return false, 0, err
		}
		err = tx.QueryRowContext(ctx, t.decrement, entityID).Scan(&likes)
	}
	if err != nil {
		return false, 0, err
	}

	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return liked, likes, nil
}

// PostLikesByUser returns the subset of postIDs the viewer has liked
func (r *likeRepo) PostLikesByUser(ctx context.Context, address string, postIDs []string) (map[string]bool, error) {
	return r.likedSet(ctx,
		`SELECT post_id FROM post_likes WHERE user_address = $1 AND post_id = ANY($2)`,
		address, postIDs)
}

// CommentLikesByUser returns the subset of commentIDs the viewer has liked
func (r *likeRepo) CommentLikesByUser(ctx context.Context, address string, commentIDs []string) (map[string]bool, error) {
	return r.likedSet(ctx,
		`SELECT comment_id FROM comment_likes WHERE user_address = $1 AND comment_id = ANY($2)`,
		address, commentIDs)
}

func (r *likeRepo) likedSet(ctx context.Context, query, address string, ids []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return liked, nil
	}

	rows, err := r.db.QueryContext(ctx, query, address, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		liked[id] = true
	}
	return liked, rows.Err()
}

// CountPostLikes returns the total number of post like records
func (r *likeRepo) CountPostLikes(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_likes`).Scan(&count)
	return count, err
}
