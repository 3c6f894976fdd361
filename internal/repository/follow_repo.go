package repository

import (
	"context"

	"github.com/web3-forum-api/internal/database"
	"github.com/web3-forum-api/internal/models"
)

// followRepo is the concrete implementation of FollowRepository
type followRepo struct {
	db *database.DB
}

// NewFollowRepo creates a new follow repository
func NewFollowRepo(db *database.DB) FollowRepository {
	return &followRepo{db: db}
}

// Follow inserts a directed edge. Duplicate edges surface as
// ErrAlreadyFollowing so the service can report an idempotent outcome.
func (r *followRepo) Follow(ctx context.Context, follower, following string) error {
	if follower == following {
		return ErrSelfFollow
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO follows (follower_address, following_address)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, follower, following)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyFollowing
	}
	return nil
}

// Unfollow removes a directed edge
func (r *followRepo) Unfollow(ctx context.Context, follower, following string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_address = $1 AND following_address = $2
	`, follower, following)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFollowing
	}
	return nil
}

// IsFollowing checks whether the edge follower -> following exists
func (r *followRepo) IsFollowing(ctx context.Context, follower, following string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM follows WHERE follower_address = $1 AND following_address = $2)
	`, follower, following).Scan(&exists)
	return exists, err
}

// Following lists addresses the user follows, newest edge first
func (r *followRepo) Following(ctx context.Context, address string, limit, offset int) ([]string, error) {
	return r.queryAddresses(ctx, `
		SELECT following_address FROM follows
		WHERE follower_address = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, address, limit, offset)
}

// Followers lists addresses following the user, newest edge first
func (r *followRepo) Followers(ctx context.Context, address string, limit, offset int) ([]string, error) {
	return r.queryAddresses(ctx, `
		SELECT follower_address FROM follows
		WHERE following_address = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, address, limit, offset)
}

// Friends lists mutual follows
func (r *followRepo) Friends(ctx context.Context, address string, limit, offset int) ([]string, error) {
	return r.queryAddresses(ctx, `
		SELECT f.following_address
		FROM follows f
		JOIN follows b ON b.follower_address = f.following_address
			AND b.following_address = f.follower_address
		WHERE f.follower_address = $1
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
	`, address, limit, offset)
}

// Stats returns follower, following, and mutual counts for a user
func (r *followRepo) Stats(ctx context.Context, address string) (*models.FollowStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM follows WHERE following_address = $1),
			(SELECT COUNT(*) FROM follows WHERE follower_address = $1),
			(SELECT COUNT(*) FROM follows f
				JOIN follows b ON b.follower_address = f.following_address
					AND b.following_address = f.follower_address
				WHERE f.follower_address = $1)
	`
	var stats models.FollowStats
	err := r.db.QueryRowContext(ctx, query, address).Scan(
		&stats.FollowersCount, &stats.FollowingCount, &stats.FriendsCount)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *followRepo) queryAddresses(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, rows.Err()
}
