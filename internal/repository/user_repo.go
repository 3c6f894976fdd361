package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/web3-forum-api/internal/database"
	"github.com/web3-forum-api/internal/models"
)

// userRepo is the concrete implementation of UserRepository
type userRepo struct {
	db *database.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *database.DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `address, COALESCE(username, ''), has_username, avatar_url, bio,
	posts_count, comments_count, created_at, updated_at`

// GetOrCreate returns the user row for an address, creating it on first
// contact. The insert probe tolerates concurrent first contacts.
func (r *userRepo) GetOrCreate(ctx context.Context, address string) (*models.User, error) {
	query := `
		INSERT INTO users (address, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (address) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, address, time.Now()); err != nil {
		return nil, err
	}
	return r.GetByAddress(ctx, address)
}

// GetByAddress retrieves a user by wallet address
func (r *userRepo) GetByAddress(ctx context.Context, address string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE address = $1`

	user, err := r.scanUser(r.db.QueryRowContext(ctx, query, address))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// GetByUsername retrieves a user by registered username
func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := r.scanUser(r.db.QueryRowContext(ctx, query, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// RegisterUsername assigns a username to an address. The partial unique
// index on username makes concurrent registrations of the same name
// resolve to exactly one winner; the has_username guard makes the call
// a no-op for users who already registered.
func (r *userRepo) RegisterUsername(ctx context.Context, address, username string) error {
	query := `
		UPDATE users
		SET username = $2, has_username = TRUE, updated_at = NOW()
		WHERE address = $1 AND has_username = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, address, username)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the address row does not exist or it already holds a
		// name; tell the two apart for the caller.
		var has bool
		err := r.db.QueryRowContext(ctx,
			`SELECT has_username FROM users WHERE address = $1`, address).Scan(&has)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrUsernameTaken
	}
	return nil
}

// UsernameExists checks whether a username is already registered
func (r *userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// UpdateAvatar stores the user's avatar URL
func (r *userRepo) UpdateAvatar(ctx context.Context, address, avatarURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_url = $2, updated_at = NOW() WHERE address = $1`, address, avatarURL)
	return err
}

// UpdateBio stores the user's bio
func (r *userRepo) UpdateBio(ctx context.Context, address, bio string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET bio = $2, updated_at = NOW() WHERE address = $1`, address, bio)
	return err
}

// IncrementPosts bumps the user's post counter
func (r *userRepo) IncrementPosts(ctx context.Context, address string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET posts_count = posts_count + 1, updated_at = NOW() WHERE address = $1`, address)
	return err
}

// IncrementComments bumps the user's comment counter
func (r *userRepo) IncrementComments(ctx context.Context, address string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET comments_count = comments_count + 1, updated_at = NOW() WHERE address = $1`, address)
	return err
}

// Count returns the total number of users
func (r *userRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// MostActive returns users ranked by reputation, then posts, then comments
func (r *userRepo) MostActive(ctx context.Context, limit int) ([]*models.ActiveUser, error) {
	query := `
		SELECT address, COALESCE(username, ''), posts_count, comments_count,
			posts_count * 10 + comments_count * 5 AS reputation
		FROM users
		WHERE posts_count > 0 OR comments_count > 0
		ORDER BY reputation DESC, posts_count DESC, comments_count DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.ActiveUser
	for rows.Next() {
		var u models.ActiveUser
		err := rows.Scan(&u.Address, &u.Username, &u.PostsCount, &u.CommentsCount, &u.Reputation)
		if err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (r *userRepo) scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.Address, &user.Username, &user.HasUsername, &user.AvatarURL, &user.Bio,
		&user.PostsCount, &user.CommentsCount, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
