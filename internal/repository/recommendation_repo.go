package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/web3-forum-api/internal/database"
	"github.com/web3-forum-api/internal/models"
)

// recommendationRepo is the concrete implementation of RecommendationRepository
type recommendationRepo struct {
	db *database.DB
}

// NewRecommendationRepo creates a new recommendation repository
func NewRecommendationRepo(db *database.DB) RecommendationRepository {
	return &recommendationRepo{db: db}
}

// ForDay retrieves the persisted ranking for a calendar day
func (r *recommendationRepo) ForDay(ctx context.Context, day time.Time) ([]*models.DailyRecommendation, error) {
	query := `
		SELECT id, post_id, rank_position, heat_score, created_at
		FROM daily_recommendations
		WHERE day = $1
		ORDER BY rank_position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.DailyRecommendation
	for rows.Next() {
		var rec models.DailyRecommendation
		err := rows.Scan(&rec.ID, &rec.PostID, &rec.RankPosition, &rec.HeatScore, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// ReplaceDay atomically swaps in a new ranking for a calendar day. The
// (day, rank_position) unique constraint makes concurrent refreshes
// resolve to one winner; the loser's delete-then-insert conflicts and
// rolls back, leaving the winner's rows intact.
func (r *recommendationRepo) ReplaceDay(ctx context.Context, day time.Time, recs []*models.DailyRecommendation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dayStr := day.Format("2006-01-02")
	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_recommendations WHERE day = $1`, dayStr); err != nil {
		return err
	}

	query := `
		INSERT INTO daily_recommendations (id, post_id, rank_position, heat_score, day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, rec := range recs {
		_, err := tx.ExecContext(ctx, query,
			rec.ID, rec.PostID, rec.RankPosition, rec.HeatScore, dayStr, rec.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LastRefreshTime returns when the ranking was last recomputed
func (r *recommendationRepo) LastRefreshTime(ctx context.Context) (time.Time, error) {
	var last time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(created_at), TIMESTAMPTZ 'epoch') FROM daily_recommendations`).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return last, err
}
