package repository

import (
	"context"

	"github.com/web3-forum-api/internal/database"
	"github.com/web3-forum-api/internal/models"
)

// transactionRepo is the concrete implementation of TransactionRepository
type transactionRepo struct {
	db *database.DB
}

// NewTransactionRepo creates a new used-transaction repository
func NewTransactionRepo(db *database.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

// Record marks a transaction hash as consumed. The unique index on
// transaction_hash is the replay guard: a second insert of the same hash
// fails regardless of which request checked first.
func (r *transactionRepo) Record(ctx context.Context, tx *models.UsedTransaction) error {
	query := `
		INSERT INTO used_transactions
			(id, transaction_hash, transaction_type, user_address, post_id, comment_id, block_number, block_timestamp, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.TransactionHash, tx.TransactionType, tx.UserAddress,
		tx.PostID, tx.CommentID, tx.BlockNumber, tx.BlockTimestamp, tx.VerifiedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrTransactionUsed
	}
	return err
}

// IsUsed checks whether a transaction hash has been consumed
func (r *transactionRepo) IsUsed(ctx context.Context, hash string) (bool, error) {
	var used bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM used_transactions WHERE transaction_hash = $1)`, hash).Scan(&used)
	return used, err
}
