package models

import (
	"time"
)

// TransactionType identifies the on-chain action a transaction backed
type TransactionType string

const (
	TransactionTypePost     TransactionType = "POST"
	TransactionTypeComment  TransactionType = "COMMENT"
	TransactionTypeUsername TransactionType = "USERNAME_REGISTER"
)

// UsedTransaction records a consumed transaction hash for replay protection.
// The hash is unique across all transaction types.
type UsedTransaction struct {
	ID              string          `json:"id" db:"id"`
	TransactionHash string          `json:"transaction_hash" db:"transaction_hash"`
	TransactionType TransactionType `json:"transaction_type" db:"transaction_type"`
	UserAddress     string          `json:"user_address" db:"user_address"`
	PostID          *string         `json:"post_id,omitempty" db:"post_id"`
	CommentID       *string         `json:"comment_id,omitempty" db:"comment_id"`
	BlockNumber     *int64          `json:"block_number,omitempty" db:"block_number"`
	BlockTimestamp  *time.Time      `json:"block_timestamp,omitempty" db:"block_timestamp"`
	VerifiedAt      time.Time       `json:"verified_at" db:"verified_at"`
}
