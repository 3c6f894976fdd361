package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/web3-forum-api/internal/models"
)

var (
	addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txHashRegex  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// IsValidAddress checks the 0x-prefixed 40-hex-digit wallet address format
func IsValidAddress(addr string) bool {
	return addressRegex.MatchString(addr)
}

// IsValidTransactionHash checks the 0x-prefixed 64-hex-digit hash format
func IsValidTransactionHash(hash string) bool {
	return txHashRegex.MatchString(hash)
}

// NormalizeUsername trims and NFC-normalizes a username so that visually
// identical names compare equal regardless of Unicode composition form.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// ValidateUsername checks the normalized username against the naming
// policy: 3-20 characters, each a letter, digit, underscore, or middle
// dot. Length is counted in characters, not bytes.
func ValidateUsername(username string) []ValidationError {
	var errors []ValidationError

	runes := []rune(username)
	if len(runes) < models.MinUsernameLength || len(runes) > models.MaxUsernameLength {
		errors = append(errors, ValidationError{
			Field: "username",
			Message: fmt.Sprintf("username must be %d-%d characters",
				models.MinUsernameLength, models.MaxUsernameLength),
			Value: username,
		})
		return errors
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '·' {
			errors = append(errors, ValidationError{
				Field:   "username",
				Message: "username may only contain letters, digits, underscores, and middle dots",
				Value:   username,
			})
			return errors
		}
	}
	return nil
}

// ValidatePost validates a post creation request
func ValidatePost(req *models.CreatePostRequest) []ValidationError {
	var errors []ValidationError

	if req.UserAddress == "" {
		errors = append(errors, ValidationError{Field: "user_address", Message: "user_address is required"})
	} else if !IsValidAddress(req.UserAddress) {
		errors = append(errors, ValidationError{Field: "user_address", Message: "invalid wallet address format", Value: req.UserAddress})
	}

	if strings.TrimSpace(req.Title) == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if len([]rune(req.Title)) > models.MaxTitleLength {
		errors = append(errors, ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("title exceeds maximum of %d characters", models.MaxTitleLength),
		})
	}

	if strings.TrimSpace(req.Content) == "" {
		errors = append(errors, ValidationError{Field: "content", Message: "content is required"})
	} else if len([]rune(req.Content)) > models.MaxContentLength {
		errors = append(errors, ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("content exceeds maximum of %d characters", models.MaxContentLength),
		})
	}

	if req.TransactionHash != "" && !IsValidTransactionHash(req.TransactionHash) {
		errors = append(errors, ValidationError{Field: "blockchain_transaction_hash", Message: "invalid transaction hash format", Value: req.TransactionHash})
	}

	return errors
}

// ValidateComment validates a comment creation request
func ValidateComment(req *models.CreateCommentRequest) []ValidationError {
	var errors []ValidationError

	if req.PostID == "" {
		errors = append(errors, ValidationError{Field: "post_id", Message: "post_id is required"})
	}

	if req.UserAddress == "" {
		errors = append(errors, ValidationError{Field: "user_address", Message: "user_address is required"})
	} else if !IsValidAddress(req.UserAddress) {
		errors = append(errors, ValidationError{Field: "user_address", Message: "invalid wallet address format", Value: req.UserAddress})
	}

	if strings.TrimSpace(req.Content) == "" {
		errors = append(errors, ValidationError{Field: "content", Message: "content is required"})
	} else if len([]rune(req.Content)) > models.MaxCommentLength {
		errors = append(errors, ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("content exceeds maximum of %d characters", models.MaxCommentLength),
		})
	}

	if req.TransactionHash != "" && !IsValidTransactionHash(req.TransactionHash) {
		errors = append(errors, ValidationError{Field: "blockchain_transaction_hash", Message: "invalid transaction hash format", Value: req.TransactionHash})
	}

	return errors
}

// ValidateBio validates a bio update request
func ValidateBio(req *models.UpdateBioRequest) []ValidationError {
	var errors []ValidationError

	if req.UserAddress == "" {
		errors = append(errors, ValidationError{Field: "user_address", Message: "user_address is required"})
	} else if !IsValidAddress(req.UserAddress) {
		errors = append(errors, ValidationError{Field: "user_address", Message: "invalid wallet address format", Value: req.UserAddress})
	}

	if len([]rune(req.Bio)) > models.MaxBioLength {
		errors = append(errors, ValidationError{
			Field:   "bio",
			Message: fmt.Sprintf("bio exceeds maximum of %d characters", models.MaxBioLength),
		})
	}

	return errors
}
