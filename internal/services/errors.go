// Package services holds the catalog's business rules: review and comment
// ownership and uniqueness, rating aggregation, the confirmation code
// exchange, and the CRUD use-cases around them.
//
// Errors fall into a small taxonomy so handlers can map them without knowing
// every case: ErrValidation, ErrNotFound, ErrDuplicate and ErrAuth are the
// families; permission denials come from package authz. Match with errors.Is.
package services

import (
	"errors"
	"fmt"
)

// Error families.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("already exists")
	ErrAuth       = errors.New("authentication failed")
)

// kindError is a concrete error that belongs to one family.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Not-found errors.
var (
	ErrTitleNotFound    = &kindError{ErrNotFound, "title not found"}
	ErrReviewNotFound   = &kindError{ErrNotFound, "review not found"}
	ErrCommentNotFound  = &kindError{ErrNotFound, "comment not found"}
	ErrCategoryNotFound = &kindError{ErrNotFound, "category not found"}
	ErrGenreNotFound    = &kindError{ErrNotFound, "genre not found"}
	ErrUserNotFound     = &kindError{ErrNotFound, "user not found"}
)

// Duplicate errors.
var (
	// ErrDuplicateReview is returned for a second review by the same author
	// on the same title.
	ErrDuplicateReview   = &kindError{ErrDuplicate, "you have already reviewed this title"}
	ErrDuplicateSlug     = &kindError{ErrDuplicate, "slug already in use"}
	ErrDuplicateUsername = &kindError{ErrDuplicate, "username or email already in use"}
)

// Credential exchange errors. Handlers must not reveal which one occurred.
var (
	ErrUnknownAccount          = &kindError{ErrAuth, "no active account"}
	ErrInvalidConfirmationCode = &kindError{ErrAuth, "invalid confirmation code"}
	ErrInvalidToken            = &kindError{ErrAuth, "token is invalid or expired"}
)

// ValidationError reports one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
