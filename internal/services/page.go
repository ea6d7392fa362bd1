package services

import (
	"errors"

	"github.com/tbourn/go-review-catalog/internal/repo"
	"github.com/tbourn/go-review-catalog/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageBounds converts a 1-based page and a page size into offset/limit,
// applying defaults to out-of-range input.
func pageBounds(page, pageSize int) (offset, limit int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageSize = utils.Clamp(pageSize, 1, maxPageSize)
	return utils.Offset(page, pageSize), pageSize
}

// notFoundAs replaces a repository not-found error with target.
func notFoundAs(err, target error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return target
	}
	return err
}
