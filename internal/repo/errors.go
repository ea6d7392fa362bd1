package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist. It aliases
// gorm.ErrRecordNotFound so either can be matched with errors.Is.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate is returned when an insert or update hits a unique index.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects unique index violations. glebarez/sqlite does not
// always translate them into gorm.ErrDuplicatedKey, so the message is checked
// as well.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// translate maps unique violations onto ErrDuplicate and leaves other errors
// untouched.
func translate(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// affected turns a zero-row update or delete into ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}
