package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound indicates that the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate indicates a uniqueness violation. For save actions this is the
// distinguishable conflict the pipeline treats as "already saved".
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects unique-constraint violations across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
