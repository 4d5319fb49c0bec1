// Package utils provides small, generic helpers independent of the bot's
// domain logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int, returning def when the string is
// empty or not a valid integer. Used to read optional numeric query
// parameters (page, page_size) on the audit listing without error plumbing.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
