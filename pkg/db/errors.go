package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique-index
// violation. When constraintName is provided, a message naming that constraint
// matches directly; the generic Postgres and SQLite phrasings match either
// way, since SQLite reports violations by column rather than by index name.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsLockTimeout reports whether the error looks like a lock-acquisition
// timeout or a serialization failure, both of which callers may retry.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "could not obtain lock") ||
		strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access")
}
