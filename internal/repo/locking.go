package repo

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate appends a SELECT ... FOR UPDATE lock on dialects that support it.
// SQLite serializes writers on its own and rejects the FOR UPDATE syntax, so
// the clause is skipped there.
func ForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
