// file: internals/helpers/dbtx.go
package helper

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate menambahkan SELECT ... FOR UPDATE.
// SQLite (dipakai test suite) tidak punya row lock — seluruh write sudah
// terserialisasi oleh engine-nya, jadi clause dilewati di sana.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
