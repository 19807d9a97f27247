package db

import "gorm.io/gorm"

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// SupportsSkipLocked reports whether row locks in subqueries may use SKIP LOCKED.
func SupportsSkipLocked(conn *gorm.DB) bool {
	return DialectName(conn) == DialectPostgres
}
