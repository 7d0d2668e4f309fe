package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes the repositories translate into domain errors.
const (
	PostgresUniqueViolation    = "23505"
	PostgresExclusionViolation = "23P01"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// IsPostgresError reports whether err carries the given PostgreSQL SQLSTATE code.
func IsPostgresError(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}

// IsPostgresConstraint reports whether err is a PostgreSQL error raised by the named constraint.
func IsPostgresConstraint(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint == constraint
	}
	return false
}

// IsMySQLDuplicateEntry reports whether err is a MySQL unique key violation.
func IsMySQLDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}
