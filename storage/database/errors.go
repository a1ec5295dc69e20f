package database

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/obeworks/kurikulum/core"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure of any supported engine.
func IsUniqueViolation(err error) bool {
	var (
		pqErr  *pq.Error
		pgxErr *pgconn.PgError
		litErr *sqlite.Error
	)
	switch {
	case errors.As(err, &pqErr):
		return string(pqErr.Code) == pgUniqueViolation
	case errors.As(err, &pgxErr):
		return pgxErr.Code == pgUniqueViolation
	case errors.As(err, &litErr):
		code := litErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// MapError turns unique violations into a *core.ConflictError carrying fallback,
// and wraps every other error with msg.
func MapError(err error, msg string, fallback error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return core.NewConflictError(fallback)
	}
	return errors.Wrap(err, msg)
}
