// Package sqlxrepos implements the domain repositories with sqlx. Queries are written with
// `?` placeholders and rebound for the engine of the executor.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/storage/database"
)

type baseRepository struct {
	db core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.db
}

// trapNoRowsErr maps sql.ErrNoRows to a *core.NotFoundError.
func trapNoRowsErr(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundError(entity, id)
	}
	return errors.Wrapf(err, "getting %s", entity)
}

func get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func execute(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	return exec.ExecContext(ctx, exec.Rebind(query), args...)
}

func insert(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) error {
	_, err := sqlx.NamedExecContext(ctx, exec, query, arg)
	return err
}

// updateOne runs a named update and reports a *core.NotFoundError when nothing matched.
func updateOne(ctx context.Context, exec core.DBExecutor, query string, arg interface{}, entity, id string) error {
	res, err := sqlx.NamedExecContext(ctx, exec, query, arg)
	if err != nil {
		return err
	}
	return checkAffected(res, entity, id)
}

func deleteOne(ctx context.Context, exec core.DBExecutor, query, entity, id string) error {
	res, err := execute(ctx, exec, query, id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", entity)
	}
	return checkAffected(res, entity, id)
}

func checkAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return core.NewNotFoundError(entity, id)
	}
	return nil
}

func exists(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var n int
	if err := get(ctx, exec, &n, "SELECT COUNT(*) FROM ("+query+") AS matches", args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// mapWriteErr turns unique violations into a conflict carrying fallback.
func mapWriteErr(err error, msg string, fallback error) error {
	return database.MapError(err, msg, fallback)
}

type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
