package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ExecFunc runs a single statement with no arguments.
type ExecFunc func(ctx context.Context, sql string) error

// PgxExec adapts a pgx querier to an ExecFunc.
func PgxExec(q Querier) ExecFunc {
	return func(ctx context.Context, sql string) error {
		_, err := q.Exec(ctx, sql)
		return err
	}
}

// WithSavepoint runs fn between SAVEPOINT and RELEASE. If fn fails or
// panics, work done since the savepoint is rolled back and the enclosing
// transaction stays usable. Both Postgres and SQLite accept this syntax.
func WithSavepoint(ctx context.Context, exec ExecFunc, name string, fn func() error) (err error) {
	sp := pgx.Identifier{name}.Sanitize()
	if err := exec(ctx, "SAVEPOINT "+sp); err != nil {
		return eris.Wrapf(err, "db: savepoint %s", name)
	}

	rollback := func() error {
		if rbErr := exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return eris.Wrapf(rbErr, "db: rollback to savepoint %s", name)
		}
		return eris.Wrapf(exec(ctx, "RELEASE SAVEPOINT "+sp), "db: release savepoint %s", name)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = rollback()
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		if rbErr := rollback(); rbErr != nil {
			return eris.Wrap(rbErr, err.Error())
		}
		return err
	}
	return eris.Wrapf(exec(ctx, "RELEASE SAVEPOINT "+sp), "db: release savepoint %s", name)
}
