// internal/data/dialect.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect describes the SQL flavour behind a connection pool: how squirrel
// numbers its placeholders and which embedded schema applies.
type Dialect struct {
	Name        string
	placeholder squirrel.PlaceholderFormat
	schemaFile  string
}

var (
	// Postgres serves both the lib/pq ("postgres") and pgx ("pgx") drivers.
	Postgres = Dialect{Name: "postgres", placeholder: squirrel.Dollar, schemaFile: "schema/postgres.sql"}
	// SQLite serves the mattn/go-sqlite3 ("sqlite3") driver.
	SQLite = Dialect{Name: "sqlite3", placeholder: squirrel.Question, schemaFile: "schema/sqlite.sql"}
)

// DialectFor maps a database/sql driver name to its Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (d Dialect) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.placeholder)
}

// Postgres SQLSTATE codes for integrity_constraint_violation subclasses.
var constraintCodes = map[string]bool{
	"23502": true, // not_null_violation
	"23503": true, // foreign_key_violation
	"23505": true, // unique_violation
	"23514": true, // check_violation
}

// mapConstraintError translates driver-specific integrity errors into
// ErrConstraintViolation. Any other error is returned unchanged.
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && constraintCodes[string(pqErr.Code)] {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pqErr.Message)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && constraintCodes[pgErr.Code] {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, liteErr.Error())
	}

	return err
}

// Queryer is what the models run statements against: the pool, or a
// transaction opened by Models.WithTx.
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error. When db is already a transaction fn joins it and the
// outer caller decides.
func withTx(ctx context.Context, db Queryer, fn func(tx *sqlx.Tx) error) error {
	var tx *sqlx.Tx
	switch db := db.(type) {
	case *sqlx.Tx:
		return fn(db)
	case *sqlx.DB:
		var err error
		if tx, err = db.BeginTxx(ctx, nil); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot begin a transaction on %T", db)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// countRows runs a squirrel COUNT query and returns the single integer result.
func countRows(ctx context.Context, q sqlx.QueryerContext, sb squirrel.SelectBuilder) (int, error) {
	query, args, err := sb.ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}
