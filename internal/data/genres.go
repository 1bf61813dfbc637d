// internal/data/genres.go
package data

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/aoideee/locallibrary/internal/validator"
)

// Genre is a topical category applicable to many books.
type Genre struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

func (g Genre) String() string { return g.Name }

// ValidateGenre checks the fields a client supplies for a genre.
func ValidateGenre(v *validator.Validator, genre *Genre) {
	v.Check(validator.NotBlank(genre.Name), "name", "must be provided")
	v.Check(validator.MaxChars(genre.Name, 200), "name", "must not be more than 200 characters long")
}

// GenreModel wraps the connection pool for the genres table.
type GenreModel struct {
	DB      Queryer
	Dialect Dialect
}

// Insert adds a genre and writes the assigned id back into genre.
func (m GenreModel) Insert(ctx context.Context, genre *Genre) error {
	id, err := insertReturningID(ctx, m.DB, m.Dialect,
		m.Dialect.builder().Insert("genres").Columns("name").Values(genre.Name))
	if err != nil {
		return mapConstraintError(err)
	}
	genre.ID = id
	return nil
}

// Get retrieves a single genre by id.
func (m GenreModel) Get(ctx context.Context, id int64) (*Genre, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query, args, err := m.Dialect.builder().
		Select("id", "name").From("genres").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var genre Genre
	if err := m.DB.GetContext(ctx, &genre, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &genre, nil
}

// GetAll lists every genre ordered by name.
func (m GenreModel) GetAll(ctx context.Context) ([]*Genre, error) {
	query, args, err := m.Dialect.builder().
		Select("id", "name").From("genres").OrderBy("name ASC", "id ASC").ToSql()
	if err != nil {
		return nil, err
	}

	genres := []*Genre{}
	if err := m.DB.SelectContext(ctx, &genres, query, args...); err != nil {
		return nil, err
	}
	return genres, nil
}

// Update renames a genre.
func (m GenreModel) Update(ctx context.Context, genre *Genre) error {
	query, args, err := m.Dialect.builder().
		Update("genres").Set("name", genre.Name).Where(squirrel.Eq{"id": genre.ID}).ToSql()
	if err != nil {
		return err
	}
	return execExpectingRow(ctx, m.DB, query, args...)
}

// Delete removes a genre and unlinks it from every book.
func (m GenreModel) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	return withTx(ctx, m.DB, func(tx *sqlx.Tx) error {
		query, args, err := m.Dialect.builder().
			Delete("book_genres").Where(squirrel.Eq{"genre_id": id}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		query, args, err = m.Dialect.builder().
			Delete("genres").Where(squirrel.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		return execExpectingRow(ctx, tx, query, args...)
	})
}

// Count returns the number of genres.
func (m GenreModel) Count(ctx context.Context) (int, error) {
	return countRows(ctx, m.DB, m.Dialect.builder().Select("count(*)").From("genres"))
}

// insertReturningID runs an INSERT and returns the generated integer key.
// Postgres reports it through RETURNING; SQLite through LastInsertId.
func insertReturningID(ctx context.Context, db sqlx.ExtContext, dialect Dialect, ib squirrel.InsertBuilder) (int64, error) {
	if dialect.Name == Postgres.Name {
		query, args, err := ib.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, err
		}
		var id int64
		if err := sqlx.GetContext(ctx, db, &id, query, args...); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, args, err := ib.ToSql()
	if err != nil {
		return 0, err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// execExpectingRow runs a write and reports ErrRecordNotFound when it
// touched no rows.
func execExpectingRow(ctx context.Context, db sqlx.ExecerContext, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapConstraintError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
