// internal/data/authors.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/aoideee/locallibrary/internal/validator"
)

// Author represents a person who wrote one or more books.
type Author struct {
	ID          int64  `json:"id" db:"id"`
	FirstName   string `json:"first_name" db:"first_name"`
	LastName    string `json:"last_name" db:"last_name"`
	DateOfBirth *Date  `json:"date_of_birth" db:"date_of_birth"`
	DateOfDeath *Date  `json:"date_of_death" db:"date_of_death"`
}

// String renders the author as "Last, First", the catalog's display order.
func (a Author) String() string {
	return fmt.Sprintf("%s, %s", a.LastName, a.FirstName)
}

// ValidateAuthor checks the fields a librarian supplies for an author.
func ValidateAuthor(v *validator.Validator, author *Author) {
	v.Check(validator.NotBlank(author.FirstName), "first_name", "must be provided")
	v.Check(validator.MaxChars(author.FirstName, 100), "first_name", "must not be more than 100 characters long")
	v.Check(validator.NotBlank(author.LastName), "last_name", "must be provided")
	v.Check(validator.MaxChars(author.LastName, 100), "last_name", "must not be more than 100 characters long")

	if author.DateOfBirth != nil && author.DateOfDeath != nil {
		v.Check(!author.DateOfDeath.Before(*author.DateOfBirth), "date_of_death", "must not be before date of birth")
	}
}

// CreateAuthorInput holds the fields a librarian supplies when creating an author.
type CreateAuthorInput struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth *Date  `json:"date_of_birth"`
	DateOfDeath *Date  `json:"date_of_death"`
}

// UpdateAuthorInput holds the fields a librarian may change on an author.
// An absent field leaves the stored value alone; a null date clears it.
type UpdateAuthorInput struct {
	FirstName   *string      `json:"first_name"`
	LastName    *string      `json:"last_name"`
	DateOfBirth NullableDate `json:"date_of_birth"`
	DateOfDeath NullableDate `json:"date_of_death"`
}

// Apply copies every provided field onto author.
func (in UpdateAuthorInput) Apply(author *Author) {
	if in.FirstName != nil {
		author.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		author.LastName = *in.LastName
	}
	if in.DateOfBirth.Set {
		author.DateOfBirth = in.DateOfBirth.Date
	}
	if in.DateOfDeath.Set {
		author.DateOfDeath = in.DateOfDeath.Date
	}
}

var authorColumns = []string{"id", "first_name", "last_name", "date_of_birth", "date_of_death"}

// AuthorModel wraps the connection pool for the authors table.
type AuthorModel struct {
	DB      Queryer
	Dialect Dialect
}

// Insert adds a new author and writes the assigned id back into author.
func (m AuthorModel) Insert(ctx context.Context, author *Author) error {
	id, err := insertReturningID(ctx, m.DB, m.Dialect,
		m.Dialect.builder().Insert("authors").
			Columns("first_name", "last_name", "date_of_birth", "date_of_death").
			Values(author.FirstName, author.LastName, author.DateOfBirth, author.DateOfDeath))
	if err != nil {
		return mapConstraintError(err)
	}
	author.ID = id
	return nil
}

// Get retrieves a single author by id.
// Returns ErrRecordNotFound if no author with the given id exists.
func (m AuthorModel) Get(ctx context.Context, id int64) (*Author, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query, args, err := m.Dialect.builder().
		Select(authorColumns...).From("authors").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var author Author
	if err := m.DB.GetContext(ctx, &author, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &author, nil
}

// GetAll retrieves a page of authors ordered by last name, then first name.
func (m AuthorModel) GetAll(ctx context.Context, filters Filters) ([]*Author, Metadata, error) {
	total, err := m.Count(ctx)
	if err != nil {
		return nil, Metadata{}, err
	}

	query, args, err := m.Dialect.builder().
		Select(authorColumns...).From("authors").
		OrderBy("last_name ASC", "first_name ASC", "id ASC").
		Limit(filters.limit()).Offset(filters.offset()).
		ToSql()
	if err != nil {
		return nil, Metadata{}, err
	}

	authors := []*Author{}
	if err := m.DB.SelectContext(ctx, &authors, query, args...); err != nil {
		return nil, Metadata{}, err
	}

	return authors, calculateMetadata(total, filters.Page, filters.PageSize), nil
}

// Update saves every field of author back to the database.
func (m AuthorModel) Update(ctx context.Context, author *Author) error {
	query, args, err := m.Dialect.builder().
		Update("authors").
		SetMap(map[string]any{
			"first_name":    author.FirstName,
			"last_name":     author.LastName,
			"date_of_birth": author.DateOfBirth,
			"date_of_death": author.DateOfDeath,
		}).
		Where(squirrel.Eq{"id": author.ID}).
		ToSql()
	if err != nil {
		return err
	}
	return execExpectingRow(ctx, m.DB, query, args...)
}

// Delete removes an author. Books written by the author survive with their
// author reference cleared; both steps commit together.
func (m AuthorModel) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	return withTx(ctx, m.DB, func(tx *sqlx.Tx) error {
		query, args, err := m.Dialect.builder().
			Update("books").Set("author_id", nil).Where(squirrel.Eq{"author_id": id}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		query, args, err = m.Dialect.builder().
			Delete("authors").Where(squirrel.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		return execExpectingRow(ctx, tx, query, args...)
	})
}

// Count returns the number of authors.
func (m AuthorModel) Count(ctx context.Context) (int, error) {
	return countRows(ctx, m.DB, m.Dialect.builder().Select("count(*)").From("authors"))
}
