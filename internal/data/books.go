// internal/data/books.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/aoideee/locallibrary/internal/validator"
)

// Book is a title-level catalog record, not a physical copy.
type Book struct {
	ID       int64   `json:"id" db:"id"`
	Title    string  `json:"title" db:"title"`
	AuthorID *int64  `json:"author_id" db:"author_id"`
	Summary  string  `json:"summary" db:"summary"`
	ISBN     string  `json:"isbn" db:"isbn"`
	GenreIDs []int64 `json:"genre_ids" db:"-"`
}

func (b Book) String() string { return b.Title }

// DisplayGenre joins the names of the first three genres.
func DisplayGenre(genres []*Genre) string {
	names := lo.Map(lo.Slice(genres, 0, 3), func(g *Genre, _ int) string { return g.Name })
	return strings.Join(names, ", ")
}

// ValidateBook checks the fields supplied for a book.
func ValidateBook(v *validator.Validator, book *Book) {
	v.Check(validator.NotBlank(book.Title), "title", "must be provided")
	v.Check(validator.MaxChars(book.Title, 200), "title", "must not be more than 200 characters long")
	v.Check(validator.MaxChars(book.Summary, 1000), "summary", "must not be more than 1000 characters long")
	v.Check(validator.NotBlank(book.ISBN), "isbn", "must be provided")
	v.Check(validator.MaxChars(book.ISBN, 13), "isbn", "must not be more than 13 characters long")
	v.Check(validator.Unique(book.GenreIDs), "genre_ids", "must not contain duplicate values")
}

var bookColumns = []string{"id", "title", "author_id", "summary", "isbn"}

// BookModel wraps the connection pool for the books and book_genres tables.
type BookModel struct {
	DB      Queryer
	Dialect Dialect
}

// Insert adds a new book together with its genre links.
// A duplicate ISBN or a dangling author/genre reference yields ErrConstraintViolation.
func (m BookModel) Insert(ctx context.Context, book *Book) error {
	book.GenreIDs = lo.Uniq(book.GenreIDs)

	return withTx(ctx, m.DB, func(tx *sqlx.Tx) error {
		if err := m.checkReferences(ctx, tx, book); err != nil {
			return err
		}

		id, err := insertReturningID(ctx, tx, m.Dialect,
			m.Dialect.builder().Insert("books").
				Columns("title", "author_id", "summary", "isbn").
				Values(book.Title, book.AuthorID, book.Summary, book.ISBN))
		if err != nil {
			return mapConstraintError(err)
		}
		book.ID = id

		return m.linkGenres(ctx, tx, book)
	})
}

// Get retrieves a single book and its genre ids.
// Returns ErrRecordNotFound if no book with the given id exists.
func (m BookModel) Get(ctx context.Context, id int64) (*Book, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query, args, err := m.Dialect.builder().
		Select(bookColumns...).From("books").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var book Book
	if err := m.DB.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	genres, err := m.Genres(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	book.GenreIDs = lo.Map(genres, func(g *Genre, _ int) int64 { return g.ID })

	return &book, nil
}

// Genres returns the genres linked to a book, ordered by name.
func (m BookModel) Genres(ctx context.Context, bookID int64) ([]*Genre, error) {
	query, args, err := m.Dialect.builder().
		Select("genres.id", "genres.name").
		From("genres").
		Join("book_genres ON book_genres.genre_id = genres.id").
		Where(squirrel.Eq{"book_genres.book_id": bookID}).
		OrderBy("genres.name ASC", "genres.id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	genres := []*Genre{}
	if err := m.DB.SelectContext(ctx, &genres, query, args...); err != nil {
		return nil, err
	}
	return genres, nil
}

// GetAll retrieves a page of books ordered ascending by title.
// Genre ids are not loaded for listings.
func (m BookModel) GetAll(ctx context.Context, filters Filters) ([]*Book, Metadata, error) {
	total, err := m.Count(ctx)
	if err != nil {
		return nil, Metadata{}, err
	}

	query, args, err := m.Dialect.builder().
		Select(bookColumns...).From("books").
		OrderBy("title ASC", "id ASC").
		Limit(filters.limit()).Offset(filters.offset()).
		ToSql()
	if err != nil {
		return nil, Metadata{}, err
	}

	books := []*Book{}
	if err := m.DB.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, Metadata{}, err
	}

	return books, calculateMetadata(total, filters.Page, filters.PageSize), nil
}

// GetForAuthor lists the books that reference an author, ordered by title.
func (m BookModel) GetForAuthor(ctx context.Context, authorID int64) ([]*Book, error) {
	query, args, err := m.Dialect.builder().
		Select(bookColumns...).From("books").
		Where(squirrel.Eq{"author_id": authorID}).
		OrderBy("title ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	books := []*Book{}
	if err := m.DB.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// Update saves every field of book and replaces its genre links.
func (m BookModel) Update(ctx context.Context, book *Book) error {
	book.GenreIDs = lo.Uniq(book.GenreIDs)

	return withTx(ctx, m.DB, func(tx *sqlx.Tx) error {
		if err := m.checkReferences(ctx, tx, book); err != nil {
			return err
		}

		query, args, err := m.Dialect.builder().
			Update("books").
			SetMap(map[string]any{
				"title":     book.Title,
				"author_id": book.AuthorID,
				"summary":   book.Summary,
				"isbn":      book.ISBN,
			}).
			Where(squirrel.Eq{"id": book.ID}).
			ToSql()
		if err != nil {
			return err
		}
		if err := execExpectingRow(ctx, tx, query, args...); err != nil {
			return err
		}

		query, args, err = m.Dialect.builder().
			Delete("book_genres").Where(squirrel.Eq{"book_id": book.ID}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		return m.linkGenres(ctx, tx, book)
	})
}

// Delete removes a book. It is refused with ErrConstraintViolation while
// any instance of the book exists.
func (m BookModel) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	return withTx(ctx, m.DB, func(tx *sqlx.Tx) error {
		instances, err := countRows(ctx, tx, m.Dialect.builder().
			Select("count(*)").From("book_instances").Where(squirrel.Eq{"book_id": id}))
		if err != nil {
			return err
		}
		if instances > 0 {
			return fmt.Errorf("%w: book %d still has %d instance(s)", ErrConstraintViolation, id, instances)
		}

		query, args, err := m.Dialect.builder().
			Delete("book_genres").Where(squirrel.Eq{"book_id": id}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		query, args, err = m.Dialect.builder().
			Delete("books").Where(squirrel.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		return execExpectingRow(ctx, tx, query, args...)
	})
}

// Count returns the number of books.
func (m BookModel) Count(ctx context.Context) (int, error) {
	return countRows(ctx, m.DB, m.Dialect.builder().Select("count(*)").From("books"))
}

// checkReferences verifies the author and every genre a book points at.
func (m BookModel) checkReferences(ctx context.Context, tx *sqlx.Tx, book *Book) error {
	if book.AuthorID != nil {
		n, err := countRows(ctx, tx, m.Dialect.builder().
			Select("count(*)").From("authors").Where(squirrel.Eq{"id": *book.AuthorID}))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: author %d does not exist", ErrConstraintViolation, *book.AuthorID)
		}
	}

	if len(book.GenreIDs) > 0 {
		n, err := countRows(ctx, tx, m.Dialect.builder().
			Select("count(*)").From("genres").Where(squirrel.Eq{"id": book.GenreIDs}))
		if err != nil {
			return err
		}
		if n != len(book.GenreIDs) {
			return fmt.Errorf("%w: unknown genre in %v", ErrConstraintViolation, book.GenreIDs)
		}
	}

	return nil
}

func (m BookModel) linkGenres(ctx context.Context, tx *sqlx.Tx, book *Book) error {
	if len(book.GenreIDs) == 0 {
		return nil
	}

	ib := m.Dialect.builder().Insert("book_genres").Columns("book_id", "genre_id")
	for _, genreID := range book.GenreIDs {
		ib = ib.Values(book.ID, genreID)
	}

	query, args, err := ib.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return mapConstraintError(err)
	}
	return nil
}
