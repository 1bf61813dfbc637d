// internal/data/models.go
package data

import (
	"context"
	"errors"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/aoideee/locallibrary/internal/validator"
)

var (
	// ErrRecordNotFound is returned when a query finds no matching row.
	ErrRecordNotFound = errors.New("record not found")

	// ErrConstraintViolation is returned when a write would break a uniqueness
	// or referential-integrity rule. Callers get the detail through wrapping.
	ErrConstraintViolation = errors.New("constraint violation")
)

// Models is a top-level container that groups all database model types together.
// It is passed around the application via applicationDependencies so every handler
// has access to the database without importing sql directly.
type Models struct {
	Genres      GenreModel      // genres and the book_genres link table
	Authors     AuthorModel     // authors, nullify-on-delete for books
	Books       BookModel       // title-level catalog records
	Instances   InstanceModel   // lendable copies and their loan state
	Users       UserModel       // actors resolved from bearer tokens
	Permissions PermissionModel // capability codes per user

	db      *sqlx.DB
	dialect Dialect
}

// NewModels constructs a Models value wired up to the given database connection pool.
// Call this once during application startup and store the result in applicationDependencies.
func NewModels(db *sqlx.DB, dialect Dialect) Models {
	m := newModels(db, dialect)
	m.db = db
	return m
}

func newModels(q Queryer, dialect Dialect) Models {
	return Models{
		Genres:      GenreModel{DB: q, Dialect: dialect},
		Authors:     AuthorModel{DB: q, Dialect: dialect},
		Books:       BookModel{DB: q, Dialect: dialect},
		Instances:   InstanceModel{DB: q, Dialect: dialect},
		Users:       UserModel{DB: q, Dialect: dialect},
		Permissions: PermissionModel{DB: q, Dialect: dialect},
		dialect:     dialect,
	}
}

// WithTx runs fn with Models bound to one transaction. Everything fn writes
// is committed when it returns nil and rolled back otherwise.
func (m Models) WithTx(ctx context.Context, fn func(tx Models) error) error {
	if m.db == nil {
		return errors.New("models are already bound to a transaction")
	}
	return withTx(ctx, m.db, func(tx *sqlx.Tx) error {
		return fn(newModels(tx, m.dialect))
	})
}

// MaxPageSize caps the page_size query parameter.
const MaxPageSize = 100

// Filters holds pagination parameters extracted from URL query strings.
// Orderings are fixed per listing, so there is no sort field.
type Filters struct {
	Page     int // Current page number (1-indexed)
	PageSize int // Number of records per page
}

// ValidateFilters records an error for every out-of-range pagination value.
func ValidateFilters(v *validator.Validator, f Filters) {
	v.Check(f.Page > 0, "page", "must be greater than zero")
	v.Check(f.Page <= 10_000_000, "page", "must be a maximum of 10 million")
	v.Check(f.PageSize > 0, "page_size", "must be greater than zero")
	v.Check(f.PageSize <= MaxPageSize, "page_size", "must be a maximum of 100")
}

// limit returns the SQL LIMIT value derived from PageSize.
func (f Filters) limit() uint64 { return uint64(f.PageSize) }

// offset returns the SQL OFFSET value derived from Page and PageSize.
func (f Filters) offset() uint64 { return uint64((f.Page - 1) * f.PageSize) }

// Metadata contains pagination information returned alongside list responses.
type Metadata struct {
	CurrentPage  int `json:"current_page,omitempty"`
	PageSize     int `json:"page_size,omitempty"`
	FirstPage    int `json:"first_page,omitempty"`
	LastPage     int `json:"last_page,omitempty"`
	TotalRecords int `json:"total_records,omitempty"`
}

// OutOfRange reports whether the requested page lies past the last page.
// An empty listing has no pages, so page 1 of it is still in range.
func (m Metadata) OutOfRange(f Filters) bool {
	if m.TotalRecords == 0 {
		return f.Page > 1
	}
	return f.Page > m.LastPage
}

// calculateMetadata computes page metadata from total record count and filter values.
func calculateMetadata(totalRecords, page, pageSize int) Metadata {
	if totalRecords == 0 {
		return Metadata{}
	}
	return Metadata{
		CurrentPage:  page,
		PageSize:     pageSize,
		FirstPage:    1,
		LastPage:     int(math.Ceil(float64(totalRecords) / float64(pageSize))),
		TotalRecords: totalRecords,
	}
}
