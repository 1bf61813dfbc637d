// internal/data/instances.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aoideee/locallibrary/internal/validator"
)

// LoanStatus is the availability of a book instance, stored as a single letter.
type LoanStatus string

const (
	StatusMaintenance LoanStatus = "m"
	StatusOnLoan      LoanStatus = "o"
	StatusAvailable   LoanStatus = "a"
	StatusReserved    LoanStatus = "r"
)

// LoanStatuses lists every status in display order.
var LoanStatuses = []LoanStatus{StatusMaintenance, StatusOnLoan, StatusAvailable, StatusReserved}

var statusLabels = map[LoanStatus]string{
	StatusMaintenance: "Maintenance",
	StatusOnLoan:      "On loan",
	StatusAvailable:   "Available",
	StatusReserved:    "Reserved",
}

// Label returns the human-readable name of the status.
func (s LoanStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s LoanStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// BookInstance is one physical, lendable copy of a Book.
type BookInstance struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	Imprint    string     `json:"imprint" db:"imprint"`
	DueBack    *Date      `json:"due_back" db:"due_back"`
	BorrowerID *int64     `json:"borrower_id" db:"borrower_id"`
	Status     LoanStatus `json:"status" db:"status"`
}

// IsOverdue reports whether the instance was due back strictly before today.
func (bi BookInstance) IsOverdue(today Date) bool {
	return bi.DueBack != nil && bi.DueBack.Before(today)
}

// Describe renders the instance as "<id> (<title>)".
func (bi BookInstance) Describe(title string) string {
	return fmt.Sprintf("%s (%s)", bi.ID, title)
}

// ValidateInstance checks the fields supplied for a book instance.
func ValidateInstance(v *validator.Validator, bi *BookInstance) {
	v.Check(bi.BookID > 0, "book_id", "must be provided")
	v.Check(validator.NotBlank(bi.Imprint), "imprint", "must be provided")
	v.Check(validator.MaxChars(bi.Imprint, 200), "imprint", "must not be more than 200 characters long")
	v.Check(bi.Status == "" || validator.PermittedValue(bi.Status, LoanStatuses...), "status", "must be one of m, o, a, r")
	v.Check(bi.BorrowerID == nil || bi.Status == StatusOnLoan, "borrower_id", "must be empty unless the copy is on loan")
	v.Check(bi.BorrowerID != nil || bi.Status != StatusOnLoan, "borrower_id", "must be provided for a copy on loan")
}

// checkLoanState rejects a status the store does not know and any record
// where "on loan" and "has a borrower" disagree.
func checkLoanState(bi *BookInstance) error {
	if !bi.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrConstraintViolation, bi.Status)
	}
	if (bi.Status == StatusOnLoan) != (bi.BorrowerID != nil) {
		return fmt.Errorf("%w: status %q does not agree with borrower", ErrConstraintViolation, bi.Status)
	}
	return nil
}

var instanceColumns = []string{"id", "book_id", "imprint", "due_back", "borrower_id", "status"}

// InstanceModel wraps the connection pool for the book_instances table.
type InstanceModel struct {
	DB      Queryer
	Dialect Dialect
}

// Insert adds a new instance with a freshly generated id. An empty status
// defaults to Maintenance. The referenced book must exist.
func (m InstanceModel) Insert(ctx context.Context, bi *BookInstance) error {
	if bi.Status == "" {
		bi.Status = StatusMaintenance
	}
	if err := checkLoanState(bi); err != nil {
		return err
	}
	bi.ID = uuid.New()

	return withTx(ctx, m.DB, func(tx *sqlx.Tx) error {
		n, err := countRows(ctx, tx, m.Dialect.builder().
			Select("count(*)").From("books").Where(squirrel.Eq{"id": bi.BookID}))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: book %d does not exist", ErrConstraintViolation, bi.BookID)
		}

		query, args, err := m.Dialect.builder().
			Insert("book_instances").
			Columns(instanceColumns...).
			Values(bi.ID, bi.BookID, bi.Imprint, bi.DueBack, bi.BorrowerID, bi.Status).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return mapConstraintError(err)
		}
		return nil
	})
}

// Get retrieves a single instance by id.
// Returns ErrRecordNotFound if no instance with the given id exists.
func (m InstanceModel) Get(ctx context.Context, id uuid.UUID) (*BookInstance, error) {
	query, args, err := m.Dialect.builder().
		Select(instanceColumns...).From("book_instances").Where(squirrel.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, err
	}

	var bi BookInstance
	if err := m.DB.GetContext(ctx, &bi, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &bi, nil
}

// GetForBook returns every instance of a book. No ordering is promised.
func (m InstanceModel) GetForBook(ctx context.Context, bookID int64) ([]*BookInstance, error) {
	query, args, err := m.Dialect.builder().
		Select(instanceColumns...).From("book_instances").Where(squirrel.Eq{"book_id": bookID}).ToSql()
	if err != nil {
		return nil, err
	}

	instances := []*BookInstance{}
	if err := m.DB.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, err
	}
	return instances, nil
}

// Update saves every mutable field of bi. The book reference is fixed at
// creation and is not rewritten. Loans are normally made through MarkOnLoan.
func (m InstanceModel) Update(ctx context.Context, bi *BookInstance) error {
	if err := checkLoanState(bi); err != nil {
		return err
	}

	query, args, err := m.Dialect.builder().
		Update("book_instances").
		SetMap(map[string]any{
			"imprint":     bi.Imprint,
			"due_back":    bi.DueBack,
			"borrower_id": bi.BorrowerID,
			"status":      bi.Status,
		}).
		Where(squirrel.Eq{"id": bi.ID.String()}).
		ToSql()
	if err != nil {
		return err
	}
	return execExpectingRow(ctx, m.DB, query, args...)
}

// MarkOnLoan lends an instance to borrowerID until dueBack, but only if the
// instance is Available at the moment the statement runs. It reports whether
// this call performed the transition; a concurrent borrower that got there
// first makes it return false.
func (m InstanceModel) MarkOnLoan(ctx context.Context, id uuid.UUID, borrowerID int64, dueBack Date) (bool, error) {
	query, args, err := m.Dialect.builder().
		Update("book_instances").
		SetMap(map[string]any{
			"status":      StatusOnLoan,
			"borrower_id": borrowerID,
			"due_back":    dueBack,
		}).
		Where(squirrel.Eq{"id": id.String(), "status": StatusAvailable}).
		ToSql()
	if err != nil {
		return false, err
	}

	result, err := m.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapConstraintError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// SetDueBack changes only the due date of an instance.
func (m InstanceModel) SetDueBack(ctx context.Context, id uuid.UUID, dueBack Date) error {
	query, args, err := m.Dialect.builder().
		Update("book_instances").Set("due_back", dueBack).Where(squirrel.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return err
	}
	return execExpectingRow(ctx, m.DB, query, args...)
}

// GetBorrowedBy retrieves a page of the instances currently on loan to a
// user, ordered by due date.
func (m InstanceModel) GetBorrowedBy(ctx context.Context, userID int64, filters Filters) ([]*BookInstance, Metadata, error) {
	return m.onLoan(ctx, squirrel.Eq{"status": StatusOnLoan, "borrower_id": userID}, filters)
}

// GetAllBorrowed retrieves a page of every instance currently on loan,
// ordered by due date.
func (m InstanceModel) GetAllBorrowed(ctx context.Context, filters Filters) ([]*BookInstance, Metadata, error) {
	return m.onLoan(ctx, squirrel.Eq{"status": StatusOnLoan}, filters)
}

func (m InstanceModel) onLoan(ctx context.Context, where squirrel.Eq, filters Filters) ([]*BookInstance, Metadata, error) {
	total, err := countRows(ctx, m.DB, m.Dialect.builder().
		Select("count(*)").From("book_instances").Where(where))
	if err != nil {
		return nil, Metadata{}, err
	}

	query, args, err := m.Dialect.builder().
		Select(instanceColumns...).From("book_instances").
		Where(where).
		OrderBy("due_back IS NULL", "due_back ASC", "id ASC").
		Limit(filters.limit()).Offset(filters.offset()).
		ToSql()
	if err != nil {
		return nil, Metadata{}, err
	}

	instances := []*BookInstance{}
	if err := m.DB.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, Metadata{}, err
	}

	return instances, calculateMetadata(total, filters.Page, filters.PageSize), nil
}

// Count returns the number of instances.
func (m InstanceModel) Count(ctx context.Context) (int, error) {
	return countRows(ctx, m.DB, m.Dialect.builder().Select("count(*)").From("book_instances"))
}

// CountByStatus returns the number of instances in the given status.
func (m InstanceModel) CountByStatus(ctx context.Context, status LoanStatus) (int, error) {
	return countRows(ctx, m.DB, m.Dialect.builder().
		Select("count(*)").From("book_instances").Where(squirrel.Eq{"status": status}))
}
