package data_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoideee/locallibrary/internal/data"
	"github.com/aoideee/locallibrary/internal/validator"
)

func TestInstanceInsertDefaultsToMaintenance(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	book := insertBook(t, m, "Test Book 1", "ISBN111111", nil)
	bi := insertInstance(t, m, book, "")
	assert.NotEqual(t, uuid.Nil, bi.ID)

	got, err := m.Instances.Get(ctx, bi.ID)
	require.NoError(t, err)
	assert.Equal(t, data.StatusMaintenance, got.Status)
	assert.Equal(t, "Maintenance", got.Status.Label())
	assert.Nil(t, got.DueBack)
	assert.Nil(t, got.BorrowerID)
	assert.Equal(t, fmt.Sprintf("%s (Test Book 1)", bi.ID), got.Describe(book.Title))
}

func TestInstanceInsertRejectsBadReferences(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	err := m.Instances.Insert(ctx, &data.BookInstance{BookID: 404, Imprint: "nowhere"})
	assert.ErrorIs(t, err, data.ErrConstraintViolation)

	book := insertBook(t, m, "Real", "1", nil)
	err = m.Instances.Insert(ctx, &data.BookInstance{BookID: book.ID, Imprint: "x", Status: "z"})
	assert.ErrorIs(t, err, data.ErrConstraintViolation)
}

func TestInstanceLoanStateMustAgree(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	user, _ := insertUser(t, m, "reader@example.com")
	book := insertBook(t, m, "Strict", "321", nil)

	err := m.Instances.Insert(ctx, &data.BookInstance{BookID: book.ID, Imprint: "x", Status: data.StatusOnLoan})
	assert.ErrorIs(t, err, data.ErrConstraintViolation)

	err = m.Instances.Insert(ctx, &data.BookInstance{BookID: book.ID, Imprint: "x", Status: data.StatusAvailable, BorrowerID: &user.ID})
	assert.ErrorIs(t, err, data.ErrConstraintViolation)

	bi := insertInstance(t, m, book, data.StatusAvailable)
	bi.Status = data.StatusOnLoan
	assert.ErrorIs(t, m.Instances.Update(ctx, bi), data.ErrConstraintViolation)

	bi.BorrowerID = &user.ID
	require.NoError(t, m.Instances.Update(ctx, bi))

	v := validator.New()
	data.ValidateInstance(v, &data.BookInstance{BookID: book.ID, Imprint: "x", Status: data.StatusOnLoan})
	assert.Equal(t, "must be provided for a copy on loan", v.Errors["borrower_id"])
}

func TestInstanceGetMissing(t *testing.T) {
	m := setupDB(t)

	_, err := m.Instances.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func TestMarkOnLoanOnlyFromAvailable(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	user, _ := insertUser(t, m, "reader@example.com")
	book := insertBook(t, m, "Apes and Angels", "9780765379528", nil)
	due := data.NewDate(2026, time.November, 8)

	for _, status := range []data.LoanStatus{data.StatusMaintenance, data.StatusReserved} {
		bi := insertInstance(t, m, book, status)

		won, err := m.Instances.MarkOnLoan(ctx, bi.ID, user.ID, due)
		require.NoError(t, err)
		assert.False(t, won, string(status))

		got, err := m.Instances.Get(ctx, bi.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
		assert.Nil(t, got.BorrowerID)
	}

	bi := insertInstance(t, m, book, data.StatusAvailable)
	won, err := m.Instances.MarkOnLoan(ctx, bi.ID, user.ID, due)
	require.NoError(t, err)
	assert.True(t, won)

	other, _ := insertUser(t, m, "other@example.com")
	won, err = m.Instances.MarkOnLoan(ctx, bi.ID, other.ID, due.AddWeeks(1))
	require.NoError(t, err)
	assert.False(t, won)

	got, err := m.Instances.Get(ctx, bi.ID)
	require.NoError(t, err)
	assert.Equal(t, data.StatusOnLoan, got.Status)
	require.NotNil(t, got.BorrowerID)
	assert.Equal(t, user.ID, *got.BorrowerID)
	require.NotNil(t, got.DueBack)
	assert.True(t, got.DueBack.Equal(due))
}

func TestMarkOnLoanConcurrentBorrowersOneWinner(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	book := insertBook(t, m, "Contested", "777", nil)
	bi := insertInstance(t, m, book, data.StatusAvailable)
	due := data.NewDate(2026, time.November, 8)

	const borrowers = 8
	users := make([]*data.User, borrowers)
	for i := range users {
		users[i], _ = insertUser(t, m, fmt.Sprintf("reader%d@example.com", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
	)
	for _, u := range users {
		wg.Add(1)
		go func(u *data.User) {
			defer wg.Done()
			won, err := m.Instances.MarkOnLoan(ctx, bi.ID, u.ID, due)
			assert.NoError(t, err)
			if won {
				mu.Lock()
				winners = append(winners, u.ID)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	require.Len(t, winners, 1)

	got, err := m.Instances.Get(ctx, bi.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BorrowerID)
	assert.Equal(t, winners[0], *got.BorrowerID)
}

func TestSetDueBackChangesOnlyDueDate(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	user, _ := insertUser(t, m, "reader@example.com")
	book := insertBook(t, m, "Renewable", "888", nil)
	bi := insertInstance(t, m, book, data.StatusAvailable)

	_, err := m.Instances.MarkOnLoan(ctx, bi.ID, user.ID, data.NewDate(2026, time.October, 20))
	require.NoError(t, err)
	before, err := m.Instances.Get(ctx, bi.ID)
	require.NoError(t, err)

	newDue := data.NewDate(2026, time.November, 3)
	require.NoError(t, m.Instances.SetDueBack(ctx, bi.ID, newDue))

	after, err := m.Instances.Get(ctx, bi.ID)
	require.NoError(t, err)
	assert.True(t, after.DueBack.Equal(newDue))

	after.DueBack = before.DueBack
	assert.Equal(t, before, after)

	assert.ErrorIs(t, m.Instances.SetDueBack(ctx, uuid.New(), newDue), data.ErrRecordNotFound)
}

func TestBorrowedListingsOrderedByDueDate(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	alice, _ := insertUser(t, m, "alice@example.com")
	bob, _ := insertUser(t, m, "bob@example.com")
	book := insertBook(t, m, "Popular", "999", nil)

	loan := func(u *data.User, due data.Date) *data.BookInstance {
		bi := insertInstance(t, m, book, data.StatusAvailable)
		won, err := m.Instances.MarkOnLoan(ctx, bi.ID, u.ID, due)
		require.NoError(t, err)
		require.True(t, won)
		return bi
	}

	late := loan(alice, data.NewDate(2026, time.December, 1))
	early := loan(alice, data.NewDate(2026, time.October, 1))
	bobs := loan(bob, data.NewDate(2026, time.November, 1))
	insertInstance(t, m, book, data.StatusAvailable)

	page := data.Filters{Page: 1, PageSize: 10}
	ids := func(list []*data.BookInstance) []uuid.UUID {
		return lo.Map(list, func(bi *data.BookInstance, _ int) uuid.UUID { return bi.ID })
	}

	mine, meta, err := m.Instances.GetBorrowedBy(ctx, alice.ID, page)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID, late.ID}, ids(mine))
	assert.Equal(t, 2, meta.TotalRecords)

	all, meta, err := m.Instances.GetAllBorrowed(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID, bobs.ID, late.ID}, ids(all))
	assert.Equal(t, 3, meta.TotalRecords)

	available, err := m.Instances.CountByStatus(ctx, data.StatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, 1, available)
}

func TestIsOverdue(t *testing.T) {
	today := data.NewDate(2026, time.October, 18)
	yesterday := data.NewDate(2026, time.October, 17)
	tomorrow := data.NewDate(2026, time.October, 19)

	assert.True(t, data.BookInstance{DueBack: &yesterday}.IsOverdue(today))
	assert.False(t, data.BookInstance{DueBack: &today}.IsOverdue(today))
	assert.False(t, data.BookInstance{DueBack: &tomorrow}.IsOverdue(today))
	assert.False(t, data.BookInstance{}.IsOverdue(today))
}
