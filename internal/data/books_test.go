package data_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoideee/locallibrary/internal/data"
)

func TestBookInsertAndGetWithGenres(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	fantasy := &data.Genre{Name: "Fantasy"}
	poetry := &data.Genre{Name: "French Poetry"}
	require.NoError(t, m.Genres.Insert(ctx, fantasy))
	require.NoError(t, m.Genres.Insert(ctx, poetry))

	author := insertAuthor(t, m, "Patrick", "Rothfuss")
	book := insertBook(t, m, "The Name of the Wind", "9781473211896", author, poetry, fantasy)
	assert.NotZero(t, book.ID)

	got, err := m.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Name of the Wind", got.Title)
	require.NotNil(t, got.AuthorID)
	assert.Equal(t, author.ID, *got.AuthorID)
	assert.ElementsMatch(t, []int64{fantasy.ID, poetry.ID}, got.GenreIDs)

	genres, err := m.Books.Genres(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fantasy, French Poetry", data.DisplayGenre(genres))
}

func TestBookGetMissing(t *testing.T) {
	m := setupDB(t)

	_, err := m.Books.Get(context.Background(), 42)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func TestBookDuplicateISBNRejected(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	insertBook(t, m, "First", "9780765379528", nil)

	dup := &data.Book{Title: "Second", ISBN: "9780765379528"}
	err := m.Books.Insert(ctx, dup)
	assert.ErrorIs(t, err, data.ErrConstraintViolation)

	n, err := m.Books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBookInsertUnknownReferences(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	missingAuthor := int64(99)
	err := m.Books.Insert(ctx, &data.Book{Title: "Orphan", ISBN: "1", AuthorID: &missingAuthor})
	assert.ErrorIs(t, err, data.ErrConstraintViolation)

	err = m.Books.Insert(ctx, &data.Book{Title: "Orphan", ISBN: "2", GenreIDs: []int64{7}})
	assert.ErrorIs(t, err, data.ErrConstraintViolation)

	n, err := m.Books.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBookDeleteRestrictedByInstances(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	book := insertBook(t, m, "Death Wave", "9780765379504", nil)
	insertInstance(t, m, book, data.StatusAvailable)

	err := m.Books.Delete(ctx, book.ID)
	assert.ErrorIs(t, err, data.ErrConstraintViolation)

	_, err = m.Books.Get(ctx, book.ID)
	assert.NoError(t, err)
}

func TestBookDeleteWithoutInstances(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	genre := &data.Genre{Name: "Thriller"}
	require.NoError(t, m.Genres.Insert(ctx, genre))
	book := insertBook(t, m, "Lonely", "123", nil, genre)

	require.NoError(t, m.Books.Delete(ctx, book.ID))

	_, err := m.Books.Get(ctx, book.ID)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
	assert.ErrorIs(t, m.Books.Delete(ctx, book.ID), data.ErrRecordNotFound)
}

func TestBookUpdateReplacesGenres(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	a := &data.Genre{Name: "A"}
	b := &data.Genre{Name: "B"}
	require.NoError(t, m.Genres.Insert(ctx, a))
	require.NoError(t, m.Genres.Insert(ctx, b))

	book := insertBook(t, m, "Shifting", "555", nil, a)
	book.GenreIDs = []int64{b.ID}
	book.Title = "Shifted"
	require.NoError(t, m.Books.Update(ctx, book))

	got, err := m.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shifted", got.Title)
	assert.Equal(t, []int64{b.ID}, got.GenreIDs)
}

func TestBookGetAllPaginatesByTitle(t *testing.T) {
	m := setupDB(t)
	ctx := context.Background()

	// Inserted out of order so the listing has to sort.
	for _, i := range []int{7, 3, 12, 1, 9, 13, 5, 2, 11, 4, 8, 10, 6} {
		insertBook(t, m, fmt.Sprintf("Book %02d", i), fmt.Sprintf("ISBN%02d", i), nil)
	}

	page1, meta, err := m.Books.GetAll(ctx, data.Filters{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page1, 10)
	assert.Equal(t, "Book 01", page1[0].Title)
	assert.Equal(t, "Book 10", page1[9].Title)
	assert.Equal(t, data.Metadata{CurrentPage: 1, PageSize: 10, FirstPage: 1, LastPage: 2, TotalRecords: 13}, meta)

	page2, meta, err := m.Books.GetAll(ctx, data.Filters{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"Book 11", "Book 12", "Book 13"},
		lo.Map(page2, func(b *data.Book, _ int) string { return b.Title }))
	assert.False(t, meta.OutOfRange(data.Filters{Page: 2, PageSize: 10}))

	page3, meta, err := m.Books.GetAll(ctx, data.Filters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page3)
	assert.True(t, meta.OutOfRange(data.Filters{Page: 3, PageSize: 10}))
}

func TestDisplayGenreUsesFirstThree(t *testing.T) {
	genres := []*data.Genre{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}

	assert.Equal(t, "A, B, C", data.DisplayGenre(genres))
	assert.Equal(t, "A", data.DisplayGenre(genres[:1]))
	assert.Equal(t, "", data.DisplayGenre(nil))
}
