package data_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/aoideee/locallibrary/internal/data"
)

// setupDB opens a private in-memory SQLite database with the catalog schema.
func setupDB(t testing.TB) data.Models {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, data.Up(context.Background(), db, data.SQLite))

	return data.NewModels(db, data.SQLite)
}

func insertAuthor(t testing.TB, m data.Models, first, last string) *data.Author {
	t.Helper()
	a := &data.Author{FirstName: first, LastName: last}
	require.NoError(t, m.Authors.Insert(context.Background(), a))
	return a
}

func insertBook(t testing.TB, m data.Models, title, isbn string, author *data.Author, genres ...*data.Genre) *data.Book {
	t.Helper()
	b := &data.Book{Title: title, ISBN: isbn, Summary: "summary of " + title}
	if author != nil {
		b.AuthorID = &author.ID
	}
	for _, g := range genres {
		b.GenreIDs = append(b.GenreIDs, g.ID)
	}
	require.NoError(t, m.Books.Insert(context.Background(), b))
	return b
}

func insertInstance(t testing.TB, m data.Models, book *data.Book, status data.LoanStatus) *data.BookInstance {
	t.Helper()
	bi := &data.BookInstance{BookID: book.ID, Imprint: "Imprint of " + book.Title, Status: status}
	require.NoError(t, m.Instances.Insert(context.Background(), bi))
	return bi
}

func insertUser(t testing.TB, m data.Models, email string) (*data.User, string) {
	t.Helper()
	u := &data.User{Name: email, Email: email, Activated: true}
	token, err := m.Users.Insert(context.Background(), u)
	require.NoError(t, err)
	return u, token
}
