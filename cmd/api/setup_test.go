package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/aoideee/locallibrary/internal/circulation"
	"github.com/aoideee/locallibrary/internal/data"
)

// testToday is the fixed "today" of every handler test.
var testToday = time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)

type testApp struct {
	*applicationDependencies
	handler http.Handler
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, data.Up(context.Background(), db, data.SQLite))

	var settings serverConfig
	settings.environment = "testing"
	settings.session.key = "test-session-key"
	settings.catalog.pageSize = 10
	settings.catalog.loanWeeks = circulation.DefaultLoanWeeks
	settings.catalog.maxRenewWeeks = circulation.DefaultMaxRenewWeeks
	settings.catalog.deathDefault = data.NewDate(2023, time.November, 11)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := newApplication(settings, logger, db, data.SQLite,
		circulation.WithClock(func() time.Time { return testToday }))

	return &testApp{applicationDependencies: app, handler: app.routes()}
}

// request sends a request through the full middleware chain. token may be
// empty for an anonymous caller.
func (ta *testApp) request(t *testing.T, method, path, token, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func (ta *testApp) user(t *testing.T, email string, permissions ...string) (*data.User, string) {
	t.Helper()
	ctx := context.Background()

	u := &data.User{Name: email, Email: email, Activated: true}
	token, err := ta.models.Users.Insert(ctx, u)
	require.NoError(t, err)
	require.NoError(t, ta.models.Permissions.AddForUser(ctx, u.ID, permissions...))
	return u, token
}

func (ta *testApp) book(t *testing.T, title, isbn string, authorID *int64) *data.Book {
	t.Helper()
	b := &data.Book{Title: title, ISBN: isbn, AuthorID: authorID}
	require.NoError(t, ta.models.Books.Insert(context.Background(), b))
	return b
}

func (ta *testApp) instance(t *testing.T, book *data.Book, status data.LoanStatus) *data.BookInstance {
	t.Helper()
	bi := &data.BookInstance{BookID: book.ID, Imprint: "Imprint", Status: status}
	require.NoError(t, ta.models.Instances.Insert(context.Background(), bi))
	return bi
}
