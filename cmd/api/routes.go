// cmd/api/routes.go
package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/aoideee/locallibrary/internal/data"
)

// routes registers all HTTP endpoints and returns the router wrapped in the
// shared middleware.
//
// Middleware chain (outermost → innermost):
//
//	recoverPanic → rateLimit → authenticate → router
func (app *applicationDependencies) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	librarian := func(next http.HandlerFunc) http.HandlerFunc {
		return app.requirePermission(data.PermissionMarkReturned, next)
	}

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)

	router.HandlerFunc(http.MethodGet, "/", app.indexHandler)
	router.HandlerFunc(http.MethodGet, "/v1/index", app.indexHandler)

	router.HandlerFunc(http.MethodGet, "/v1/books", app.listBooksHandler)
	router.HandlerFunc(http.MethodGet, "/v1/books/:id", app.showBookHandler)
	router.HandlerFunc(http.MethodPost, "/v1/books/:id/borrow", app.requireAuthenticatedUser(app.borrowInstanceHandler))
	router.HandlerFunc(http.MethodGet, "/v1/books/:id/renew", librarian(app.renewInstanceFormHandler))
	router.HandlerFunc(http.MethodPost, "/v1/books/:id/renew", librarian(app.renewInstanceHandler))

	router.HandlerFunc(http.MethodGet, "/v1/mybooks", app.requireAuthenticatedUser(app.listMyLoansHandler))
	router.HandlerFunc(http.MethodGet, "/v1/borrowed", librarian(app.listAllLoansHandler))

	router.HandlerFunc(http.MethodGet, "/v1/genres", app.listGenresHandler)

	router.HandlerFunc(http.MethodGet, "/v1/authors", app.listAuthorsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/authors/:id", app.showAuthorHandler)
	router.HandlerFunc(http.MethodGet, "/v1/author/create", librarian(app.createAuthorFormHandler))
	router.HandlerFunc(http.MethodPost, "/v1/author/create", librarian(app.createAuthorHandler))
	router.HandlerFunc(http.MethodGet, "/v1/authors/:id/update", librarian(app.updateAuthorFormHandler))
	router.HandlerFunc(http.MethodPost, "/v1/authors/:id/update", librarian(app.updateAuthorHandler))
	router.HandlerFunc(http.MethodGet, "/v1/authors/:id/delete", librarian(app.deleteAuthorFormHandler))
	router.HandlerFunc(http.MethodPost, "/v1/authors/:id/delete", librarian(app.deleteAuthorHandler))

	return app.recoverPanic(app.rateLimit(app.authenticate(router)))
}
