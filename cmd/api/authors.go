// cmd/api/authors.go
// Handlers for browsing authors and for the librarian create/update/delete forms.
package main

import (
	"fmt"
	"net/http"

	"github.com/aoideee/locallibrary/internal/data"
	"github.com/aoideee/locallibrary/internal/validator"
)

// listAuthorsHandler handles GET /v1/authors?page=N, ordered by last name.
func (app *applicationDependencies) listAuthorsHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()
	filters := app.readFilters(r.URL.Query(), v)
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	authors, metadata, err := app.models.Authors.GetAll(r.Context(), filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if metadata.OutOfRange(filters) {
		app.notFoundResponse(w, r)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"authors": authors, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showAuthorHandler handles GET /v1/authors/:id.
func (app *applicationDependencies) showAuthorHandler(w http.ResponseWriter, r *http.Request) {
	author, books, ok := app.authorWithBooks(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"author": author, "books": books}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createAuthorFormHandler handles GET /v1/author/create and returns the
// initial form values.
func (app *applicationDependencies) createAuthorFormHandler(w http.ResponseWriter, r *http.Request) {
	deathDefault := app.config.catalog.deathDefault
	form := data.CreateAuthorInput{DateOfDeath: &deathDefault}

	err := app.writeJSON(w, http.StatusOK, envelope{"form": form}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createAuthorHandler handles POST /v1/author/create.
func (app *applicationDependencies) createAuthorHandler(w http.ResponseWriter, r *http.Request) {
	var input data.CreateAuthorInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	author := &data.Author{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		DateOfBirth: input.DateOfBirth,
		DateOfDeath: input.DateOfDeath,
	}

	v := validator.New()
	if data.ValidateAuthor(v, author); !v.Valid() {
		app.failedFormResponse(w, r, v.Errors, input)
		return
	}

	err = app.models.Authors.Insert(r.Context(), author)
	if err != nil {
		app.storeErrorResponse(w, r, err, input)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/authors/%d", author.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"author": author}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateAuthorFormHandler handles GET /v1/authors/:id/update and returns the
// stored values to edit.
func (app *applicationDependencies) updateAuthorFormHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	author, err := app.models.Authors.Get(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err, nil)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"author": author}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateAuthorHandler handles POST /v1/authors/:id/update.
// Only the fields present in the body change.
func (app *applicationDependencies) updateAuthorHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input data.UpdateAuthorInput
	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	author, err := app.models.Authors.Get(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err, nil)
		return
	}

	input.Apply(author)

	v := validator.New()
	if data.ValidateAuthor(v, author); !v.Valid() {
		app.failedFormResponse(w, r, v.Errors, input)
		return
	}

	err = app.models.Authors.Update(r.Context(), author)
	if err != nil {
		app.storeErrorResponse(w, r, err, input)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"author": author}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteAuthorFormHandler handles GET /v1/authors/:id/delete and shows what
// a deletion would affect.
func (app *applicationDependencies) deleteAuthorFormHandler(w http.ResponseWriter, r *http.Request) {
	author, books, ok := app.authorWithBooks(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"author": author, "books": books, "num_books": len(books)}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteAuthorHandler handles POST /v1/authors/:id/delete. The author's
// books are kept with no author.
func (app *applicationDependencies) deleteAuthorHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.models.Authors.Delete(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err, nil)
		return
	}

	app.logger.Info("author deleted", "author_id", id, "librarian_id", app.contextGetUser(r).ID)

	app.seeOther(w, r, "/v1/authors", envelope{"message": "author successfully deleted"})
}

// authorWithBooks loads the author named by :id and the books that cite them.
// It writes the error response itself and reports false on failure.
func (app *applicationDependencies) authorWithBooks(w http.ResponseWriter, r *http.Request) (*data.Author, []*data.Book, bool) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return nil, nil, false
	}

	author, err := app.models.Authors.Get(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err, nil)
		return nil, nil, false
	}

	books, err := app.models.Books.GetForAuthor(r.Context(), author.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return nil, nil, false
	}

	return author, books, true
}
