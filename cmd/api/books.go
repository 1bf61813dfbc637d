// cmd/api/books.go
package main

import (
	"errors"
	"net/http"

	"github.com/samber/lo"

	"github.com/aoideee/locallibrary/internal/data"
	"github.com/aoideee/locallibrary/internal/validator"
)

// bookListItem is a book as shown in listings, with its author's display name.
type bookListItem struct {
	data.Book
	Author string `json:"author,omitempty"`
}

// instanceView adds the derived fields of a copy to its stored ones.
type instanceView struct {
	data.BookInstance
	StatusLabel string `json:"status_label"`
	IsOverdue   bool   `json:"is_overdue"`
}

func (app *applicationDependencies) newInstanceView(bi *data.BookInstance) instanceView {
	return instanceView{
		BookInstance: *bi,
		StatusLabel:  bi.Status.Label(),
		IsOverdue:    bi.IsOverdue(app.circulation.Today()),
	}
}

// listBooksHandler handles GET /v1/books?page=N.
// Books are ordered by title; a page past the last one is a 404.
func (app *applicationDependencies) listBooksHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()
	filters := app.readFilters(r.URL.Query(), v)
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	books, metadata, err := app.models.Books.GetAll(r.Context(), filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if metadata.OutOfRange(filters) {
		app.notFoundResponse(w, r)
		return
	}

	authorIDs := lo.Uniq(lo.FilterMap(books, func(b *data.Book, _ int) (int64, bool) {
		if b.AuthorID == nil {
			return 0, false
		}
		return *b.AuthorID, true
	}))

	names := make(map[int64]string, len(authorIDs))
	for _, id := range authorIDs {
		author, err := app.models.Authors.Get(r.Context(), id)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
		names[id] = author.String()
	}

	items := lo.Map(books, func(b *data.Book, _ int) bookListItem {
		item := bookListItem{Book: *b}
		if b.AuthorID != nil {
			item.Author = names[*b.AuthorID]
		}
		return item
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"books": items, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showBookHandler handles GET /v1/books/:id.
// The response carries the book, its author, its genres and every copy.
func (app *applicationDependencies) showBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	book, err := app.models.Books.Get(ctx, id)
	if err != nil {
		app.storeErrorResponse(w, r, err, nil)
		return
	}

	var author *data.Author
	if book.AuthorID != nil {
		author, err = app.models.Authors.Get(ctx, *book.AuthorID)
		if err != nil && !errors.Is(err, data.ErrRecordNotFound) {
			app.serverErrorResponse(w, r, err)
			return
		}
	}

	genres, err := app.models.Books.Genres(ctx, book.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	instances, err := app.models.Instances.GetForBook(ctx, book.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{
		"book":          book,
		"author":        author,
		"genres":        genres,
		"display_genre": data.DisplayGenre(genres),
		"instances": lo.Map(instances, func(bi *data.BookInstance, _ int) instanceView {
			return app.newInstanceView(bi)
		}),
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
