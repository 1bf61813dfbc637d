// cmd/api/loans.go
// Handlers for lending copies: borrowing, librarian renewals and the loan listings.
package main

import (
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/aoideee/locallibrary/internal/data"
	"github.com/aoideee/locallibrary/internal/validator"
)

// loanView is an on-loan copy as shown in the loan listings.
type loanView struct {
	instanceView
	Title string `json:"title"`
	DueIn string `json:"due_in,omitempty"`
}

// renewalForm is the body of a renewal submission.
type renewalForm struct {
	RenewalDate string `json:"renewal_date"`
}

// borrowInstanceHandler handles POST /v1/books/:id/borrow, where :id is a
// book instance. Whether or not the copy was available, the client is sent
// to the detail page of its book.
func (app *applicationDependencies) borrowInstanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readUUIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := app.contextGetUser(r)

	result, err := app.circulation.Borrow(r.Context(), id, user)
	if err != nil {
		app.storeErrorResponse(w, r, err, nil)
		return
	}

	if result.Borrowed {
		app.logger.Info("book instance borrowed",
			"instance_id", result.Instance.ID.String(),
			"borrower_id", user.ID,
			"due_back", result.Instance.DueBack.String(),
		)
	}

	app.seeOther(w, r, fmt.Sprintf("/v1/books/%d", result.Instance.BookID), envelope{
		"borrowed":      result.Borrowed,
		"book_instance": app.newInstanceView(result.Instance),
	})
}

// renewInstanceFormHandler handles GET /v1/books/:id/renew. It proposes a
// due date one loan period from today and changes nothing.
func (app *applicationDependencies) renewInstanceFormHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readUUIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	bi, err := app.models.Instances.Get(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err, nil)
		return
	}

	env := envelope{
		"book_instance": app.newInstanceView(bi),
		"form":          renewalForm{RenewalDate: app.circulation.DefaultRenewal().String()},
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// renewInstanceHandler handles POST /v1/books/:id/renew. A valid date
// replaces the due date and redirects to the list of all loans; an invalid
// one is sent back with the submitted form.
func (app *applicationDependencies) renewInstanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readUUIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input renewalForm
	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var proposed *data.Date
	if input.RenewalDate != "" {
		d, err := data.ParseDate(input.RenewalDate)
		if err != nil {
			app.failedFormResponse(w, r, map[string]string{"renewal_date": "Enter a valid date."}, input)
			return
		}
		proposed = &d
	}

	bi, err := app.circulation.Renew(r.Context(), id, proposed)
	if err != nil {
		app.storeErrorResponse(w, r, err, input)
		return
	}

	app.logger.Info("book instance renewed",
		"instance_id", bi.ID.String(),
		"due_back", bi.DueBack.String(),
		"librarian_id", app.contextGetUser(r).ID,
	)

	app.seeOther(w, r, "/v1/borrowed", envelope{"book_instance": app.newInstanceView(bi)})
}

// listMyLoansHandler handles GET /v1/mybooks: the caller's own loans,
// soonest due first.
func (app *applicationDependencies) listMyLoansHandler(w http.ResponseWriter, r *http.Request) {
	user := app.contextGetUser(r)
	app.listLoans(w, r, func(f data.Filters) ([]*data.BookInstance, data.Metadata, error) {
		return app.models.Instances.GetBorrowedBy(r.Context(), user.ID, f)
	})
}

// listAllLoansHandler handles GET /v1/borrowed: every loan, for librarians.
func (app *applicationDependencies) listAllLoansHandler(w http.ResponseWriter, r *http.Request) {
	app.listLoans(w, r, func(f data.Filters) ([]*data.BookInstance, data.Metadata, error) {
		return app.models.Instances.GetAllBorrowed(r.Context(), f)
	})
}

func (app *applicationDependencies) listLoans(w http.ResponseWriter, r *http.Request,
	fetch func(data.Filters) ([]*data.BookInstance, data.Metadata, error)) {
	v := validator.New()
	filters := app.readFilters(r.URL.Query(), v)
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	instances, metadata, err := fetch(filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if metadata.OutOfRange(filters) {
		app.notFoundResponse(w, r)
		return
	}

	titles := make(map[int64]string)
	for _, bookID := range lo.Uniq(lo.Map(instances, func(bi *data.BookInstance, _ int) int64 { return bi.BookID })) {
		book, err := app.models.Books.Get(r.Context(), bookID)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
		titles[bookID] = book.Title
	}

	today := app.circulation.Today()
	loans := lo.Map(instances, func(bi *data.BookInstance, _ int) loanView {
		loan := loanView{instanceView: app.newInstanceView(bi), Title: titles[bi.BookID]}
		if bi.DueBack != nil {
			loan.DueIn = humanize.RelTime(bi.DueBack.Time, today.Time, "overdue", "left")
		}
		return loan
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"loans": loans, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
