// cmd/api/handlers.go
// Handlers for the catalog front page, the healthcheck and genres. Each
// handler is a method on *applicationDependencies so it has access to the
// logger and database models.
package main

import (
	"net/http"

	"github.com/aoideee/locallibrary/internal/data"
)

// sessionName is the cookie session holding per-visitor state.
const sessionName = "locallibrary"

// healthcheckHandler handles GET /v1/healthcheck.
func (app *applicationDependencies) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	env := envelope{
		"status": "available",
		"system_info": map[string]string{
			"environment": app.config.environment,
			"version":     appVersion,
		},
	}

	err := app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// indexHandler handles GET / and GET /v1/index.
// It reports catalog totals and counts the caller's visits in their session.
func (app *applicationDependencies) indexHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts := make(map[string]int, 5)
	counters := []struct {
		key   string
		count func() (int, error)
	}{
		{"num_books", func() (int, error) { return app.models.Books.Count(ctx) }},
		{"num_instances", func() (int, error) { return app.models.Instances.Count(ctx) }},
		{"num_instances_available", func() (int, error) {
			return app.models.Instances.CountByStatus(ctx, data.StatusAvailable)
		}},
		{"num_authors", func() (int, error) { return app.models.Authors.Count(ctx) }},
		{"num_genres", func() (int, error) { return app.models.Genres.Count(ctx) }},
	}
	for _, c := range counters {
		n, err := c.count()
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}
		counts[c.key] = n
	}

	// A cookie that no longer verifies yields a fresh session; counting
	// starts again.
	session, err := app.sessions.Get(r, sessionName)
	if err != nil {
		app.logger.Debug("discarding unreadable session", "error", err)
	}

	visits, _ := session.Values["num_visits"].(int)
	visits++
	session.Values["num_visits"] = visits

	if err := session.Save(r, w); err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"counts": counts, "num_visits": visits}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listGenresHandler handles GET /v1/genres.
func (app *applicationDependencies) listGenresHandler(w http.ResponseWriter, r *http.Request) {
	genres, err := app.models.Genres.GetAll(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"genres": genres}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
