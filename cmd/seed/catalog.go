package main

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"

	"github.com/aoideee/locallibrary/internal/data"
	"github.com/aoideee/locallibrary/internal/validator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// catalogFile is the layout of a fixture file. Authors are referenced from
// books by key, genres by name and borrowers by email.
type catalogFile struct {
	Genres  []string        `json:"genres"`
	Authors []authorFixture `json:"authors"`
	Books   []bookFixture   `json:"books"`
	Users   []userFixture   `json:"users"`
}

type authorFixture struct {
	Key         string     `json:"key"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *data.Date `json:"date_of_birth"`
	DateOfDeath *data.Date `json:"date_of_death"`
}

type bookFixture struct {
	Title     string            `json:"title"`
	Author    string            `json:"author"`
	Summary   string            `json:"summary"`
	ISBN      string            `json:"isbn"`
	Genres    []string          `json:"genres"`
	Instances []instanceFixture `json:"instances"`
}

type instanceFixture struct {
	Imprint  string          `json:"imprint"`
	Status   data.LoanStatus `json:"status"`
	DueBack  *data.Date      `json:"due_back"`
	Borrower string          `json:"borrower"`
}

type userFixture struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
}

// issuedToken pairs a seeded user with the bearer token created for them.
type issuedToken struct {
	Email string
	Token string
}

func decodeCatalog(r io.Reader) (*catalogFile, error) {
	var cat catalogFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &cat, nil
}

// seeder writes a catalogFile into the store, one progress bar per section.
type seeder struct {
	models   data.Models
	progress *mpb.Progress

	genres  map[string]int64
	authors map[string]int64
	users   map[string]int64
}

func newSeeder(models data.Models, progress *mpb.Progress) *seeder {
	return &seeder{
		models:   models,
		progress: progress,
		genres:   make(map[string]int64),
		authors:  make(map[string]int64),
		users:    make(map[string]int64),
	}
}

// load imports cat in one transaction and returns the tokens issued to its
// users. A bad record leaves the database as it was.
func (s *seeder) load(ctx context.Context, cat *catalogFile) ([]issuedToken, error) {
	pool := s.models
	defer func() { s.models = pool }()

	var tokens []issuedToken
	err := pool.WithTx(ctx, func(tx data.Models) error {
		s.models = tx

		var err error
		tokens, err = s.write(ctx, cat)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// write inserts cat in dependency order.
func (s *seeder) write(ctx context.Context, cat *catalogFile) ([]issuedToken, error) {
	tokens, err := s.loadUsers(ctx, cat.Users)
	if err != nil {
		return nil, err
	}
	if err := s.loadGenres(ctx, cat.Genres); err != nil {
		return nil, err
	}
	if err := s.loadAuthors(ctx, cat.Authors); err != nil {
		return nil, err
	}
	if err := s.loadBooks(ctx, cat.Books); err != nil {
		return nil, err
	}
	return tokens, nil
}

// section is the progress bar of one fixture section.
type section struct {
	bar  *mpb.Bar
	left int
}

func (s *seeder) section(name string, total int) *section {
	bar := s.progress.AddBar(int64(total),
		mpb.PrependDecorators(decor.StaticName(name, decor.WC{W: len(name)})),
		mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
	)
	return &section{bar: bar, left: total}
}

func (sec *section) step() {
	sec.bar.Increment()
	sec.left--
}

// finish fills whatever is left so the progress can stop after an error.
func (sec *section) finish() {
	if sec.left > 0 {
		sec.bar.IncrBy(sec.left)
		sec.left = 0
	}
}

func (s *seeder) loadUsers(ctx context.Context, fixtures []userFixture) ([]issuedToken, error) {
	if len(fixtures) == 0 {
		return nil, nil
	}
	sec := s.section("users", len(fixtures))
	defer sec.finish()

	tokens := make([]issuedToken, 0, len(fixtures))
	for _, f := range fixtures {
		user := &data.User{Name: f.Name, Email: f.Email, Activated: true}

		v := validator.New()
		if data.ValidateUser(v, user); !v.Valid() {
			return nil, fmt.Errorf("user %q: %v", f.Email, v.Errors)
		}

		token, err := s.models.Users.Insert(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", f.Email, err)
		}
		if err := s.models.Permissions.AddForUser(ctx, user.ID, f.Permissions...); err != nil {
			return nil, fmt.Errorf("permissions for %q: %w", f.Email, err)
		}

		s.users[f.Email] = user.ID
		tokens = append(tokens, issuedToken{Email: f.Email, Token: token})
		sec.step()
	}
	return tokens, nil
}

func (s *seeder) loadGenres(ctx context.Context, names []string) error {
	names = lo.Uniq(names)
	if len(names) == 0 {
		return nil
	}
	sec := s.section("genres", len(names))
	defer sec.finish()

	for _, name := range names {
		genre := &data.Genre{Name: name}

		v := validator.New()
		if data.ValidateGenre(v, genre); !v.Valid() {
			return fmt.Errorf("genre %q: %v", name, v.Errors)
		}
		if err := s.models.Genres.Insert(ctx, genre); err != nil {
			return fmt.Errorf("genre %q: %w", name, err)
		}

		s.genres[name] = genre.ID
		sec.step()
	}
	return nil
}

func (s *seeder) loadAuthors(ctx context.Context, fixtures []authorFixture) error {
	if len(fixtures) == 0 {
		return nil
	}
	sec := s.section("authors", len(fixtures))
	defer sec.finish()

	for _, f := range fixtures {
		author := &data.Author{
			FirstName:   f.FirstName,
			LastName:    f.LastName,
			DateOfBirth: f.DateOfBirth,
			DateOfDeath: f.DateOfDeath,
		}

		v := validator.New()
		if data.ValidateAuthor(v, author); !v.Valid() {
			return fmt.Errorf("author %q: %v", f.Key, v.Errors)
		}
		if err := s.models.Authors.Insert(ctx, author); err != nil {
			return fmt.Errorf("author %q: %w", f.Key, err)
		}

		s.authors[f.Key] = author.ID
		sec.step()
	}
	return nil
}

func (s *seeder) loadBooks(ctx context.Context, fixtures []bookFixture) error {
	if len(fixtures) == 0 {
		return nil
	}
	sec := s.section("books", len(fixtures))
	defer sec.finish()

	for _, f := range fixtures {
		book, err := s.book(f)
		if err != nil {
			return err
		}

		v := validator.New()
		if data.ValidateBook(v, book); !v.Valid() {
			return fmt.Errorf("book %q: %v", f.ISBN, v.Errors)
		}
		if err := s.models.Books.Insert(ctx, book); err != nil {
			return fmt.Errorf("book %q: %w", f.ISBN, err)
		}

		for _, fi := range f.Instances {
			if err := s.loadInstance(ctx, book, fi); err != nil {
				return err
			}
		}
		sec.step()
	}
	return nil
}

func (s *seeder) book(f bookFixture) (*data.Book, error) {
	book := &data.Book{Title: f.Title, Summary: f.Summary, ISBN: f.ISBN}

	if f.Author != "" {
		id, ok := s.authors[f.Author]
		if !ok {
			return nil, fmt.Errorf("book %q: unknown author %q", f.ISBN, f.Author)
		}
		book.AuthorID = &id
	}

	for _, name := range f.Genres {
		id, ok := s.genres[name]
		if !ok {
			return nil, fmt.Errorf("book %q: unknown genre %q", f.ISBN, name)
		}
		book.GenreIDs = append(book.GenreIDs, id)
	}
	return book, nil
}

func (s *seeder) loadInstance(ctx context.Context, book *data.Book, f instanceFixture) error {
	bi := &data.BookInstance{
		BookID:  book.ID,
		Imprint: f.Imprint,
		Status:  f.Status,
		DueBack: f.DueBack,
	}

	// Loans need a borrower and nothing else may have one.
	switch {
	case f.Borrower != "" && f.Status != data.StatusOnLoan:
		return fmt.Errorf("book %q: borrower %q given for a copy that is not on loan", book.ISBN, f.Borrower)
	case f.Borrower == "" && f.Status == data.StatusOnLoan:
		return fmt.Errorf("book %q: copy on loan without a borrower", book.ISBN)
	case f.Borrower != "":
		id, ok := s.users[f.Borrower]
		if !ok {
			return fmt.Errorf("book %q: unknown borrower %q", book.ISBN, f.Borrower)
		}
		bi.BorrowerID = &id
	}

	v := validator.New()
	if data.ValidateInstance(v, bi); !v.Valid() {
		return fmt.Errorf("instance of %q: %v", book.ISBN, v.Errors)
	}
	if err := s.models.Instances.Insert(ctx, bi); err != nil {
		return fmt.Errorf("instance of %q: %w", book.ISBN, err)
	}
	return nil
}
