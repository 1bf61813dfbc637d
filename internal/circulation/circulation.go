// Package circulation holds the loan rules of the catalog: lending an
// available copy to a member and librarian renewals of a due date.
package circulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aoideee/locallibrary/internal/data"
	"github.com/aoideee/locallibrary/internal/validator"
)

const (
	// DefaultLoanWeeks is the length of a loan and of the proposed renewal.
	DefaultLoanWeeks = 3
	// DefaultMaxRenewWeeks is how far ahead a renewal may set the due date.
	DefaultMaxRenewWeeks = 4
)

// ErrActorRequired is returned when a workflow operation runs without an
// authenticated actor.
var ErrActorRequired = errors.New("an authenticated actor is required")

// ValidationError carries field-level messages for a rejected renewal.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Errors[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InstanceStore is the slice of the catalog store the workflow needs.
type InstanceStore interface {
	Get(ctx context.Context, id uuid.UUID) (*data.BookInstance, error)
	MarkOnLoan(ctx context.Context, id uuid.UUID, borrowerID int64, dueBack data.Date) (bool, error)
	SetDueBack(ctx context.Context, id uuid.UUID, dueBack data.Date) error
}

// Clock returns the current time.
type Clock func() time.Time

// Service runs the borrow and renew operations against an InstanceStore.
type Service struct {
	instances     InstanceStore
	now           Clock
	loanWeeks     int
	maxRenewWeeks int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now as the source of "today".
func WithClock(clock Clock) Option {
	return func(s *Service) { s.now = clock }
}

// WithLoanWeeks sets the loan period.
func WithLoanWeeks(weeks int) Option {
	return func(s *Service) { s.loanWeeks = weeks }
}

// WithMaxRenewWeeks sets the renewal horizon.
func WithMaxRenewWeeks(weeks int) Option {
	return func(s *Service) { s.maxRenewWeeks = weeks }
}

// NewService creates a Service with the default loan rules.
func NewService(instances InstanceStore, opts ...Option) *Service {
	s := &Service{
		instances:     instances,
		now:           time.Now,
		loanWeeks:     DefaultLoanWeeks,
		maxRenewWeeks: DefaultMaxRenewWeeks,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar day according to the service clock.
func (s *Service) Today() data.Date {
	return data.DateOf(s.now())
}

// DefaultRenewal is the due date proposed when a renewal form is first shown.
func (s *Service) DefaultRenewal() data.Date {
	return s.Today().AddWeeks(s.loanWeeks)
}

// BorrowResult reports the outcome of Borrow. Borrowed is false when the
// instance was not available; that is not an error.
type BorrowResult struct {
	Instance *data.BookInstance
	Borrowed bool
}

// Borrow lends the instance to actor for the loan period if it is
// available. Any other status leaves the instance untouched.
func (s *Service) Borrow(ctx context.Context, id uuid.UUID, actor *data.User) (BorrowResult, error) {
	if actor == nil || actor.IsAnonymous() {
		return BorrowResult{}, ErrActorRequired
	}

	bi, err := s.instances.Get(ctx, id)
	if err != nil {
		return BorrowResult{}, err
	}

	if bi.Status != data.StatusAvailable {
		return BorrowResult{Instance: bi}, nil
	}

	dueBack := s.Today().AddWeeks(s.loanWeeks)

	won, err := s.instances.MarkOnLoan(ctx, id, actor.ID, dueBack)
	if err != nil {
		return BorrowResult{}, err
	}

	// Lost the race to another borrower: report what is stored now.
	if !won {
		current, err := s.instances.Get(ctx, id)
		if err != nil {
			return BorrowResult{}, err
		}
		return BorrowResult{Instance: current}, nil
	}

	borrowerID := actor.ID
	bi.Status = data.StatusOnLoan
	bi.BorrowerID = &borrowerID
	bi.DueBack = &dueBack

	return BorrowResult{Instance: bi, Borrowed: true}, nil
}

// ValidateRenewal records why a proposed due date is unacceptable, if it is.
func (s *Service) ValidateRenewal(v *validator.Validator, proposed *data.Date) {
	if proposed == nil {
		v.AddError("renewal_date", "must be provided")
		return
	}

	today := s.Today()
	v.Check(!proposed.Before(today), "renewal_date", "Invalid date - renewal in past")
	v.Check(!proposed.After(today.AddWeeks(s.maxRenewWeeks)), "renewal_date",
		fmt.Sprintf("Invalid date - renewal more than %d weeks ahead", s.maxRenewWeeks))
}

// Renew moves the due date of an instance to proposed. Nothing but the due
// date changes, and nothing changes at all when proposed fails validation.
func (s *Service) Renew(ctx context.Context, id uuid.UUID, proposed *data.Date) (*data.BookInstance, error) {
	bi, err := s.instances.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	v := validator.New()
	s.ValidateRenewal(v, proposed)
	if !v.Valid() {
		return nil, &ValidationError{Errors: v.Errors}
	}

	if err := s.instances.SetDueBack(ctx, id, *proposed); err != nil {
		return nil, err
	}

	dueBack := *proposed
	bi.DueBack = &dueBack
	return bi, nil
}
