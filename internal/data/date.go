// internal/data/date.go
package data

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the wire and storage format of every calendar date.
const DateLayout = "2006-01-02"

// ErrInvalidDateFormat is returned when a date is not in YYYY-MM-DD form.
var ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")

// Date is a calendar day, held as midnight UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day t falls on in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDateFormat
	}
	return DateOf(t), nil
}

// AddWeeks returns the date n weeks later.
func (d Date) AddWeeks(n int) Date {
	return Date{d.Time.AddDate(0, 0, 7*n)}
}

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }

func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

// MarshalJSON encodes the date as a quoted YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON accepts a quoted YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return ErrInvalidDateFormat
	}

	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

// NullableDate is an optional date field in a partial update. Set records
// that the field was present at all, so an explicit null or "" clears the
// stored date while an absent field leaves it alone.
type NullableDate struct {
	Set  bool
	Date *Date
}

// ClearDate returns a NullableDate that removes the stored date.
func ClearDate() NullableDate { return NullableDate{Set: true} }

// SetDate returns a NullableDate that stores d.
func SetDate(d Date) NullableDate { return NullableDate{Set: true, Date: &d} }

func (n NullableDate) MarshalJSON() ([]byte, error) {
	if n.Date == nil {
		return []byte("null"), nil
	}
	return n.Date.MarshalJSON()
}

func (n *NullableDate) UnmarshalJSON(b []byte) error {
	n.Set = true
	if s := string(b); s == "null" || s == `""` {
		n.Date = nil
		return nil
	}

	var d Date
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	n.Date = &d
	return nil
}

// Scan implements sql.Scanner. Drivers hand back DATE columns either as
// time.Time or as text depending on the engine.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) < len(DateLayout) {
		return ErrInvalidDateFormat
	}
	parsed, err := ParseDate(s[:len(DateLayout)])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}
