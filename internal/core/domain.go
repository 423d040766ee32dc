package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the only calendar format used on disk and on the wire.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// Fields holds the mutable part of an expense.
	Fields struct {
		Date     Date
		Amount   decimal.Decimal
		Category string
		Note     string
	}

	Expense struct {
		ID       string // Opaque, assigned once at creation
		Date     Date
		Amount   decimal.Decimal // Signed; negative values are refunds or corrections
		Category string
		Note     string
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyID       = errors.New("empty id")
	ErrMalformedLine = errors.New("malformed line")
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a yyyy-mm-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// String formats the date as yyyy-mm-dd.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the zero-padded "YYYY-MM" grouping key.
func (d Date) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}

// Before reports whether d falls on an earlier day than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d falls on a later day than o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// Fields returns the mutable part of the expense.
func (e Expense) Fields() Fields {
	return Fields{Date: e.Date, Amount: e.Amount, Category: e.Category, Note: e.Note}
}

// WithFields returns a copy of e carrying f. The ID is kept.
func (e Expense) WithFields(f Fields) Expense {
	e.Date = f.Date
	e.Amount = f.Amount
	e.Category = f.Category
	e.Note = f.Note
	return e
}

// Equal compares expenses field by field, using decimal equality for the amount.
func (e Expense) Equal(o Expense) bool {
	return e.ID == o.ID &&
		e.Date.Equal(o.Date) &&
		e.Amount.Equal(o.Amount) &&
		e.Category == o.Category &&
		e.Note == o.Note
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	return e.Date.Validate()
}

// ParseFields validates raw user input at the command boundary.
// An empty date means today.
func ParseFields(category, amount, date, note string, now time.Time) (Fields, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return Fields{}, ErrEmptyCategory
	}
	amt, err := ParseAmount(amount)
	if err != nil {
		return Fields{}, err
	}
	d := DateOf(now)
	if strings.TrimSpace(date) != "" {
		if d, err = ParseDate(date); err != nil {
			return Fields{}, err
		}
	}
	return Fields{Date: d, Amount: amt, Category: category, Note: strings.TrimSpace(note)}, nil
}
