package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindSimple Kind = iota
	KindBounded
	KindRepeating
)

// MaxNoteLength mirrors the width of the note column in the record store.
const MaxNoteLength = 50

type (
	// Kind is the proration class an expense belongs to.
	Kind int

	Money struct {
		Cents int64
	}

	Currency struct {
		ID         int64
		Name       string
		Identifier string // ISO 4217 code
		Symbol     string
	}

	Category struct {
		ID   int64
		Name string
		Slug string
	}

	Expense struct {
		ID           int64
		Issued       time.Time
		End          time.Time // zero for single point expenses
		RepeatMonths int       // zero for expenses that do not repeat
		Price        Money     // amount in Currency
		InBase       Money     // Price converted to the base currency
		Note         string
		Currency     Currency
		Category     Category
	}
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrAmountOverflow         = errors.New("amount overflows exact integer range")
	ErrMissingIssueDate       = errors.New("issue date cannot be zero")
	ErrInvalidExpenseInterval = errors.New("expense ends before it is issued")
	ErrInvalidRepeatInterval  = errors.New("repeat interval must be at least one month")
	ErrInvalidTargetMonth     = errors.New("invalid target month")
	ErrNoteTooLong            = fmt.Errorf("note too long (max %d characters)", MaxNoteLength)
	ErrEmptyCategoryName      = errors.New("empty category name")
	ErrUnknownCategory        = errors.New("unknown category")
	ErrCategoryInUse          = errors.New("category still has expenses")
	ErrDuplicateCategory      = errors.New("category already exists")
	ErrUnknownCurrency        = errors.New("unknown currency")
	ErrExpenseNotFound        = errors.New("expense not found")
)

// ExpenseError ties a failure to the record that caused it.
type ExpenseError struct {
	ID  int64
	Err error
}

func (e *ExpenseError) Error() string {
	return fmt.Sprintf("expense %d: %v", e.ID, e.Err)
}

func (e *ExpenseError) Unwrap() error {
	return e.Err
}

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindBounded:
		return "bounded"
	case KindRepeating:
		return "repeating"
	default:
		return "unknown"
	}
}

// HasEnd reports whether the expense spans a time interval.
func (e Expense) HasEnd() bool {
	return !e.End.IsZero()
}

// Repeats reports whether the expense recurs.
func (e Expense) Repeats() bool {
	return e.RepeatMonths != 0
}

// Kind classifies the expense for proration.
func (e Expense) Kind() Kind {
	switch {
	case e.Repeats():
		return KindRepeating
	case e.HasEnd():
		return KindBounded
	default:
		return KindSimple
	}
}

// LastDay returns the end of a single occurrence: End, or Issued when unset.
func (e Expense) LastDay() time.Time {
	if e.HasEnd() {
		return e.End
	}
	return e.Issued
}

// Validate checks the invariants the proration engine relies on.
func (e Expense) Validate() error {
	if e.Issued.IsZero() {
		return ErrMissingIssueDate
	}
	if e.HasEnd() && wallClock(e.End).Before(wallClock(e.Issued)) {
		return ErrInvalidExpenseInterval
	}
	if e.RepeatMonths < 0 {
		return ErrInvalidRepeatInterval
	}
	if e.InBase.Cents > MaxExactCents || e.InBase.Cents < -MaxExactCents {
		return ErrAmountOverflow
	}
	return nil
}

// ValidateEntry applies the stricter checks for newly tracked expenses.
func (e Expense) ValidateEntry() error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := e.Price.Validate(); err != nil {
		return err
	}
	if len(e.Note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	if e.Category.ID == 0 {
		return ErrUnknownCategory
	}
	if e.Currency.ID == 0 {
		return ErrUnknownCurrency
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxExactCents {
		return ErrAmountOverflow
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategoryName
	}
	if len(c.Name) > 30 {
		return errors.New("category name too long (max 30 characters)")
	}
	return nil
}

// String renders the expense the way the history listing shows it.
func (e Expense) String() string {
	symbol := e.Currency.Symbol
	if symbol == "" {
		symbol = e.Currency.Identifier
	}
	s := fmt.Sprintf("%s: %s%s, %s", e.Issued.Format("2006-01-02 15:04"), FormatCents(e.Price.Cents), symbol, e.Category.Name)
	if e.HasEnd() {
		s += " until " + e.End.Format("2006-01-02")
	}
	if e.Repeats() {
		s += fmt.Sprintf(" every %d month(s)", e.RepeatMonths)
	}
	if e.Note != "" {
		s += " (" + e.Note + ")"
	}
	return s
}
