// Package models defines the canonical data types shared across the
// reconciliation engine: raw input rows at the ingestion boundary and the
// normalized Transaction that every downstream component operates on.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side identifies which source a transaction came from.
type Side string

const (
	// SideBank marks records originating from the bank statement.
	SideBank Side = "BANK"
	// SideLedger marks records originating from the internal ledger.
	SideLedger Side = "LEDGER"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is one of the two known sources.
func (s Side) IsValid() bool {
	return s == SideBank || s == SideLedger
}

// RawRow is one unnormalized input row: a mapping from column label to the
// cell's string value, as produced by the ingestion collaborator.
type RawRow map[string]string

// Table is an ordered collection of raw rows together with the header row
// they were keyed by. Header order is preserved for schema resolution.
type Table struct {
	Source  string
	Headers []string
	Rows    []RawRow
}

// DateKeyFormat is the day-granularity key format used for exact matching
// and display.
const DateKeyFormat = "2006-01-02"

// Transaction is one normalized monetary record from either source.
// Transactions are immutable once created; only set membership in the
// reconciliation state changes afterwards.
type Transaction struct {
	ID      string          `json:"id"`
	Date    time.Time       `json:"date"`
	Name    string          `json:"name"`
	NameKey string          `json:"-"`
	Memo    string          `json:"memo"`
	Amount  decimal.Decimal `json:"amount"`
	Side    Side            `json:"side"`
}

// NewTransaction creates a normalized Transaction. The id is assigned here
// and is unique for the process lifetime; NameKey is the trimmed, lower-cased
// form of name used only for similarity comparison.
func NewTransaction(date time.Time, name, memo string, amount decimal.Decimal, side Side) *Transaction {
	return &Transaction{
		ID:      uuid.NewString(),
		Date:    truncateToDay(date),
		Name:    name,
		NameKey: strings.ToLower(strings.TrimSpace(name)),
		Memo:    memo,
		Amount:  amount,
		Side:    side,
	}
}

// RoundedAmount returns the amount rounded to the cent, the form used for
// key matching and subset sums.
func (t *Transaction) RoundedAmount() decimal.Decimal {
	return t.Amount.Round(2)
}

// DateKey returns the day-granularity date string used for exact matching.
func (t *Transaction) DateKey() string {
	return t.Date.Format(DateKeyFormat)
}

// Validate performs basic validation on the Transaction.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction id cannot be empty")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	if t.Amount.IsZero() {
		return fmt.Errorf("transaction amount cannot be zero")
	}
	if !t.Side.IsValid() {
		return fmt.Errorf("invalid transaction side: %s", t.Side)
	}
	return nil
}

// String returns a string representation of the Transaction.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Date: %s, Name: %s, Amount: %s, Side: %s}",
		t.ID, t.DateKey(), t.Name, t.Amount.String(), t.Side)
}

func truncateToDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseAmount parses a monetary value from a cell, tolerating currency
// symbols, thousand separators and surrounding whitespace.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	// Accounting notation: (123.45) means -123.45.
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}
	return d, nil
}

// ParseDate attempts to parse a calendar date from a cell using the formats
// commonly found in bank and ledger exports. The time component, if any, is
// discarded.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"01/02/2006",
		"1/2/2006",
		"2006/01/02",
		"02-01-2006",
		"Jan 2, 2006",
		"January 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return truncateToDay(t), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}
