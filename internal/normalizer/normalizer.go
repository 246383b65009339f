// Package normalizer turns raw input rows from either source into canonical
// transactions.
//
// Column roles (date, name, memo, amount, debit, credit) are resolved from
// the table's headers by fuzzy similarity, so files from different banks with
// differently spelled headers normalize the same way. When no amount column
// exists but both debit and credit columns do, the amount is derived as
// credit minus debit.
//
// Rows that cannot produce a meaningful transaction are dropped silently:
// unparseable dates, unparseable amounts and zero amounts are a cleaning
// step, not an error. The number of dropped rows is reported back to the
// caller as a diagnostic. Unresolvable required columns, by contrast, fail
// normalization of the whole file.
package normalizer

import (
	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/pkg/errors"
	"crown-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// DefaultHeaderThreshold is the minimum 0-100 similarity score for a header
// to be accepted as a column role.
const DefaultHeaderThreshold = 80

// Config holds normalization tunables.
type Config struct {
	HeaderThreshold int
}

// DefaultConfig returns the standard normalizer configuration.
func DefaultConfig() *Config {
	return &Config{HeaderThreshold: DefaultHeaderThreshold}
}

// Result is the outcome of normalizing one table.
type Result struct {
	Transactions []*models.Transaction
	Dropped      int
}

// Normalizer converts raw tables into canonical transaction sets.
type Normalizer struct {
	config *Config
	logger logger.Logger
}

// New creates a Normalizer with the given configuration.
func New(config *Config) *Normalizer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Normalizer{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("normalizer"),
	}
}

// Normalize resolves the table's schema and converts its rows into
// transactions for the given side, preserving row order. Rows with
// unparseable dates or amounts, or zero amounts, are dropped and counted.
func (n *Normalizer) Normalize(table models.Table, side models.Side) (*Result, error) {
	schema := ResolveSchema(table.Headers, n.config.HeaderThreshold)

	if missing := schema.MissingRequired(); len(missing) > 0 {
		return nil, errors.SchemaError(table.Source, missing)
	}
	if !schema.HasAmountSource() {
		return nil, errors.NoAmountSourceError(table.Source)
	}

	result := &Result{
		Transactions: make([]*models.Transaction, 0, len(table.Rows)),
	}

	for _, row := range table.Rows {
		date, err := models.ParseDate(row[schema.Date])
		if err != nil {
			result.Dropped++
			continue
		}

		amount, ok := n.rowAmount(schema, row)
		if !ok || amount.IsZero() {
			result.Dropped++
			continue
		}

		tx := models.NewTransaction(date, row[schema.Name], row[schema.Memo], amount, side)
		result.Transactions = append(result.Transactions, tx)
	}

	n.logger.WithFields(logger.Fields{
		"source":  table.Source,
		"side":    side.String(),
		"rows":    len(table.Rows),
		"kept":    len(result.Transactions),
		"dropped": result.Dropped,
	}).Info("Normalized input table")

	if result.Dropped > 0 {
		n.logger.WithFields(logger.Fields{
			"source":  table.Source,
			"dropped": result.Dropped,
		}).Warn("Dropped rows with unparseable dates, unparseable amounts or zero amounts")
	}

	return result, nil
}

// rowAmount extracts the row's amount. With a direct amount column an
// unparseable cell drops the row; with a debit/credit pair an unparseable
// cell counts as zero, matching how partially filled debit/credit columns
// appear in real exports.
func (n *Normalizer) rowAmount(schema *Schema, row models.RawRow) (decimal.Decimal, bool) {
	if schema.DeriveFromDebitCredit() {
		debit, err := models.ParseAmount(row[schema.Debit])
		if err != nil {
			debit = decimal.Zero
		}
		credit, err := models.ParseAmount(row[schema.Credit])
		if err != nil {
			credit = decimal.Zero
		}
		return credit.Sub(debit), true
	}

	amount, err := models.ParseAmount(row[schema.Amount])
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}
