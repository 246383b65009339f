package session

import (
	"fmt"

	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// Totals holds per-side amount sums and their difference (bank minus ledger).
type Totals struct {
	Bank       decimal.Decimal
	Ledger     decimal.Decimal
	Difference decimal.Decimal
}

// ReconciliationState is the partition of each side's transactions into
// matched (removed) and unmatched (still visible). It preserves insertion
// order for display and guarantees that a removed id never reappears.
//
// The state itself is not goroutine safe; the owning Session serializes all
// mutations.
type ReconciliationState struct {
	unmatchedBank   []*models.Transaction
	unmatchedLedger []*models.Transaction
	bankByID        map[string]*models.Transaction
	ledgerByID      map[string]*models.Transaction
}

// NewState creates a state holding the given unmatched sets.
func NewState(bank, ledger []*models.Transaction) *ReconciliationState {
	s := &ReconciliationState{
		unmatchedBank:   append([]*models.Transaction(nil), bank...),
		unmatchedLedger: append([]*models.Transaction(nil), ledger...),
		bankByID:        make(map[string]*models.Transaction, len(bank)),
		ledgerByID:      make(map[string]*models.Transaction, len(ledger)),
	}
	for _, tx := range s.unmatchedBank {
		s.bankByID[tx.ID] = tx
	}
	for _, tx := range s.unmatchedLedger {
		s.ledgerByID[tx.ID] = tx
	}
	return s
}

// Unmatched returns the ordered unmatched view for the side. The returned
// slice is a copy; mutating it does not affect the state.
func (s *ReconciliationState) Unmatched(side models.Side) []*models.Transaction {
	switch side {
	case models.SideBank:
		return append([]*models.Transaction(nil), s.unmatchedBank...)
	case models.SideLedger:
		return append([]*models.Transaction(nil), s.unmatchedLedger...)
	default:
		return nil
	}
}

// Counts returns the number of unmatched transactions per side.
func (s *ReconciliationState) Counts() (bank, ledger int) {
	return len(s.unmatchedBank), len(s.unmatchedLedger)
}

// Collect resolves the given ids against the side's unmatched set, in the
// order given. If any id is not currently unmatched the whole lookup fails
// with a NotFoundError listing the stale ids, and no partial result is
// returned.
func (s *ReconciliationState) Collect(side models.Side, ids []string) ([]*models.Transaction, error) {
	var byID map[string]*models.Transaction
	switch side {
	case models.SideBank:
		byID = s.bankByID
	case models.SideLedger:
		byID = s.ledgerByID
	default:
		return nil, errors.New(errors.CategoryInternal, errors.CodeUnexpectedError,
			fmt.Sprintf("unknown side %q", side))
	}

	txs := make([]*models.Transaction, 0, len(ids))
	var stale []string
	for _, id := range ids {
		tx, ok := byID[id]
		if !ok {
			stale = append(stale, id)
			continue
		}
		txs = append(txs, tx)
	}
	if len(stale) > 0 {
		return nil, errors.NotFoundError(string(side), stale)
	}
	return txs, nil
}

// Remove excludes the given ids from the side's unmatched set. The removal
// is atomic: if any id is not present, nothing is removed and a
// NotFoundError is returned. Removed ids are permanently retired.
func (s *ReconciliationState) Remove(side models.Side, ids []string) error {
	if _, err := s.Collect(side, ids); err != nil {
		return err
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	if side == models.SideBank {
		s.unmatchedBank = filterOut(s.unmatchedBank, drop)
		for id := range drop {
			delete(s.bankByID, id)
		}
	} else {
		s.unmatchedLedger = filterOut(s.unmatchedLedger, drop)
		for id := range drop {
			delete(s.ledgerByID, id)
		}
	}
	return nil
}

// UnmatchedTotals sums the amounts currently unmatched on each side.
func (s *ReconciliationState) UnmatchedTotals() Totals {
	return sumTotals(s.unmatchedBank, s.unmatchedLedger)
}

func filterOut(txs []*models.Transaction, drop map[string]bool) []*models.Transaction {
	kept := txs[:0]
	for _, tx := range txs {
		if !drop[tx.ID] {
			kept = append(kept, tx)
		}
	}
	return kept
}

func sumTotals(bank, ledger []*models.Transaction) Totals {
	bankSum, ledgerSum := decimal.Zero, decimal.Zero
	for _, tx := range bank {
		bankSum = bankSum.Add(tx.Amount)
	}
	for _, tx := range ledger {
		ledgerSum = ledgerSum.Add(tx.Amount)
	}
	return Totals{
		Bank:       bankSum,
		Ledger:     ledgerSum,
		Difference: bankSum.Sub(ledgerSum),
	}
}
