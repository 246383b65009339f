package session

import (
	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/pkg/errors"
	"crown-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// RoundResult reports one successful manual reconciliation round.
type RoundResult struct {
	BankCount       int
	LedgerCount     int
	Total           decimal.Decimal
	RemainingBank   int
	RemainingLedger int
}

// ReconcileGroup commits a user-chosen group of unmatched bank ids and
// unmatched ledger ids as reconciled, iff the two groups' cent-rounded sums
// are equal.
//
// Validation happens before any mutation: both selections must be non-empty
// and every id must currently be unmatched. Repeated ids within a selection
// count once, for the sums and for the reported counts. On a sum mismatch
// the state is left byte-for-byte unchanged and the returned error carries
// the discrepancy. On success both groups are removed in a single committed
// transition; partial removal cannot occur.
func (s *Session) ReconcileGroup(bankIDs, ledgerIDs []string) (*RoundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAutoMatched("manual reconciliation"); err != nil {
		return nil, err
	}

	if len(bankIDs) == 0 {
		return nil, errors.EmptySelectionError("bank")
	}
	if len(ledgerIDs) == 0 {
		return nil, errors.EmptySelectionError("ledger")
	}

	// A repeated id names one transaction; counting it twice would let the
	// sum gate pass on groups whose real totals differ.
	bankIDs = dedupeIDs(bankIDs)
	ledgerIDs = dedupeIDs(ledgerIDs)

	bankTxs, err := s.state.Collect(models.SideBank, bankIDs)
	if err != nil {
		return nil, err
	}
	ledgerTxs, err := s.state.Collect(models.SideLedger, ledgerIDs)
	if err != nil {
		return nil, err
	}

	bankSum := sumAmounts(bankTxs).Round(2)
	ledgerSum := sumAmounts(ledgerTxs).Round(2)

	if !bankSum.Equal(ledgerSum) {
		s.logger.WithFields(logger.Fields{
			"bank_sum":   bankSum.String(),
			"ledger_sum": ledgerSum.String(),
		}).Info("Manual round rejected: sums differ")
		return nil, errors.SumMismatchError(bankSum, ledgerSum)
	}

	// Both selections were validated above, so neither removal can fail;
	// the two removals form one committed transition.
	if err := s.state.Remove(models.SideBank, bankIDs); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError,
			"bank removal failed after validation")
	}
	if err := s.state.Remove(models.SideLedger, ledgerIDs); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError,
			"ledger removal failed after validation")
	}

	s.rounds++
	remainingBank, remainingLedger := s.state.Counts()

	s.logger.WithFields(logger.Fields{
		"bank_items":   len(bankIDs),
		"ledger_items": len(ledgerIDs),
		"total":        bankSum.String(),
		"round":        s.rounds,
	}).Info("Manual round committed")

	return &RoundResult{
		BankCount:       len(bankIDs),
		LedgerCount:     len(ledgerIDs),
		Total:           bankSum,
		RemainingBank:   remainingBank,
		RemainingLedger: remainingLedger,
	}, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}

func sumAmounts(txs []*models.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return sum
}
