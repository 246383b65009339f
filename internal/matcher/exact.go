package matcher

import (
	"crown-reconciliation-engine/internal/models"
)

// CandidatePair is a (bank, ledger) pair sharing calendar date and
// cent-rounded amount. Candidates are proposals only; one transaction may
// appear in several pairs when multiple records share its key, and the
// ambiguity is resolved by the confirmation pass.
type CandidatePair struct {
	Bank   *models.Transaction
	Ledger *models.Transaction
}

// matchKey is the equi-join key: day-granularity date and amount fixed to
// two decimal places. No sign correction is applied; a deposit never keys
// against a withdrawal.
type matchKey struct {
	date   string
	amount string
}

func keyOf(t *models.Transaction) matchKey {
	return matchKey{
		date:   t.DateKey(),
		amount: t.Amount.StringFixed(2),
	}
}

// ledgerIndex groups ledger transactions by match key, preserving their
// input order within each bucket.
type ledgerIndex map[matchKey][]*models.Transaction

func buildLedgerIndex(ledger []*models.Transaction) ledgerIndex {
	index := make(ledgerIndex, len(ledger))
	for _, tx := range ledger {
		k := keyOf(tx)
		index[k] = append(index[k], tx)
	}
	return index
}

// BuildCandidates produces all candidate pairs between the two sides: the
// cross product restricted to equal (date, rounded amount) keys. Order is
// deterministic: bank-major, ledger-minor, both in input order, which is the
// order the confirmation pass consumes.
func BuildCandidates(bank, ledger []*models.Transaction) []CandidatePair {
	index := buildLedgerIndex(ledger)

	var pairs []CandidatePair
	for _, b := range bank {
		for _, l := range index[keyOf(b)] {
			pairs = append(pairs, CandidatePair{Bank: b, Ledger: l})
		}
	}
	return pairs
}
