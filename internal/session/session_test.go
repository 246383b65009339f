package session

import (
	"testing"

	"crown-reconciliation-engine/internal/matcher"
	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/internal/normalizer"
	"crown-reconciliation-engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedSession(t *testing.T, bank, ledger []*models.Transaction) *Session {
	t.Helper()
	s := NewSession("test-fingerprint")
	err := s.Load(
		&normalizer.Result{Transactions: bank},
		&normalizer.Result{Transactions: ledger},
	)
	require.NoError(t, err)
	return s
}

func matchedSession(t *testing.T, bank, ledger []*models.Transaction) *Session {
	t.Helper()
	s := loadedSession(t, bank, ledger)
	_, err := s.AutoMatch(matcher.NewMatchingEngine(nil))
	require.NoError(t, err)
	return s
}

func ids(txs []*models.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession("fp")
	assert.Equal(t, PhaseEmpty, s.Phase())

	require.NoError(t, s.Load(&normalizer.Result{}, &normalizer.Result{}))
	assert.Equal(t, PhaseLoaded, s.Phase())

	_, err := s.AutoMatch(nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseAutoMatched, s.Phase())

	s.Close()
	assert.Equal(t, PhaseClosed, s.Phase())

	// Closed is terminal: everything fails.
	assert.True(t, errors.IsCode(s.Load(&normalizer.Result{}, &normalizer.Result{}), errors.CodeSessionClosed))
	_, err = s.AutoMatch(nil)
	assert.True(t, errors.IsCode(err, errors.CodeSessionClosed))
	_, err = s.Unmatched(models.SideBank)
	assert.True(t, errors.IsCode(err, errors.CodeSessionClosed))
	_, err = s.ReconcileGroup([]string{"x"}, []string{"y"})
	assert.True(t, errors.IsCode(err, errors.CodeSessionClosed))

	s.Close() // idempotent
	assert.Equal(t, PhaseClosed, s.Phase())
}

func TestSession_OperationsBeforeAutoMatch(t *testing.T) {
	s := loadedSession(t, nil, nil)

	_, err := s.Unmatched(models.SideBank)
	assert.True(t, errors.IsCode(err, errors.CodeNotLoaded))

	_, err = s.ReconcileGroup([]string{"a"}, []string{"b"})
	assert.True(t, errors.IsCode(err, errors.CodeNotLoaded))
}

func TestSession_DoubleLoadRejected(t *testing.T) {
	s := loadedSession(t, nil, nil)
	err := s.Load(&normalizer.Result{}, &normalizer.Result{})
	require.Error(t, err)
}

func TestSession_AutoMatchPopulatesState(t *testing.T) {
	bank := []*models.Transaction{
		tx(models.SideBank, "Acme Corp", "100.00"),
		tx(models.SideBank, "Orphan Bank Row", "55.00"),
	}
	ledger := []*models.Transaction{
		tx(models.SideLedger, "ACME CORPORATION", "100.00"),
		tx(models.SideLedger, "Orphan Ledger Row", "66.00"),
	}

	s := matchedSession(t, bank, ledger)

	unmatchedBank, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)
	unmatchedLedger, err := s.Unmatched(models.SideLedger)
	require.NoError(t, err)

	require.Len(t, unmatchedBank, 1)
	require.Len(t, unmatchedLedger, 1)
	assert.Equal(t, "Orphan Bank Row", unmatchedBank[0].Name)
	assert.Equal(t, "Orphan Ledger Row", unmatchedLedger[0].Name)

	summary := s.Summary()
	assert.Equal(t, 1, summary.AutoMatchedPairs)
	assert.Equal(t, 1, summary.UnmatchedBank)
	assert.Equal(t, 1, summary.UnmatchedLedger)
}

func TestSession_Totals(t *testing.T) {
	bank := []*models.Transaction{
		tx(models.SideBank, "Acme Corp", "100.00"),
		tx(models.SideBank, "Other", "50.00"),
	}
	ledger := []*models.Transaction{
		tx(models.SideLedger, "ACME CORPORATION", "100.00"),
	}

	s := matchedSession(t, bank, ledger)

	// Totals cover the full normalized sets, not just the unmatched rest.
	totals, err := s.Totals()
	require.NoError(t, err)
	assert.Equal(t, "150.00", totals.Bank.StringFixed(2))
	assert.Equal(t, "100.00", totals.Ledger.StringFixed(2))
	assert.Equal(t, "50.00", totals.Difference.StringFixed(2))

	unmatchedTotals, err := s.UnmatchedTotals()
	require.NoError(t, err)
	assert.Equal(t, "50.00", unmatchedTotals.Bank.StringFixed(2))
	assert.Equal(t, "0.00", unmatchedTotals.Ledger.StringFixed(2))
}

func TestSession_ManualRoundSuccess(t *testing.T) {
	// Two bank rows summing to 250.00 against one ledger row of 250.00.
	bank := []*models.Transaction{
		tx(models.SideBank, "Part One", "100.00"),
		tx(models.SideBank, "Part Two", "150.00"),
	}
	ledger := []*models.Transaction{
		tx(models.SideLedger, "Combined", "250.00"),
	}

	s := matchedSession(t, bank, ledger)

	result, err := s.ReconcileGroup(ids(bank), ids(ledger))
	require.NoError(t, err)
	assert.Equal(t, 2, result.BankCount)
	assert.Equal(t, 1, result.LedgerCount)
	assert.Equal(t, "250.00", result.Total.StringFixed(2))
	assert.Equal(t, 0, result.RemainingBank)
	assert.Equal(t, 0, result.RemainingLedger)

	unmatchedBank, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)
	assert.Empty(t, unmatchedBank)
}

func TestSession_ManualRoundSumMismatch(t *testing.T) {
	bank := []*models.Transaction{
		tx(models.SideBank, "Part One", "100.00"),
		tx(models.SideBank, "Part Two", "150.00"),
	}
	ledger := []*models.Transaction{
		tx(models.SideLedger, "Short", "249.99"),
	}

	s := matchedSession(t, bank, ledger)

	before, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)

	_, err = s.ReconcileGroup(ids(bank), ids(ledger))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSumMismatch))

	d, ok := errors.Discrepancy(err)
	require.True(t, ok)
	assert.Equal(t, "0.01", d.StringFixed(2))

	// A rejected round leaves both unmatched sets unchanged.
	after, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
	afterLedger, err := s.Unmatched(models.SideLedger)
	require.NoError(t, err)
	assert.Len(t, afterLedger, 1)
}

func TestSession_ManualRoundDuplicateIDsDoNotInflateSum(t *testing.T) {
	bank := []*models.Transaction{tx(models.SideBank, "Half", "50.00")}
	ledger := []*models.Transaction{tx(models.SideLedger, "Whole", "100.00")}
	s := matchedSession(t, bank, ledger)

	// Listing one 50.00 row twice must not pass the 100.00 gate.
	_, err := s.ReconcileGroup([]string{bank[0].ID, bank[0].ID}, ids(ledger))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSumMismatch))

	d, ok := errors.Discrepancy(err)
	require.True(t, ok)
	assert.Equal(t, "50.00", d.StringFixed(2))

	remaining, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSession_ManualRoundDuplicateIDsCountOnce(t *testing.T) {
	bank := []*models.Transaction{tx(models.SideBank, "Rent March", "50.00")}
	ledger := []*models.Transaction{tx(models.SideLedger, "Office Sublet", "50.00")}
	s := matchedSession(t, bank, ledger)

	result, err := s.ReconcileGroup([]string{bank[0].ID, bank[0].ID}, ids(ledger))
	require.NoError(t, err)
	assert.Equal(t, 1, result.BankCount)
	assert.Equal(t, 1, result.LedgerCount)
	assert.Equal(t, "50.00", result.Total.StringFixed(2))
	assert.Equal(t, 0, result.RemainingBank)
}

func TestSession_ManualRoundEmptySelection(t *testing.T) {
	bank := []*models.Transaction{tx(models.SideBank, "a", "10.00")}
	ledger := []*models.Transaction{tx(models.SideLedger, "b", "10.00")}
	s := matchedSession(t, bank, ledger)

	_, err := s.ReconcileGroup(nil, ids(ledger))
	assert.True(t, errors.IsCode(err, errors.CodeEmptySelection))

	_, err = s.ReconcileGroup(ids(bank), []string{})
	assert.True(t, errors.IsCode(err, errors.CodeEmptySelection))

	// State untouched either way.
	unmatchedBank, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)
	assert.Len(t, unmatchedBank, 1)
}

func TestSession_ManualRoundStaleSelection(t *testing.T) {
	bank := []*models.Transaction{
		tx(models.SideBank, "a", "10.00"),
		tx(models.SideBank, "b", "10.00"),
	}
	ledger := []*models.Transaction{
		tx(models.SideLedger, "c", "10.00"),
		tx(models.SideLedger, "d", "10.00"),
	}
	s := matchedSession(t, bank, ledger)

	// First round consumes a and c.
	_, err := s.ReconcileGroup([]string{bank[0].ID}, []string{ledger[0].ID})
	require.NoError(t, err)

	// Replaying the same selection is stale; nothing changes.
	_, err = s.ReconcileGroup([]string{bank[0].ID}, []string{ledger[0].ID})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStaleID))

	unmatchedBank, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)
	assert.Len(t, unmatchedBank, 1)
}

func TestSession_ClosedWorldInvariant(t *testing.T) {
	bank := []*models.Transaction{
		tx(models.SideBank, "Acme Corp", "100.00"),
		tx(models.SideBank, "Solo", "75.00"),
		tx(models.SideBank, "Rent March", "25.00"),
	}
	ledger := []*models.Transaction{
		tx(models.SideLedger, "ACME CORPORATION", "100.00"),
		tx(models.SideLedger, "Office Sublet", "25.00"),
	}

	s := matchedSession(t, bank, ledger)

	_, err := s.ReconcileGroup([]string{bank[2].ID}, []string{ledger[1].ID})
	require.NoError(t, err)

	// Every original bank id is either still unmatched or was committed as
	// matched; no id is duplicated or fabricated.
	matched := make(map[string]bool)
	matched[bank[0].ID] = true // auto-matched
	matched[bank[2].ID] = true // manual round

	unmatchedBank, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, tx := range unmatchedBank {
		assert.False(t, matched[tx.ID], "matched id must not reappear unmatched")
		assert.False(t, seen[tx.ID], "no id may appear twice")
		seen[tx.ID] = true
	}
	assert.Equal(t, len(bank), len(unmatchedBank)+len(matched))
	for id := range matched {
		assert.False(t, seen[id])
	}
}

func TestSession_SummaryCountsRounds(t *testing.T) {
	bank := []*models.Transaction{
		tx(models.SideBank, "a", "10.00"),
		tx(models.SideBank, "b", "20.00"),
	}
	ledger := []*models.Transaction{
		tx(models.SideLedger, "c", "10.00"),
		tx(models.SideLedger, "d", "20.00"),
	}
	s := matchedSession(t, bank, ledger)

	_, err := s.ReconcileGroup([]string{bank[0].ID}, []string{ledger[0].ID})
	require.NoError(t, err)
	_, err = s.ReconcileGroup([]string{bank[1].ID}, []string{ledger[1].ID})
	require.NoError(t, err)

	summary := s.Summary()
	assert.Equal(t, 2, summary.ManualRounds)
	assert.Equal(t, 0, summary.UnmatchedBank)
	assert.Equal(t, 0, summary.UnmatchedLedger)
}
