package session

import (
	"testing"

	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTables() (models.Table, models.Table) {
	bank := models.Table{
		Source:  "bank.csv",
		Headers: []string{"Date", "Name", "Memo", "Amount"},
		Rows: []models.RawRow{
			{"Date": "2024-01-05", "Name": "Acme Corp", "Memo": "", "Amount": "100.00"},
			{"Date": "2024-01-06", "Name": "Orphan", "Memo": "", "Amount": "55.00"},
		},
	}
	ledger := models.Table{
		Source:  "ledger.csv",
		Headers: []string{"Date", "Name", "Memo", "Amount"},
		Rows: []models.RawRow{
			{"Date": "2024-01-05", "Name": "ACME CORPORATION", "Memo": "", "Amount": "100.00"},
		},
	}
	return bank, ledger
}

func TestFingerprint_Deterministic(t *testing.T) {
	bank, ledger := testTables()

	assert.Equal(t, Fingerprint(bank, ledger), Fingerprint(bank, ledger))
}

func TestFingerprint_SensitiveToContent(t *testing.T) {
	bank, ledger := testTables()
	original := Fingerprint(bank, ledger)

	changed := bank
	changed.Rows = append([]models.RawRow(nil), bank.Rows...)
	changed.Rows[0] = models.RawRow{"Date": "2024-01-05", "Name": "Acme Corp", "Memo": "", "Amount": "100.01"}
	assert.NotEqual(t, original, Fingerprint(changed, ledger))

	renamed := bank
	renamed.Source = "other.csv"
	assert.NotEqual(t, original, Fingerprint(renamed, ledger))

	// Swapping sides is a different input.
	assert.NotEqual(t, original, Fingerprint(ledger, bank))
}

func TestManager_OpenBuildsSession(t *testing.T) {
	bank, ledger := testTables()
	m := NewManager(nil, nil)

	s, reused, err := m.Open(bank, ledger)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, PhaseAutoMatched, s.Phase())
	assert.Same(t, s, m.Current())

	unmatched, err := s.Unmatched(models.SideBank)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "Orphan", unmatched[0].Name)
}

func TestManager_OpenReusesUnchangedInputs(t *testing.T) {
	bank, ledger := testTables()
	m := NewManager(nil, nil)

	first, _, err := m.Open(bank, ledger)
	require.NoError(t, err)

	second, reused, err := m.Open(bank, ledger)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Same(t, first, second)
}

func TestManager_OpenRebuildsOnChangedInputs(t *testing.T) {
	bank, ledger := testTables()
	m := NewManager(nil, nil)

	first, _, err := m.Open(bank, ledger)
	require.NoError(t, err)

	changed := bank
	changed.Rows = append([]models.RawRow(nil), bank.Rows...)
	changed.Rows = append(changed.Rows, models.RawRow{
		"Date": "2024-01-07", "Name": "New Row", "Memo": "", "Amount": "7.00",
	})

	second, reused, err := m.Open(changed, ledger)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotSame(t, first, second)

	// The old session is closed, not resumed.
	assert.Equal(t, PhaseClosed, first.Phase())
	assert.Equal(t, PhaseAutoMatched, second.Phase())
}

func TestManager_OpenPropagatesSchemaErrors(t *testing.T) {
	bank, ledger := testTables()
	bank.Headers = []string{"Completely", "Unrelated", "Columns"}

	m := NewManager(nil, nil)
	_, _, err := m.Open(bank, ledger)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMissingColumn))
	assert.Nil(t, m.Current())
}

func TestManager_OpenBadInputPreservesLiveSession(t *testing.T) {
	bank, ledger := testTables()
	m := NewManager(nil, nil)

	first, _, err := m.Open(bank, ledger)
	require.NoError(t, err)

	broken := bank
	broken.Headers = []string{"Completely", "Unrelated", "Columns"}

	_, _, err = m.Open(broken, ledger)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMissingColumn))

	// A failed replacement must not destroy the live session.
	assert.Same(t, first, m.Current())
	assert.Equal(t, PhaseAutoMatched, first.Phase())
}
