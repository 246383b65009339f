package session

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"crown-reconciliation-engine/internal/matcher"
	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/internal/normalizer"
	"crown-reconciliation-engine/pkg/logger"
)

// Manager owns at most one live session and rebuilds it when the inputs
// change. Change detection uses a content fingerprint of both raw tables:
// opening the same content again reuses the live session, while different
// content closes it and builds a fresh one. There is no incremental
// re-ingestion of partially new data.
type Manager struct {
	normalizer *normalizer.Normalizer
	engine     *matcher.MatchingEngine
	current    *Session
	logger     logger.Logger
}

// NewManager creates a session manager with the given normalization and
// matching configurations.
func NewManager(normConfig *normalizer.Config, matchConfig *matcher.MatchingConfig) *Manager {
	return &Manager{
		normalizer: normalizer.New(normConfig),
		engine:     matcher.NewMatchingEngine(matchConfig),
		logger:     logger.GetGlobalLogger().WithComponent("session_manager"),
	}
}

// Fingerprint computes a content fingerprint over both raw tables. It covers
// source names, headers and every cell in order, so any change in either
// input produces a different fingerprint.
func Fingerprint(bank, ledger models.Table) string {
	h := sha256.New()
	hashTable(h, bank)
	hashTable(h, ledger)
	return hex.EncodeToString(h.Sum(nil))
}

func hashTable(w io.Writer, table models.Table) {
	io.WriteString(w, table.Source)
	io.WriteString(w, "\x00")
	for _, header := range table.Headers {
		io.WriteString(w, header)
		io.WriteString(w, "\x01")
	}
	for _, row := range table.Rows {
		for _, header := range table.Headers {
			io.WriteString(w, row[header])
			io.WriteString(w, "\x01")
		}
		io.WriteString(w, "\x02")
	}
}

// Open returns the session for the given inputs. If a live session exists
// for the same content it is reused; otherwise a new session is normalized,
// loaded and auto-matched, and only then replaces the old one, which is
// closed. If building the new session fails, the live session is left
// untouched. The second return value reports whether the session was reused.
func (m *Manager) Open(bank, ledger models.Table) (*Session, bool, error) {
	fp := Fingerprint(bank, ledger)

	if m.current != nil && m.current.Phase() != PhaseClosed && m.current.Fingerprint() == fp {
		m.logger.WithField("fingerprint", fp[:12]).Debug("Reusing live session for unchanged inputs")
		return m.current, true, nil
	}

	// Build the replacement before touching the live session, so a bad
	// input file cannot destroy in-progress work.
	bankResult, err := m.normalizer.Normalize(bank, models.SideBank)
	if err != nil {
		return nil, false, err
	}
	ledgerResult, err := m.normalizer.Normalize(ledger, models.SideLedger)
	if err != nil {
		return nil, false, err
	}

	s := NewSession(fp)
	if err := s.Load(bankResult, ledgerResult); err != nil {
		return nil, false, err
	}
	if _, err := s.AutoMatch(m.engine); err != nil {
		return nil, false, err
	}

	if m.current != nil {
		m.current.Close()
	}
	m.current = s
	m.logger.WithField("fingerprint", fp[:12]).Info("Built new session")
	return s, false, nil
}

// Current returns the live session, or nil when none has been opened.
func (m *Manager) Current() *Session {
	return m.current
}
