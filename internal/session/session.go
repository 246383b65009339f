// Package session owns the mutable state of one reconciliation workflow.
//
// A Session moves through the phases Empty, Loaded, AutoMatched and Closed.
// It is loaded once with the normalized transaction sets of both sides, runs
// a single automatic matching pass, and then accepts any number of manual
// grouping rounds, each shrinking the unmatched sets or leaving them
// untouched. Closing is terminal; a new session is created rather than
// resumed when inputs change.
//
// All session operations are serialized by an internal mutex: the state is
// the engine's only shared mutable resource and follows a single-writer
// discipline.
package session

import (
	"sync"

	"crown-reconciliation-engine/internal/matcher"
	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/internal/normalizer"
	"crown-reconciliation-engine/pkg/errors"
	"crown-reconciliation-engine/pkg/logger"
)

// Phase is the lifecycle phase of a session.
type Phase string

const (
	PhaseEmpty       Phase = "empty"
	PhaseLoaded      Phase = "loaded"
	PhaseAutoMatched Phase = "auto_matched"
	PhaseClosed      Phase = "closed"
)

// Session is one reconciliation workflow over a fixed pair of inputs.
type Session struct {
	mu sync.Mutex

	phase       Phase
	fingerprint string

	// Originals, fixed at load time. Unmatched set membership is the only
	// thing that changes afterwards.
	bank          []*models.Transaction
	ledger        []*models.Transaction
	bankDropped   int
	ledgerDropped int

	state  *ReconciliationState
	auto   *matcher.AutoMatchResult
	rounds int

	logger logger.Logger
}

// Summary aggregates the session's progress for display.
type Summary struct {
	BankTransactions   int
	LedgerTransactions int
	BankDropped        int
	LedgerDropped      int
	AutoMatchedPairs   int
	ManualRounds       int
	UnmatchedBank      int
	UnmatchedLedger    int
}

// NewSession creates an empty session tagged with the content fingerprint of
// the inputs it will be loaded from.
func NewSession(fingerprint string) *Session {
	return &Session{
		phase:       PhaseEmpty,
		fingerprint: fingerprint,
		logger:      logger.GetGlobalLogger().WithComponent("session"),
	}
}

// Load installs the normalized transaction sets for both sides and moves the
// session to Loaded.
func (s *Session) Load(bank, ledger *normalizer.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseClosed:
		return errors.SessionClosedError()
	case PhaseEmpty:
	default:
		return errors.New(errors.CategorySession, errors.CodeUnexpectedError,
			"session is already loaded")
	}

	s.bank = bank.Transactions
	s.ledger = ledger.Transactions
	s.bankDropped = bank.Dropped
	s.ledgerDropped = ledger.Dropped
	s.phase = PhaseLoaded

	s.logger.WithFields(logger.Fields{
		"bank_transactions":   len(s.bank),
		"ledger_transactions": len(s.ledger),
		"bank_dropped":        s.bankDropped,
		"ledger_dropped":      s.ledgerDropped,
	}).Info("Session loaded")
	return nil
}

// AutoMatch runs the automatic matching pass once and installs the resulting
// unmatched sets as the session's reconciliation state.
func (s *Session) AutoMatch(engine *matcher.MatchingEngine) (*matcher.AutoMatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseClosed:
		return nil, errors.SessionClosedError()
	case PhaseLoaded:
	default:
		return nil, errors.NotLoadedError("automatic matching")
	}

	if engine == nil {
		engine = matcher.NewMatchingEngine(nil)
	}

	s.auto = engine.AutoMatch(s.bank, s.ledger)
	s.state = NewState(s.auto.UnmatchedBank, s.auto.UnmatchedLedger)
	s.phase = PhaseAutoMatched
	return s.auto, nil
}

// Unmatched returns the ordered unmatched view for one side.
func (s *Session) Unmatched(side models.Side) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAutoMatched("unmatched view"); err != nil {
		return nil, err
	}
	return s.state.Unmatched(side), nil
}

// Totals sums the full normalized sets per side, with their difference.
// Informational only; matching never consults it.
func (s *Session) Totals() (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseClosed {
		return Totals{}, errors.SessionClosedError()
	}
	if s.phase == PhaseEmpty {
		return Totals{}, errors.NotLoadedError("totals")
	}
	return sumTotals(s.bank, s.ledger), nil
}

// UnmatchedTotals sums the amounts still unmatched on each side.
func (s *Session) UnmatchedTotals() (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAutoMatched("unmatched totals"); err != nil {
		return Totals{}, err
	}
	return s.state.UnmatchedTotals(), nil
}

// Summary reports the session's aggregate progress.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		BankTransactions:   len(s.bank),
		LedgerTransactions: len(s.ledger),
		BankDropped:        s.bankDropped,
		LedgerDropped:      s.ledgerDropped,
		ManualRounds:       s.rounds,
	}
	if s.auto != nil {
		summary.AutoMatchedPairs = len(s.auto.Accepted)
	}
	if s.state != nil {
		summary.UnmatchedBank, summary.UnmatchedLedger = s.state.Counts()
	}
	return summary
}

// Phase returns the session's current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Fingerprint returns the content fingerprint of the session's inputs.
func (s *Session) Fingerprint() string {
	return s.fingerprint
}

// Close discards the session. Closing is terminal: every subsequent
// operation fails, and a fresh session must be created for new inputs.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseClosed {
		return
	}
	s.phase = PhaseClosed
	s.logger.WithField("manual_rounds", s.rounds).Info("Session closed")
}

// requireAutoMatched guards operations that need the automatic pass to have
// run. Callers must hold the mutex.
func (s *Session) requireAutoMatched(operation string) error {
	switch s.phase {
	case PhaseClosed:
		return errors.SessionClosedError()
	case PhaseAutoMatched:
		return nil
	default:
		return errors.NotLoadedError(operation)
	}
}
