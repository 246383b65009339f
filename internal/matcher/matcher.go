// Package matcher implements the automatic matching pass of the
// reconciliation engine: an exact equi-join on (date, cent-rounded amount)
// proposing candidate pairs, followed by a fuzzy name-similarity filter that
// confirms pairs and enforces one-to-one consumption.
//
// The confirmation pass is greedy: candidates are consumed in the
// deterministic order the join produced, and the first accepted pair for a
// transaction consumes it for the rest of the pass. A suboptimal greedy pick
// leaves both records unmatched for human review rather than mis-pairing
// money; later manual rounds are the safety net.
package matcher

import (
	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/pkg/logger"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/shopspring/decimal"
)

// MatchingEngine runs the automatic matching pass.
type MatchingEngine struct {
	Config *MatchingConfig
	logger logger.Logger
}

// NewMatchingEngine creates a matching engine with the given configuration.
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &MatchingEngine{
		Config: config,
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
	}
}

// AcceptedPair is a confirmed (bank, ledger) match with its similarity score.
type AcceptedPair struct {
	Bank   *models.Transaction
	Ledger *models.Transaction
	Score  int
}

// AutoMatchResult is the outcome of one automatic pass.
type AutoMatchResult struct {
	Accepted        []AcceptedPair
	UnmatchedBank   []*models.Transaction
	UnmatchedLedger []*models.Transaction
	Summary         Summary
}

// Summary provides aggregate statistics about one automatic pass.
type Summary struct {
	TotalBank       int
	TotalLedger     int
	MatchedPairs    int
	UnmatchedBank   int
	UnmatchedLedger int
	MatchedAmount   decimal.Decimal
}

// AutoMatch runs the exact-key join and the fuzzy confirmation filter over
// the two transaction sets. Transactions not consumed by an accepted pair
// are returned unmatched, preserving their input order.
func (me *MatchingEngine) AutoMatch(bank, ledger []*models.Transaction) *AutoMatchResult {
	candidates := BuildCandidates(bank, ledger)

	consumedBank := make(map[string]bool)
	consumedLedger := make(map[string]bool)
	var accepted []AcceptedPair

	for _, pair := range candidates {
		if consumedBank[pair.Bank.ID] || consumedLedger[pair.Ledger.ID] {
			continue
		}

		score := fuzzy.PartialRatio(pair.Bank.NameKey, pair.Ledger.NameKey)
		if score <= me.Config.NameThreshold {
			continue
		}

		accepted = append(accepted, AcceptedPair{
			Bank:   pair.Bank,
			Ledger: pair.Ledger,
			Score:  score,
		})
		consumedBank[pair.Bank.ID] = true
		consumedLedger[pair.Ledger.ID] = true
	}

	result := &AutoMatchResult{Accepted: accepted}
	matchedAmount := decimal.Zero
	for _, p := range accepted {
		matchedAmount = matchedAmount.Add(p.Bank.RoundedAmount())
	}

	for _, tx := range bank {
		if !consumedBank[tx.ID] {
			result.UnmatchedBank = append(result.UnmatchedBank, tx)
		}
	}
	for _, tx := range ledger {
		if !consumedLedger[tx.ID] {
			result.UnmatchedLedger = append(result.UnmatchedLedger, tx)
		}
	}

	result.Summary = Summary{
		TotalBank:       len(bank),
		TotalLedger:     len(ledger),
		MatchedPairs:    len(accepted),
		UnmatchedBank:   len(result.UnmatchedBank),
		UnmatchedLedger: len(result.UnmatchedLedger),
		MatchedAmount:   matchedAmount,
	}

	me.logger.WithFields(logger.Fields{
		"candidates":       len(candidates),
		"matched_pairs":    len(accepted),
		"unmatched_bank":   len(result.UnmatchedBank),
		"unmatched_ledger": len(result.UnmatchedLedger),
	}).Info("Automatic matching pass complete")

	return result
}
