package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"crown-reconciliation-engine/cmd/reconciler/config"
	"crown-reconciliation-engine/internal/export"
	"crown-reconciliation-engine/internal/ingest"
	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/internal/session"
	"crown-reconciliation-engine/pkg/errors"
	"crown-reconciliation-engine/pkg/logger"

	"github.com/spf13/cobra"
)

// Flags for the reconcile command
var (
	bankFile        string
	ledgerFile      string
	nameThreshold   int
	headerThreshold int
	outputFile      string
	interactive     bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a bank statement against an internal ledger",
	Long: `Reconcile loads a bank statement and a ledger file, runs the automatic
matching pass, and reports whatever could not be matched.

Rows pair automatically when they share a calendar date and a cent-rounded
amount and their party names score above the similarity threshold. With
--interactive, leftover rows can then be reconciled manually in groups whose
totals agree to the cent.

Examples:
  # Automatic pass only
  reconciler reconcile --bank-file statement.csv --ledger-file ledger.csv

  # Export the unmatched remainder
  reconciler reconcile --bank-file statement.csv --ledger-file ledger.csv \
    --output-file unmatched.csv

  # Manual group reconciliation
  reconciler reconcile --bank-file statement.xlsx --ledger-file ledger.csv \
    --interactive

  # Stricter name matching
  reconciler reconcile --bank-file statement.csv --ledger-file ledger.csv \
    --threshold 90`,

	PreRunE:       validateReconcileFlags,
	RunE:          runReconcile,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&bankFile, "bank-file", "b", "", "path to the bank statement file, .csv or .xlsx (required)")
	reconcileCmd.Flags().StringVarP(&ledgerFile, "ledger-file", "l", "", "path to the ledger file, .csv or .xlsx (required)")
	reconcileCmd.Flags().IntVarP(&nameThreshold, "threshold", "t", 80, "name similarity threshold (0-100); pairs must score above it")
	reconcileCmd.Flags().IntVar(&headerThreshold, "header-threshold", 80, "column header similarity threshold (0-100)")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "write unmatched records as CSV to this path")
	reconcileCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "run manual reconciliation rounds on the unmatched remainder")
}

// validateReconcileFlags checks required flags before running.
func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	var missing []string
	if strings.TrimSpace(bankFile) == "" {
		missing = append(missing, "--bank-file")
	}
	if strings.TrimSpace(ledgerFile) == "" {
		missing = append(missing, "--ledger-file")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required flag(s) missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(config.CreateLoggerConfig(verbose))
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)

	matchConfig, err := config.CreateMatchingConfig(nameThreshold)
	if err != nil {
		return err
	}
	normConfig, err := config.CreateNormalizerConfig(headerThreshold)
	if err != nil {
		return err
	}

	bankTable, err := ingest.ReadFile(bankFile)
	if err != nil {
		return exitWithError(err)
	}
	ledgerTable, err := ingest.ReadFile(ledgerFile)
	if err != nil {
		return exitWithError(err)
	}

	manager := session.NewManager(normConfig, matchConfig)
	sess, _, err := manager.Open(bankTable, ledgerTable)
	if err != nil {
		return exitWithError(err)
	}

	out := cmd.OutOrStdout()
	if err := printOverview(out, sess, bankTable.Source, ledgerTable.Source); err != nil {
		return err
	}
	if err := printUnmatched(out, sess); err != nil {
		return err
	}

	if interactive {
		if err := runManualRounds(cmd, sess); err != nil {
			return exitWithError(err)
		}
	}

	if outputFile != "" {
		if err := writeExport(sess, outputFile); err != nil {
			return exitWithError(err)
		}
		fmt.Fprintf(out, "\nUnmatched records written to %s\n", outputFile)
	}

	return nil
}

// exitWithError routes engine errors through the CLI error handler so exit
// codes and suggestions stay consistent.
func exitWithError(err error) error {
	handler := NewCLIErrorHandler()
	os.Exit(handler.HandleError(err))
	return nil
}

func printOverview(w io.Writer, sess *session.Session, bankSource, ledgerSource string) error {
	totals, err := sess.Totals()
	if err != nil {
		return err
	}
	summary := sess.Summary()

	fmt.Fprintf(w, "Bank file:    %s (%d transactions, %d rows dropped)\n",
		bankSource, summary.BankTransactions, summary.BankDropped)
	fmt.Fprintf(w, "Ledger file:  %s (%d transactions, %d rows dropped)\n",
		ledgerSource, summary.LedgerTransactions, summary.LedgerDropped)
	fmt.Fprintf(w, "Bank total:   %s\n", totals.Bank.StringFixed(2))
	fmt.Fprintf(w, "Ledger total: %s\n", totals.Ledger.StringFixed(2))
	fmt.Fprintf(w, "Difference:   %s\n", totals.Difference.StringFixed(2))
	fmt.Fprintf(w, "Auto-matched: %d pair(s)\n", summary.AutoMatchedPairs)
	return nil
}

func printUnmatched(w io.Writer, sess *session.Session) error {
	for _, side := range []models.Side{models.SideBank, models.SideLedger} {
		txs, err := sess.Unmatched(side)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "\nUnmatched %s items (%d):\n", strings.ToLower(side.String()), len(txs))
		if len(txs) == 0 {
			fmt.Fprintln(w, "  (none)")
			continue
		}
		for i, tx := range txs {
			fmt.Fprintf(w, "  %3d. %s | %-30s | %12s | %s\n",
				i+1, tx.DateKey(), tx.Name, tx.Amount.StringFixed(2), tx.Memo)
		}
	}
	return nil
}

// runManualRounds drives manual grouping rounds from stdin. Each round reads
// one selection per side as comma-separated row numbers from the listing
// above; an empty line or "done" finishes.
func runManualRounds(cmd *cobra.Command, sess *session.Session) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprintln(out, "\nManual reconciliation: enter row numbers per side, e.g. 1,3.")
	fmt.Fprintln(out, "Groups commit only when both totals agree to the cent. Enter 'done' to finish.")

	for {
		bankTxs, err := sess.Unmatched(models.SideBank)
		if err != nil {
			return err
		}
		ledgerTxs, err := sess.Unmatched(models.SideLedger)
		if err != nil {
			return err
		}
		if len(bankTxs) == 0 && len(ledgerTxs) == 0 {
			fmt.Fprintln(out, "All items reconciled.")
			return nil
		}

		bankIDs, done, err := readSelection(out, scanner, "bank", bankTxs)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			continue
		}
		if done {
			return nil
		}
		ledgerIDs, done, err := readSelection(out, scanner, "ledger", ledgerTxs)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			continue
		}
		if done {
			return nil
		}

		result, err := sess.ReconcileGroup(bankIDs, ledgerIDs)
		if err != nil {
			if d, ok := errors.Discrepancy(err); ok {
				fmt.Fprintf(out, "  Totals differ by %s; adjust the selection.\n", d.StringFixed(2))
				continue
			}
			if re, ok := errors.AsReconcileError(err); ok && re.Category == errors.CategorySelection {
				fmt.Fprintf(out, "  %s\n", re.Message)
				continue
			}
			return err
		}

		fmt.Fprintf(out, "  Reconciled %d bank item(s) with %d ledger item(s), total %s.\n",
			result.BankCount, result.LedgerCount, result.Total.StringFixed(2))
		fmt.Fprintf(out, "  Remaining unmatched: bank %d, ledger %d.\n",
			result.RemainingBank, result.RemainingLedger)

		if err := printUnmatched(out, sess); err != nil {
			return err
		}
	}
}

// readSelection prompts for one side's selection and maps row numbers to
// transaction ids. The second return value reports that the user finished.
func readSelection(out io.Writer, scanner *bufio.Scanner, side string, txs []*models.Transaction) ([]string, bool, error) {
	fmt.Fprintf(out, "%s> ", side)
	if !scanner.Scan() {
		fmt.Fprintln(out)
		return nil, true, nil
	}

	line := strings.TrimSpace(scanner.Text())
	if line == "" || strings.EqualFold(line, "done") {
		return nil, true, nil
	}

	indices, err := parseSelection(line, len(txs))
	if err != nil {
		return nil, false, err
	}

	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = txs[idx-1].ID
	}
	return ids, false, nil
}

// parseSelection parses a comma-separated list of 1-based row numbers,
// rejecting duplicates and out-of-range values.
func parseSelection(input string, max int) ([]int, error) {
	parts := strings.Split(input, ",")
	seen := make(map[int]bool, len(parts))
	indices := make([]int, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid row number %q", part)
		}
		if n < 1 || n > max {
			return nil, fmt.Errorf("row number %d out of range 1-%d", n, max)
		}
		if seen[n] {
			return nil, fmt.Errorf("row number %d selected twice", n)
		}
		seen[n] = true
		indices = append(indices, n)
	}

	if len(indices) == 0 {
		return nil, fmt.Errorf("no row numbers given")
	}
	return indices, nil
}

func writeExport(sess *session.Session, path string) error {
	bankTxs, err := sess.Unmatched(models.SideBank)
	if err != nil {
		return err
	}
	ledgerTxs, err := sess.Unmatched(models.SideLedger)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.CategoryIngest, errors.CodeFileCorrupted,
			fmt.Sprintf("cannot create output file %s", path))
	}
	defer f.Close()

	return export.WriteCSV(f, export.Flatten(bankTxs, ledgerTxs))
}
