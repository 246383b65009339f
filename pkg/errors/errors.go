// Package errors defines the error taxonomy shared by the reconciliation
// engine and its CLI.
//
// Errors carry a category, a machine-readable code, an optional suggestion
// for the user and a context map with structured details. Categories map to
// process exit codes so the CLI can fail consistently.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrorCategory groups related failure modes.
type ErrorCategory string

const (
	CategorySchema    ErrorCategory = "schema"
	CategorySelection ErrorCategory = "selection"
	CategorySession   ErrorCategory = "session"
	CategoryIngest    ErrorCategory = "ingest"
	CategoryInternal  ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// Schema errors
	CodeMissingColumn  ErrorCode = "missing_column"
	CodeNoAmountSource ErrorCode = "no_amount_source"

	// Selection errors
	CodeEmptySelection ErrorCode = "empty_selection"
	CodeStaleID        ErrorCode = "stale_id"
	CodeSumMismatch    ErrorCode = "sum_mismatch"

	// Session errors
	CodeSessionClosed ErrorCode = "session_closed"
	CodeNotLoaded     ErrorCode = "not_loaded"

	// Ingest errors
	CodeFileNotFound      ErrorCode = "file_not_found"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeFileCorrupted     ErrorCode = "file_corrupted"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// Context carries structured details about an error.
type Context map[string]interface{}

// ReconcileError is the error type used throughout the engine.
type ReconcileError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Error implements the error interface.
func (e *ReconcileError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *ReconcileError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns the process exit code for the error's category.
func (e *ReconcileError) GetExitCode() int {
	switch e.Category {
	case CategoryIngest:
		return 2
	case CategorySchema:
		return 3
	case CategorySelection:
		return 4
	case CategorySession, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds a structured detail to the error.
func (e *ReconcileError) WithContext(key string, value interface{}) *ReconcileError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches a user-facing remediation hint.
func (e *ReconcileError) WithSuggestion(suggestion string) *ReconcileError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcileError.
func New(category ErrorCategory, code ErrorCode, message string) *ReconcileError {
	return &ReconcileError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcileError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcileError {
	if err == nil {
		return nil
	}
	return &ReconcileError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// AsReconcileError extracts a *ReconcileError from an error chain.
func AsReconcileError(err error) (*ReconcileError, bool) {
	var re *ReconcileError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsCode reports whether err is a ReconcileError with the given code.
func IsCode(err error, code ErrorCode) bool {
	re, ok := AsReconcileError(err)
	return ok && re.Code == code
}

// SchemaError reports that required columns could not be resolved in a file's
// headers. Normalization of that file fails as a whole; no partial transaction
// set is produced.
func SchemaError(source string, missing []string) *ReconcileError {
	return New(
		CategorySchema,
		CodeMissingColumn,
		fmt.Sprintf("cannot resolve required columns %v in %s", missing, source),
	).
		WithSuggestion("check the file headers; date, name and memo columns are required").
		WithContext("source", source).
		WithContext("missing_columns", missing)
}

// NoAmountSourceError reports that neither an amount column nor a usable
// debit/credit pair was found.
func NoAmountSourceError(source string) *ReconcileError {
	return New(
		CategorySchema,
		CodeNoAmountSource,
		fmt.Sprintf("no amount column and no debit/credit pair to derive it in %s", source),
	).
		WithSuggestion("provide an amount column, or both debit and credit columns").
		WithContext("source", source)
}

// NotFoundError reports that a referenced transaction id is no longer present
// in an unmatched set. The selection is stale; no state was changed.
func NotFoundError(side string, ids []string) *ReconcileError {
	return New(
		CategorySelection,
		CodeStaleID,
		fmt.Sprintf("%d selected %s id(s) are no longer unmatched", len(ids), side),
	).
		WithSuggestion("refresh the unmatched view and reselect; the items may already be reconciled").
		WithContext("side", side).
		WithContext("stale_ids", ids)
}

// EmptySelectionError reports a manual round submitted with nothing selected
// on one side.
func EmptySelectionError(side string) *ReconcileError {
	return New(
		CategorySelection,
		CodeEmptySelection,
		fmt.Sprintf("no %s items selected", side),
	).
		WithSuggestion("select at least one item from both the bank and ledger sides")
}

// SumMismatchError reports that the two selected groups do not sum to the
// same cent-rounded amount. This is an expected, user-correctable outcome;
// state is untouched and the discrepancy is carried in the context.
func SumMismatchError(bankSum, ledgerSum decimal.Decimal) *ReconcileError {
	return New(
		CategorySelection,
		CodeSumMismatch,
		fmt.Sprintf("selected groups have different totals: bank %s vs ledger %s", bankSum, ledgerSum),
	).
		WithSuggestion("adjust the selection so both groups sum to the same amount").
		WithContext("bank_sum", bankSum.String()).
		WithContext("ledger_sum", ledgerSum.String()).
		WithContext("discrepancy", bankSum.Sub(ledgerSum).Abs().String())
}

// Discrepancy extracts the absolute sum difference from a sum-mismatch error.
func Discrepancy(err error) (decimal.Decimal, bool) {
	re, ok := AsReconcileError(err)
	if !ok || re.Code != CodeSumMismatch {
		return decimal.Zero, false
	}
	raw, ok := re.Context["discrepancy"].(string)
	if !ok {
		return decimal.Zero, false
	}
	d, perr := decimal.NewFromString(raw)
	if perr != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SessionClosedError reports an operation against a discarded session.
func SessionClosedError() *ReconcileError {
	return New(
		CategorySession,
		CodeSessionClosed,
		"session is closed",
	).WithSuggestion("start a new session by supplying input files again")
}

// NotLoadedError reports an operation that requires normalized data for both
// sides before it can run.
func NotLoadedError(operation string) *ReconcileError {
	return New(
		CategorySession,
		CodeNotLoaded,
		fmt.Sprintf("%s requires both sides to be loaded", operation),
	).WithContext("operation", operation)
}

// IngestError wraps a file reading failure.
func IngestError(code ErrorCode, path string, err error) *ReconcileError {
	var message, suggestion string
	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check that the path is correct and the file exists"
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("unsupported file format: %s", path)
		suggestion = "supported formats are .csv and .xlsx"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file could not be read: %s", path)
		suggestion = "verify the file is a valid CSV or Excel workbook"
	default:
		message = fmt.Sprintf("ingest error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *ReconcileError
	if err != nil {
		result = Wrap(err, CategoryIngest, code, message)
	} else {
		result = New(CategoryIngest, code, message)
	}
	return result.WithSuggestion(suggestion).WithContext("file_path", path)
}
