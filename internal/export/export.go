// Package export flattens the currently-unmatched transactions of both sides
// into plain records suitable for tabular serialization. The engine exposes
// sequences, not files; writing is the caller's concern, with a CSV writer
// provided for the common case.
package export

import (
	"encoding/csv"
	"io"

	"crown-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Record is one unmatched transaction flattened for export, tagged with the
// side it came from. Only display fields are carried; internal ids and
// comparison keys do not leak.
type Record struct {
	Date   string          `json:"date"`
	Name   string          `json:"name"`
	Memo   string          `json:"memo"`
	Amount decimal.Decimal `json:"amount"`
	Source models.Side     `json:"source"`
}

// Flatten produces export records for the given unmatched sets: bank records
// first, then ledger records, each side in its display order.
func Flatten(bank, ledger []*models.Transaction) []Record {
	records := make([]Record, 0, len(bank)+len(ledger))
	for _, tx := range bank {
		records = append(records, fromTransaction(tx))
	}
	for _, tx := range ledger {
		records = append(records, fromTransaction(tx))
	}
	return records
}

func fromTransaction(tx *models.Transaction) Record {
	return Record{
		Date:   tx.DateKey(),
		Name:   tx.Name,
		Memo:   tx.Memo,
		Amount: tx.Amount,
		Source: tx.Side,
	}
}

// WriteCSV serializes the records as CSV with a header row.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"date", "name", "memo", "amount", "source"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.Date, r.Name, r.Memo, r.Amount.StringFixed(2), r.Source.String()}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
