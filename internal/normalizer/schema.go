package normalizer

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Schema holds the resolved column names for one input table. A field is the
// empty string when no header scored above the threshold for that role.
type Schema struct {
	Date   string
	Name   string
	Memo   string
	Amount string
	Debit  string
	Credit string
}

// HasAmountSource reports whether an amount can be obtained: either a direct
// amount column, or a debit/credit pair to derive it from.
func (s *Schema) HasAmountSource() bool {
	return s.Amount != "" || (s.Debit != "" && s.Credit != "")
}

// DeriveFromDebitCredit reports whether the amount must be computed as
// credit minus debit.
func (s *Schema) DeriveFromDebitCredit() bool {
	return s.Amount == "" && s.Debit != "" && s.Credit != ""
}

// closestColumn finds the header most similar to target, case- and
// whitespace-insensitively. Returns the original header spelling, or the
// empty string if the best score is below the threshold.
func closestColumn(headers []string, target string, threshold int) string {
	target = strings.ToLower(target)

	best := ""
	bestScore := -1
	for _, h := range headers {
		score := fuzzy.Ratio(strings.ToLower(strings.TrimSpace(h)), target)
		if score > bestScore {
			best = h
			bestScore = score
		}
	}
	if bestScore >= threshold {
		return best
	}
	return ""
}

// ResolveSchema maps the table's headers onto the canonical roles by
// best-effort similarity matching.
func ResolveSchema(headers []string, threshold int) *Schema {
	return &Schema{
		Date:   closestColumn(headers, "Date", threshold),
		Name:   closestColumn(headers, "Name", threshold),
		Memo:   closestColumn(headers, "Memo", threshold),
		Amount: closestColumn(headers, "Amount", threshold),
		Debit:  closestColumn(headers, "Debit", threshold),
		Credit: closestColumn(headers, "Credit", threshold),
	}
}

// MissingRequired lists the required roles the schema could not resolve.
// Date, name and memo are always required; the amount source is checked
// separately because its failure mode has its own error.
func (s *Schema) MissingRequired() []string {
	var missing []string
	if s.Date == "" {
		missing = append(missing, "Date")
	}
	if s.Name == "" {
		missing = append(missing, "Name")
	}
	if s.Memo == "" {
		missing = append(missing, "Memo")
	}
	return missing
}
