// Package ingest reads tabular input files into raw rows for the
// reconciliation engine. It is the engine's ingestion collaborator: the
// engine itself never touches the filesystem, it consumes the ordered tables
// produced here.
//
// Supported formats are CSV and XLSX (first sheet). The first row is taken
// as the header row; all cell values are passed through as strings, with no
// normalization applied.
package ingest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"crown-reconciliation-engine/internal/models"
	"crown-reconciliation-engine/pkg/errors"
	"crown-reconciliation-engine/pkg/logger"

	"github.com/xuri/excelize/v2"
)

// ReadFile reads a CSV or XLSX file into a table. The format is chosen by
// file extension.
func ReadFile(path string) (models.Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return models.Table{}, errors.IngestError(errors.CodeFileNotFound, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return models.Table{}, errors.IngestError(errors.CodeUnsupportedFormat, path, nil)
	}
}

func readCSV(path string) (models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Table{}, errors.IngestError(errors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	raw, err := reader.ReadAll()
	if err != nil {
		return models.Table{}, errors.IngestError(errors.CodeFileCorrupted, path, err)
	}

	return buildTable(path, raw), nil
}

func readXLSX(path string) (models.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return models.Table{}, errors.IngestError(errors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return buildTable(path, nil), nil
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return models.Table{}, errors.IngestError(errors.CodeFileCorrupted, path, err)
	}

	return buildTable(path, raw), nil
}

// buildTable keys each data row by the header row. Short rows leave the
// trailing columns empty; surplus cells beyond the headers are ignored.
func buildTable(path string, raw [][]string) models.Table {
	table := models.Table{Source: filepath.Base(path)}
	if len(raw) == 0 {
		return table
	}

	table.Headers = raw[0]
	table.Rows = make([]models.RawRow, 0, len(raw)-1)

	for _, cells := range raw[1:] {
		if isEmptyRow(cells) {
			continue
		}
		row := make(models.RawRow, len(table.Headers))
		for i, header := range table.Headers {
			if i < len(cells) {
				row[header] = cells[i]
			} else {
				row[header] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	logger.GetGlobalLogger().WithComponent("ingest").WithFields(logger.Fields{
		"source":  table.Source,
		"columns": len(table.Headers),
		"rows":    len(table.Rows),
	}).Debug("Read input table")

	return table
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
