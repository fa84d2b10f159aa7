package resolver

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// parseCSV reads delimited text into a table. Ragged rows are accepted.
func parseCSV(data []byte) (*table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("csv: not utf-8 text")
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	if bytes.Count(data, []byte(";")) > bytes.Count(data, []byte(",")) {
		r.Comma = ';'
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	t := newTable(records)
	if t == nil {
		return nil, fmt.Errorf("csv: empty")
	}
	return t, nil
}

// parseXLSX reads the first sheet of a workbook. Cell values are raw so
// number formats do not interfere with parsing.
func parseXLSX(data []byte) (*table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx: no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsx: rows: %w", err)
	}
	t := newTable(rows)
	if t == nil {
		return nil, fmt.Errorf("xlsx: empty sheet")
	}
	return t, nil
}

// parseSpreadsheet parses csv, xlsx and xls payloads. Files labelled xls
// are often CSV or xlsx in disguise, so each parser is tried in turn.
func parseSpreadsheet(ext string, data []byte) (*table, error) {
	switch ext {
	case "csv":
		return parseCSV(data)
	case "xlsx":
		return parseXLSX(data)
	default:
		t, err := parseXLSX(data)
		if err == nil {
			return t, nil
		}
		if t, csvErr := parseCSV(data); csvErr == nil {
			return t, nil
		}
		return nil, err
	}
}
