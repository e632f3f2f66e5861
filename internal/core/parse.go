package core

// parse.go turns an uploaded CSV payload into normalized hospital rows.
//
// All checks here are request-shape checks: any failure is returned as an
// *InputError before a single external call is made.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// RequiredColumns must all appear in the CSV header (case-insensitive).
var RequiredColumns = []string{"name", "address"}

// ParseUpload decodes, parses and normalizes an uploaded CSV.
// maxRows <= 0 falls back to DefaultMaxRows.
func ParseUpload(data []byte, maxRows int) ([]HospitalRow, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	text, err := decodeUTF8(data)
	if err != nil {
		return nil, err
	}

	records, err := ParseRecords(text)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, inputErrorf("CSV contains no hospital rows")
	}
	if len(records) > maxRows {
		return nil, &InputError{
			Message: fmt.Sprintf("CSV may contain at most %d hospitals", maxRows),
			kind:    ErrTooManyRows,
		}
	}

	rows := make([]HospitalRow, len(records))
	for i, rec := range records {
		rows[i] = RowFromRecord(i+1, rec)
	}
	return rows, nil
}

// decodeUTF8 validates the payload as UTF-8 and strips a leading byte-order mark.
func decodeUTF8(data []byte) ([]byte, error) {
	if !utf8.Valid(data) {
		return nil, inputErrorf("encoding error: file must be UTF-8 encoded")
	}
	text, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return nil, &InputError{Message: "encoding error", Err: err}
	}
	return text, nil
}

// ParseRecords reads CSV text with a header row and returns one
// normalized key/value mapping per data row, in file order.
// Missing trailing values become empty strings; extra values are dropped.
func ParseRecords(text []byte) ([]map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &InputError{Message: "invalid csv", Err: err}
	}
	for i := range header {
		header[i] = normalizeKey(header[i])
	}

	if err := checkHeaders(header); err != nil {
		return nil, err
	}

	var records []map[string]string
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &InputError{Message: "invalid csv", Err: err}
		}

		raw := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(fields) {
				raw[key] = fields[i]
			} else {
				raw[key] = ""
			}
		}
		records = append(records, NormalizeRow(raw))
	}
	return records, nil
}

// checkHeaders verifies that every required column is present.
func checkHeaders(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return inputErrorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NormalizeRow lower-cases and trims keys and trims values.
// Applying it to an already normalized row returns an equal row.
func NormalizeRow(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[normalizeKey(k)] = strings.TrimSpace(v)
	}
	return out
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// RowFromRecord extracts the hospital fields from a normalized record.
func RowFromRecord(index int, rec map[string]string) HospitalRow {
	return HospitalRow{
		Index:   index,
		Name:    rec["name"],
		Address: rec["address"],
		Phone:   rec["phone"],
	}
}
