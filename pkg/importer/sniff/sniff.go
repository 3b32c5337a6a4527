// Package sniff decodes raw upload bytes to text, detects the CSV delimiter
// and parses the result into a header-addressed table.
package sniff

import (
	"encoding/csv"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrUndecodable is returned when no supported encoding decodes the input.
var ErrUndecodable = errors.New("failed to read file with any supported encoding")

const bom = "\uFEFF"

// Decode tries utf-8, utf-8-sig and latin1 in order and returns the decoded
// text plus the name of the encoding that succeeded. latin1 cannot fail and
// acts as the fallback of last resort. A leading BOM is stripped in every
// path.
func Decode(data []byte) (text, encoding string, err error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), bom), "utf-8", nil
	}
	// utf-8-sig only differs from utf-8 in BOM handling, so a separate
	// attempt cannot rescue invalid utf-8; fall through to latin1.
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", ErrUndecodable
	}
	return strings.TrimPrefix(string(decoded), bom), "latin1", nil
}

// DetectDelimiter counts ';' vs ',' on the first line; ';' wins only when it
// occurs strictly more often, ',' is the default.
func DetectDelimiter(text string) rune {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

// Table is a parsed CSV with header-addressed cell access, mirroring what the
// importers need from a dict-style CSV reader.
type Table struct {
	Headers []string
	Records [][]string

	index map[string]int // header -> first claiming column
}

// ReadTable is the shared front half of every CSV importer:
// decode, delimiter detection and CSV parsing into header plus records.
func ReadTable(data []byte) (*Table, error) {
	text, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = DetectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Table{index: map[string]int{}}, nil
	}
	tbl := &Table{
		Headers: rows[0],
		Records: rows[1:],
		index:   make(map[string]int, len(rows[0])),
	}
	for i, h := range tbl.Headers {
		if _, ok := tbl.index[h]; !ok {
			tbl.index[h] = i
		}
	}
	return tbl, nil
}

// Len returns the number of data records (the header row not included).
func (t *Table) Len() int { return len(t.Records) }

// Get returns the cell of record row under the given header, or "" when the
// header is unknown or the record is short.
func (t *Table) Get(row int, header string) string {
	col, ok := t.index[header]
	if !ok || row < 0 || row >= len(t.Records) {
		return ""
	}
	rec := t.Records[row]
	if col >= len(rec) {
		return ""
	}
	return rec[col]
}
