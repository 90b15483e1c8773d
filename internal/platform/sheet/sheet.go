// Package sheet reads curator spreadsheets into rows of named columns.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Row is one data row. Number is the 1-based spreadsheet row (the header is row 1).
type Row struct {
	Number int
	cells  map[string]string
}

// Get returns the trimmed cell under header, matched case-insensitively.
func (r Row) Get(header string) string {
	return r.cells[normalizeHeader(header)]
}

// Has reports whether the row has a non-empty value under header.
func (r Row) Has(header string) bool { return r.Get(header) != "" }

// Table is a parsed sheet. Header keeps the original spelling in column order.
type Table struct {
	File   string
	Header []string
	Rows   []Row
}

// NewTable builds a table from raw records where records[0] is the header.
// Blank rows are dropped but keep counting toward row numbers.
func NewTable(file string, records [][]string) *Table {
	t := &Table{File: file}
	if len(records) == 0 {
		return t
	}
	for _, h := range records[0] {
		t.Header = append(t.Header, strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	for i, rec := range records[1:] {
		cells := make(map[string]string, len(t.Header))
		blank := true
		for j, h := range t.Header {
			if h == "" || j >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[j])
			if v != "" {
				blank = false
			}
			key := normalizeHeader(h)
			if _, dup := cells[key]; dup && v == "" {
				continue
			}
			cells[key] = v
		}
		if blank {
			continue
		}
		t.Rows = append(t.Rows, Row{Number: i + 2, cells: cells})
	}
	return t
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// ReadFile parses a csv, tsv or xlsx file. For workbooks the first sheet is used.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(filepath.Base(path), f)
}

// Read parses r using the extension of name to select the format.
func Read(name string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return readDelimited(name, r, ',')
	case ".tsv", ".tab":
		return readDelimited(name, r, '\t')
	case ".xlsx", ".xlsm":
		return readWorkbook(name, r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

func readDelimited(name string, r io.Reader, sep rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return NewTable(name, records), nil
}

func readWorkbook(name string, r io.Reader) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", name, err)
	}
	defer wb.Close()
	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return NewTable(name, nil), nil
	}
	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", name, err)
	}
	return NewTable(name, records), nil
}

// WriteCSV renders a table back to csv. Used when exporting edited sheets.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(t.Header))
		for i, h := range t.Header {
			rec[i] = row.Get(h)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FromCSV is a convenience for tests and the CLI.
func FromCSV(name, content string) (*Table, error) {
	return readDelimited(name, bytes.NewBufferString(content), ',')
}
