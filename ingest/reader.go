package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"conserva/internal/headermap"
)

// SheetName is the one sheet ingestion reads. Its absence is fatal.
const SheetName = "Trechos"

// Table is the located data table of a workbook: mapped header keys in
// column order plus the data rows after the header.
type Table struct {
	Keys        []string
	HeaderIndex int // 0-based sheet row the header was found on
	Rows        []Row
}

// Row is one non-blank data row. Number is 1-based, counted from the first
// row after the header.
type Row struct {
	Number int
	Cells  map[string]string
}

// ReadWorkbookFile loads the Trechos sheet of the workbook at path. year
// feeds the period keys of monthly columns.
func ReadWorkbookFile(path string, year int) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWorkbookOpen, path, err)
	}
	defer f.Close()
	return readSheet(f, year)
}

// ReadWorkbook is ReadWorkbookFile over a stream.
func ReadWorkbook(r io.Reader, year int) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookOpen, err)
	}
	defer f.Close()
	return readSheet(f, year)
}

func readSheet(f *excelize.File, year int) (*Table, error) {
	idx, err := f.GetSheetIndex(SheetName)
	if err != nil || idx < 0 {
		return nil, ErrNoTrechosSheet
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookOpen, err)
	}
	return BuildTable(rows, year)
}

// BuildTable locates the header row and maps the rows below it. Exposed so
// the directory auditor and tests can feed raw cell grids.
func BuildTable(rows [][]string, year int) (*Table, error) {
	headerIdx := findHeader(rows)
	if headerIdx < 0 {
		return nil, ErrHeaderNotFound
	}

	header := rows[headerIdx]
	keys := make([]string, len(header))
	for i, cell := range header {
		keys[i] = headermap.MapKeyForYear(cell, i, year)
	}

	if missing := missingRequired(keys); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	table := &Table{Keys: keys, HeaderIndex: headerIdx}
	for i := headerIdx + 1; i < len(rows); i++ {
		cells := make(map[string]string, len(keys))
		for j, key := range keys {
			if j >= len(rows[i]) {
				break
			}
			if existing, ok := cells[key]; ok && strings.TrimSpace(existing) != "" {
				continue // first column wins when two headers collapse to one key
			}
			cells[key] = rows[i][j]
		}
		if Blank(cells) {
			continue
		}
		table.Rows = append(table.Rows, Row{Number: i - headerIdx, Cells: cells})
	}
	return table, nil
}

// findHeader returns the first row carrying both a trecho token and an sre
// token, or -1.
func findHeader(rows [][]string) int {
	for i, row := range rows {
		var hasTrecho, hasSRE bool
		for _, cell := range row {
			switch headermap.Canonical(cell) {
			case "trecho", "trechos":
				hasTrecho = true
			case "sre":
				hasSRE = true
			}
		}
		if hasTrecho && hasSRE {
			return i
		}
	}
	return -1
}

var requiredKeys = []string{headermap.KeyTrecho, headermap.KeySRE, headermap.KeyExtKm}

func missingRequired(keys []string) []string {
	present := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}
	var missing []string
	for _, want := range requiredKeys {
		if _, ok := present[want]; !ok {
			missing = append(missing, want)
		}
	}
	return missing
}
