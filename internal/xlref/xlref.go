// Package xlref parses the small subset of spreadsheet references the
// pipeline needs: single-cell formulas like 'Resumo Geral'!$B$3.
package xlref

import (
	"errors"
	"strings"
)

var ErrNotCellRef = errors.New("xlref: not a single-cell reference")

// CellRef is a fully qualified single-cell reference.
type CellRef struct {
	Sheet string
	Cell  string // A1 style, dollar signs stripped
}

// ParseCellRef accepts formulas of the shape Sheet!$B$3 or 'Sheet Name'!$B$3
// (leading "=" tolerated). Ranges, unions and function calls are rejected.
func ParseCellRef(formula string) (CellRef, error) {
	f := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(formula), "="))
	if f == "" {
		return CellRef{}, ErrNotCellRef
	}

	bang := strings.LastIndex(f, "!")
	if bang <= 0 || bang == len(f)-1 {
		return CellRef{}, ErrNotCellRef
	}

	sheet := f[:bang]
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" {
		return CellRef{}, ErrNotCellRef
	}

	cell := strings.ReplaceAll(f[bang+1:], "$", "")
	if !validCell(cell) {
		return CellRef{}, ErrNotCellRef
	}
	return CellRef{Sheet: sheet, Cell: strings.ToUpper(cell)}, nil
}

func validCell(cell string) bool {
	letters := 0
	for letters < len(cell) {
		c := cell[letters]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			letters++
			continue
		}
		break
	}
	if letters == 0 || letters > 3 || letters == len(cell) {
		return false
	}
	for i := letters; i < len(cell); i++ {
		if cell[i] < '0' || cell[i] > '9' {
			return false
		}
	}
	return true
}
