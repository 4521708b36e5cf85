package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"conserva/internal/headermap"
)

// FileReport is the dry inspection of one workbook: does it look ingestible,
// and under which scope would it land. Nothing is persisted.
type FileReport struct {
	File          string
	SheetFound    bool
	HeaderFound   bool
	HeaderRow     int // 1-based sheet row, 0 when not found
	Keys          []string
	Missing       []string
	DataRows      int
	GuessedSource SourceType
	GuessedRegion int
	Problem       string
}

// AuditDir inspects every .xlsx directly under dir.
func AuditDir(dir string, year int) ([]FileReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("audit dir: %w", err)
	}

	var reports []FileReport
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		if strings.HasPrefix(name, "~$") {
			continue // editor lock files
		}
		reports = append(reports, AuditFile(filepath.Join(dir, name), year))
	}
	return reports, nil
}

// AuditFile inspects a single workbook. Problems land in the report, never
// in an error: a broken file is a finding, not a failure of the audit.
func AuditFile(path string, year int) FileReport {
	report := FileReport{File: filepath.Base(path)}
	report.GuessedSource, report.GuessedRegion = GuessFromFilename(report.File)

	f, err := excelize.OpenFile(path)
	if err != nil {
		report.Problem = fmt.Sprintf("cannot open: %v", err)
		return report
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(SheetName)
	if err != nil || idx < 0 {
		report.Problem = "no Trechos sheet"
		return report
	}
	report.SheetFound = true

	rows, err := f.GetRows(SheetName)
	if err != nil {
		report.Problem = fmt.Sprintf("cannot read rows: %v", err)
		return report
	}

	table, err := BuildTable(rows, year)
	switch {
	case errors.Is(err, ErrHeaderNotFound):
		report.Problem = "header row not found"
		return report
	case err != nil:
		report.HeaderFound = true
		report.Problem = err.Error()
		if idx := findHeader(rows); idx >= 0 {
			report.HeaderRow = idx + 1
			for i, cell := range rows[idx] {
				report.Keys = append(report.Keys, headermap.MapKeyForYear(cell, i, year))
			}
			report.Missing = missingRequired(report.Keys)
		}
		return report
	}

	report.HeaderFound = true
	report.HeaderRow = table.HeaderIndex + 1
	report.Keys = table.Keys
	report.DataRows = len(table.Rows)
	return report
}

// GuessFromFilename derives the likely source type and region from names
// like "21RG-trechos-nao-pavimentados.xlsx".
func GuessFromFilename(name string) (SourceType, int) {
	n := headermap.Canonical(strings.TrimSuffix(name, filepath.Ext(name)))

	source := SourcePaved
	if strings.Contains(n, "naopav") {
		source = SourceUnpaved
	}

	region := 0
	digits := ""
	for _, r := range n {
		if r >= '0' && r <= '9' {
			digits += string(r)
			continue
		}
		if digits != "" {
			break
		}
	}
	if len(digits) >= 1 && len(digits) <= 2 {
		if v, err := strconv.Atoi(digits); err == nil && v >= 1 && v <= 99 {
			region = v
		}
	}
	return source, region
}
