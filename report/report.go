// Package report implements the chart side of the monthly report cycle:
// harvesting plotted series out of spreadsheet packages and injecting
// freshly rendered replacements into the document template.
package report

import "errors"

// Alert is a soft problem met while walking a package: the branch produced
// nothing, but the operation as a whole carries on.
type Alert struct {
	Context string
	Message string
}

// Fatal conditions. Everything else accumulates as Alerts or match misses.
var (
	ErrNoWorkbook = errors.New("report: workbook part or its relationships missing")
	ErrNoDocument = errors.New("report: document part or its relationships missing")
	ErrRender     = errors.New("report: chart render failed")
)

// PlaceholderTitle stands in for charts whose title block has no text runs.
const PlaceholderTitle = "Gráfico sem título"
