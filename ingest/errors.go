package ingest

import "errors"

// Fatal conditions abort the whole batch before or during row processing.
// Per-row problems are data (RowError records), never error values.
var (
	ErrInvalidScope      = errors.New("ingest: invalid batch scope")
	ErrWorkbookOpen      = errors.New("ingest: cannot open workbook")
	ErrNoTrechosSheet    = errors.New("ingest: workbook has no Trechos sheet")
	ErrHeaderNotFound    = errors.New("ingest: header row not found")
	ErrMissingColumns    = errors.New("ingest: required columns absent")
	ErrBatchNotFound     = errors.New("ingest: batch not found")
	ErrSectionIncomplete = errors.New("ingest: section record missing required fields")
)
