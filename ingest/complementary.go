package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// EvaluationSheet is the optional per-section evaluation sheet of a
// complementary workbook.
const EvaluationSheet = "TT"

// ComplementaryData is everything a complementary workbook contributes:
// harvested chart series plus evaluation rows.
type ComplementaryData struct {
	Charts      []ChartSeries
	Evaluations []EvaluationRow
}

// ReadEvaluations parses the TT sheet of the workbook at path. A workbook
// without one contributes no rows; that is not an error.
func ReadEvaluations(path string) ([]EvaluationRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWorkbookOpen, path, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(EvaluationSheet)
	if err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(EvaluationSheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookOpen, err)
	}
	return parseEvaluations(rows), nil
}

// parseEvaluations reads the fixed four-column layout: section, group,
// classification, value. The first row is the header.
func parseEvaluations(rows [][]string) []EvaluationRow {
	var out []EvaluationRow
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cell := func(j int) string {
			if j < len(row) {
				return strings.TrimSpace(row[j])
			}
			return ""
		}
		section := cell(0)
		if section == "" {
			continue
		}
		value, _ := ParseNumber(cell(3))
		out = append(out, EvaluationRow{
			Section: section,
			Group:   cell(1),
			Class:   cell(2),
			Value:   value,
		})
	}
	return out
}

// ImportComplementary persists chart series and evaluation rows under their
// own batch. The batch lifecycle mirrors Run: RUNNING, then a terminal
// status, with audit events on both edges.
func (imp *Importer) ImportComplementary(ctx context.Context, req Request, data ComplementaryData) (*ImportBatch, error) {
	if err := req.Scope.Validate(); err != nil {
		return nil, err
	}

	batch := &ImportBatch{
		ID:         imp.newID(),
		Scope:      req.Scope,
		SourceType: req.SourceType,
		Origin:     req.Origin,
		Operator:   req.Operator,
		DryRun:     req.DryRun,
		Status:     StatusRunning,
		StartedAt:  imp.clock.Now(),
	}
	if err := imp.store.InsertBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	imp.emit(ctx, batch, ActionImportStarted, map[string]any{
		"origin": batch.Origin, "charts": len(data.Charts), "evaluations": len(data.Evaluations),
	})
	if err := imp.store.EnsurePeriod(ctx, batch.Scope, batch.StartedAt); err != nil {
		return batch, imp.fail(ctx, batch, fmt.Errorf("ensure period record: %w", err))
	}

	for i := range data.Charts {
		batch.Received++
		series := data.Charts[i]
		series.BatchID = batch.ID
		series.Scope = batch.Scope
		series.SourceType = batch.SourceType
		batch.Valid++
		if batch.DryRun {
			continue
		}
		if err := imp.store.InsertChartSeries(ctx, &series); err != nil {
			return batch, imp.fail(ctx, batch, fmt.Errorf("persist chart %q: %w", series.Title, err))
		}
		batch.Persisted++
	}

	for i := range data.Evaluations {
		batch.Received++
		row := data.Evaluations[i]
		row.BatchID = batch.ID
		row.Scope = batch.Scope
		batch.Valid++
		if batch.DryRun {
			continue
		}
		if err := imp.store.InsertEvaluation(ctx, &row); err != nil {
			return batch, imp.fail(ctx, batch, fmt.Errorf("persist evaluation for %q: %w", row.Section, err))
		}
		batch.Persisted++
	}

	batch.Status = StatusSuccess
	batch.FinishedAt = imp.clock.Now()
	if err := imp.store.UpdateBatch(ctx, batch); err != nil {
		return batch, fmt.Errorf("finalize batch: %w", err)
	}
	imp.emit(ctx, batch, ActionImportFinished, map[string]any{
		"origin": batch.Origin, "persisted": batch.Persisted,
	})
	return batch, nil
}
