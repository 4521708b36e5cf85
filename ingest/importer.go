package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"conserva/internal/logging"
)

// Importer drives import batches. All collaborators arrive explicitly so the
// pipeline runs the same against any storage.
type Importer struct {
	store Store
	audit AuditLog
	clock Clock
	log   logging.Logger
	newID func() string
}

type Option func(*Importer)

func WithLogger(log logging.Logger) Option {
	return func(imp *Importer) { imp.log = log }
}

func WithClock(clock Clock) Option {
	return func(imp *Importer) { imp.clock = clock }
}

func WithIDs(newID func() string) Option {
	return func(imp *Importer) { imp.newID = newID }
}

func New(store Store, audit AuditLog, opts ...Option) *Importer {
	imp := &Importer{
		store: store,
		audit: audit,
		clock: systemClock{},
		log:   logging.Nop(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Request describes one batch to run.
type Request struct {
	Scope       Scope
	SourceType  SourceType
	Origin      string
	Operator    string
	ClearBefore bool
	DryRun      bool
}

// RunFile reads the workbook at path and runs the batch over it. The batch
// record exists before the file is opened, so a structurally broken workbook
// still leaves an ERROR batch behind as evidence.
func (imp *Importer) RunFile(ctx context.Context, req Request, path string) (*ImportBatch, error) {
	batch, err := imp.begin(ctx, req)
	if err != nil {
		return batch, err
	}
	table, err := ReadWorkbookFile(path, req.Scope.Year)
	if err != nil {
		return batch, imp.fail(ctx, batch, err)
	}
	return batch, imp.process(ctx, batch, table)
}

// Run executes the batch state machine over an already-located table.
// Per-row problems accumulate on the batch; only scope validation, the
// period upsert, the pre-clear and storage failures abort. The returned
// batch is also persisted, terminal status included, so a failed run still
// leaves a durable trace.
func (imp *Importer) Run(ctx context.Context, req Request, table *Table) (*ImportBatch, error) {
	batch, err := imp.begin(ctx, req)
	if err != nil {
		return batch, err
	}
	return batch, imp.process(ctx, batch, table)
}

// begin validates the scope and opens the batch record in RUNNING state.
func (imp *Importer) begin(ctx context.Context, req Request) (*ImportBatch, error) {
	if err := req.Scope.Validate(); err != nil {
		return nil, err
	}

	batch := &ImportBatch{
		ID:          imp.newID(),
		Scope:       req.Scope,
		SourceType:  req.SourceType,
		Origin:      req.Origin,
		Operator:    req.Operator,
		ClearBefore: req.ClearBefore,
		DryRun:      req.DryRun,
		Status:      StatusRunning,
		StartedAt:   imp.clock.Now(),
	}
	if err := imp.store.InsertBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	imp.emit(ctx, batch, ActionImportStarted, map[string]any{
		"origin": batch.Origin, "source": string(batch.SourceType), "dryRun": batch.DryRun,
	})
	imp.log.Info("import started", "batch", batch.ID, "origin", batch.Origin)
	return batch, nil
}

func (imp *Importer) process(ctx context.Context, batch *ImportBatch, table *Table) error {
	if err := imp.store.EnsurePeriod(ctx, batch.Scope, batch.StartedAt); err != nil {
		return imp.fail(ctx, batch, fmt.Errorf("ensure period record: %w", err))
	}

	if batch.ClearBefore && !batch.DryRun {
		// clear and re-insert are separate storage calls; an interruption in
		// between leaves the scope empty until the next successful run
		removed, err := imp.store.DeleteSections(ctx, batch.Scope, batch.SourceType)
		if err != nil {
			return imp.fail(ctx, batch, fmt.Errorf("clear previous records: %w", err))
		}
		imp.log.Debug("previous records cleared", "batch", batch.ID, "removed", removed)
	}

	for _, row := range table.Rows {
		batch.Received++
		c := ClassifyRow(row.Cells, batch.Scope, batch.SourceType)
		switch c.Outcome {
		case OutcomeSoftSkip:
			batch.Ignored++
			imp.log.Debug("row skipped", "batch", batch.ID, "row", row.Number, "reason", c.SkipReason)

		case OutcomeHardError:
			batch.Errored++
			rowErr := c.RowError
			rowErr.BatchID = batch.ID
			rowErr.Scope = batch.Scope
			rowErr.SourceType = batch.SourceType
			rowErr.Row = row.Number
			if err := imp.store.InsertRowError(ctx, rowErr); err != nil {
				return imp.fail(ctx, batch, fmt.Errorf("persist row error: %w", err))
			}
			imp.log.Warn("row rejected",
				"batch", batch.ID, "row", row.Number, "code", rowErr.Code)

		case OutcomeValid:
			batch.Valid++
			if batch.DryRun {
				continue
			}
			rec := c.Record
			rec.BatchID = batch.ID
			if err := imp.store.InsertSection(ctx, rec); err != nil {
				return imp.fail(ctx, batch, fmt.Errorf("persist row %d: %w", row.Number, err))
			}
			batch.Persisted++
		}
	}

	batch.Status = StatusSuccess
	if batch.Errored > 0 {
		batch.Status = StatusSuccessWithErrors
	}
	batch.FinishedAt = imp.clock.Now()
	if err := imp.store.UpdateBatch(ctx, batch); err != nil {
		return fmt.Errorf("finalize batch: %w", err)
	}
	imp.emit(ctx, batch, ActionImportFinished, map[string]any{
		"origin": batch.Origin, "source": string(batch.SourceType),
		"persisted": batch.Persisted, "errors": batch.Errored, "ignored": batch.Ignored,
	})
	imp.log.Info("import finished",
		"batch", batch.ID, "status", string(batch.Status),
		"persisted", batch.Persisted, "errors", batch.Errored)
	return nil
}

// fail stamps the terminal ERROR state and hands the cause back to the
// caller. The batch record is the durable trace of the failure.
func (imp *Importer) fail(ctx context.Context, batch *ImportBatch, cause error) error {
	batch.Status = StatusError
	batch.FatalMessage = cause.Error()
	batch.FinishedAt = imp.clock.Now()
	if err := imp.store.UpdateBatch(ctx, batch); err != nil {
		imp.log.Error("cannot stamp failed batch", "batch", batch.ID, "err", err)
	}
	imp.emit(ctx, batch, ActionImportFailed, map[string]any{
		"origin": batch.Origin, "error": cause.Error(),
	})
	imp.log.Error("import failed", "batch", batch.ID, "err", cause)
	return cause
}

func (imp *Importer) emit(ctx context.Context, batch *ImportBatch, action string, details map[string]any) {
	if imp.audit == nil {
		return
	}
	details["batch"] = batch.ID
	event := AuditEvent{
		Time:    imp.clock.Now(),
		Action:  action,
		Actor:   batch.Operator,
		Details: details,
	}
	if err := imp.audit.Record(ctx, event); err != nil {
		imp.log.Warn("audit event dropped", "action", action, "err", err)
	}
}

// Status returns the batch with the given id.
func (imp *Importer) Status(ctx context.Context, batchID string) (*ImportBatch, error) {
	return imp.store.BatchByID(ctx, batchID)
}

// Errors lists the row errors accumulated by a batch.
func (imp *Importer) Errors(ctx context.Context, batchID string) ([]RowError, error) {
	return imp.store.RowErrors(ctx, batchID)
}

// Summary counts the persisted sections of a scope, per source type.
func (imp *Importer) Summary(ctx context.Context, scope Scope) (map[SourceType]int, error) {
	out := make(map[SourceType]int, 2)
	for _, source := range []SourceType{SourcePaved, SourceUnpaved} {
		recs, err := imp.store.SectionsByScope(ctx, scope, source)
		if err != nil {
			return nil, err
		}
		out[source] = len(recs)
	}
	return out, nil
}
