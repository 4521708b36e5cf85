package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

type fakeStore struct {
	batches     map[string]*ImportBatch
	periods     []PeriodRecord
	sections    []SectionRecord
	rowErrors   []RowError
	charts      []ChartSeries
	evaluations []EvaluationRow

	failInsertSection bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{batches: map[string]*ImportBatch{}}
}

func (s *fakeStore) InsertBatch(_ context.Context, b *ImportBatch) error {
	copied := *b
	s.batches[b.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateBatch(_ context.Context, b *ImportBatch) error {
	copied := *b
	s.batches[b.ID] = &copied
	return nil
}

func (s *fakeStore) BatchByID(_ context.Context, id string) (*ImportBatch, error) {
	b, ok := s.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return b, nil
}

func (s *fakeStore) EnsurePeriod(_ context.Context, scope Scope, at time.Time) error {
	for i := range s.periods {
		if s.periods[i].Scope == scope {
			s.periods[i].UpdatedAt = at
			return nil
		}
	}
	s.periods = append(s.periods, PeriodRecord{Scope: scope, Key: scope.PeriodKey(), CreatedAt: at, UpdatedAt: at})
	return nil
}

func (s *fakeStore) InsertSection(_ context.Context, rec *SectionRecord) error {
	if s.failInsertSection {
		return errors.New("store down")
	}
	s.sections = append(s.sections, *rec)
	return nil
}

func (s *fakeStore) DeleteSections(_ context.Context, scope Scope, source SourceType) (int, error) {
	kept := s.sections[:0]
	removed := 0
	for _, rec := range s.sections {
		if rec.Scope == scope && rec.SourceType == source {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.sections = kept
	return removed, nil
}

func (s *fakeStore) SectionsByScope(_ context.Context, scope Scope, source SourceType) ([]SectionRecord, error) {
	var out []SectionRecord
	for _, rec := range s.sections {
		if rec.Scope == scope && rec.SourceType == source {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertRowError(_ context.Context, re *RowError) error {
	s.rowErrors = append(s.rowErrors, *re)
	return nil
}

func (s *fakeStore) RowErrors(_ context.Context, batchID string) ([]RowError, error) {
	var out []RowError
	for _, re := range s.rowErrors {
		if re.BatchID == batchID {
			out = append(out, re)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertChartSeries(_ context.Context, cs *ChartSeries) error {
	s.charts = append(s.charts, *cs)
	return nil
}

func (s *fakeStore) InsertEvaluation(_ context.Context, row *EvaluationRow) error {
	s.evaluations = append(s.evaluations, *row)
	return nil
}

type fakeAudit struct{ events []AuditEvent }

func (a *fakeAudit) Record(_ context.Context, e AuditEvent) error {
	a.events = append(a.events, e)
	return nil
}

func (a *fakeAudit) actions() []string {
	out := make([]string, len(a.events))
	for i, e := range a.events {
		out[i] = e.Action
	}
	return out
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func newTestImporter(store Store, audit AuditLog) *Importer {
	n := 0
	return New(store, audit,
		WithClock(fixedClock{at: time.Date(2024, 7, 31, 12, 0, 0, 0, time.UTC)}),
		WithIDs(func() string { n++; return fmt.Sprintf("batch-%d", n) }),
	)
}

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := BuildTable(grid(), 2024)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	return table
}

func TestRunSuccess(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{}
	imp := newTestImporter(store, audit)

	batch, err := imp.Run(context.Background(), Request{
		Scope: testScope, SourceType: SourcePaved, Origin: "21RG.xlsx",
	}, testTable(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if batch.Status != StatusSuccess {
		t.Fatalf("status = %s", batch.Status)
	}
	if batch.Received != 2 || batch.Valid != 2 || batch.Persisted != 2 {
		t.Fatalf("counters = %+v", batch)
	}
	if len(store.sections) != 2 {
		t.Fatalf("persisted %d sections", len(store.sections))
	}
	if store.sections[0].BatchID != batch.ID {
		t.Fatalf("section not tied to batch: %+v", store.sections[0])
	}

	got := audit.actions()
	if len(got) != 2 || got[0] != ActionImportStarted || got[1] != ActionImportFinished {
		t.Fatalf("audit actions = %v", got)
	}

	stored, err := store.BatchByID(context.Background(), batch.ID)
	if err != nil || stored.Status != StatusSuccess {
		t.Fatalf("stored batch = %+v, %v", stored, err)
	}
}

func TestRunWithRowErrors(t *testing.T) {
	rows := [][]string{
		{"TRECHO", "S.R.E", "EXT. (KM)"},
		{"BR-153", "21a", "10"},
		{"Av. Central", "", ""},
	}
	table, err := BuildTable(rows, 2024)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	store := newFakeStore()
	imp := newTestImporter(store, &fakeAudit{})
	batch, err := imp.Run(context.Background(), Request{Scope: testScope, SourceType: SourcePaved}, table)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if batch.Status != StatusSuccessWithErrors {
		t.Fatalf("status = %s", batch.Status)
	}
	if batch.Errored != 1 || batch.Persisted != 1 {
		t.Fatalf("counters = %+v", batch)
	}

	errs, err := imp.Errors(context.Background(), batch.ID)
	if err != nil || len(errs) != 1 {
		t.Fatalf("Errors = %v, %v", errs, err)
	}
	if errs[0].Code != CodeSRERequired || errs[0].Row != 2 {
		t.Fatalf("row error = %+v", errs[0])
	}
}

func TestRunFileStampsFatalStructuralError(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	path := filepath.Join(t.TempDir(), "sem-trechos.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}

	store := newFakeStore()
	audit := &fakeAudit{}
	imp := newTestImporter(store, audit)

	batch, err := imp.RunFile(context.Background(), Request{
		Scope: testScope, SourceType: SourcePaved, Origin: "sem-trechos.xlsx",
	}, path)
	if !errors.Is(err, ErrNoTrechosSheet) {
		t.Fatalf("expected ErrNoTrechosSheet, got %v", err)
	}
	if batch == nil || batch.Status != StatusError || batch.FatalMessage == "" {
		t.Fatalf("batch = %+v", batch)
	}

	stored, err := store.BatchByID(context.Background(), batch.ID)
	if err != nil || stored.Status != StatusError {
		t.Fatalf("stored batch = %+v, %v", stored, err)
	}
	got := audit.actions()
	if len(got) != 2 || got[1] != ActionImportFailed {
		t.Fatalf("audit actions = %v", got)
	}
}

func TestRunEnsuresPeriodRecord(t *testing.T) {
	store := newFakeStore()
	imp := newTestImporter(store, &fakeAudit{})
	req := Request{Scope: testScope, SourceType: SourcePaved}

	for i := 0; i < 2; i++ {
		if _, err := imp.Run(context.Background(), req, testTable(t)); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if len(store.periods) != 1 {
		t.Fatalf("periods = %+v", store.periods)
	}
	if store.periods[0].Key != "2024-07" || store.periods[0].Scope != testScope {
		t.Fatalf("period = %+v", store.periods[0])
	}
}

func TestRunDryRunPersistsNothing(t *testing.T) {
	store := newFakeStore()
	store.sections = append(store.sections, SectionRecord{Scope: testScope, SourceType: SourcePaved, Name: "old", SRE: "x"})

	imp := newTestImporter(store, &fakeAudit{})
	batch, err := imp.Run(context.Background(), Request{
		Scope: testScope, SourceType: SourcePaved, ClearBefore: true, DryRun: true,
	}, testTable(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if batch.Valid != 2 || batch.Persisted != 0 {
		t.Fatalf("counters = %+v", batch)
	}
	// dry-run must not clear either
	if len(store.sections) != 1 || store.sections[0].Name != "old" {
		t.Fatalf("sections touched in dry run: %v", store.sections)
	}
}

func TestRunClearBeforeIsIdempotent(t *testing.T) {
	store := newFakeStore()
	imp := newTestImporter(store, &fakeAudit{})
	req := Request{Scope: testScope, SourceType: SourcePaved, ClearBefore: true}

	for i := 0; i < 2; i++ {
		if _, err := imp.Run(context.Background(), req, testTable(t)); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(store.sections) != 2 {
		t.Fatalf("rerun not idempotent: %d sections", len(store.sections))
	}
}

func TestRunStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failInsertSection = true
	audit := &fakeAudit{}
	imp := newTestImporter(store, audit)

	batch, err := imp.Run(context.Background(), Request{Scope: testScope, SourceType: SourcePaved}, testTable(t))
	if err == nil {
		t.Fatalf("expected error from failing store")
	}

	if batch.Status != StatusError || batch.FatalMessage == "" {
		t.Fatalf("batch = %+v", batch)
	}
	got := audit.actions()
	if got[len(got)-1] != ActionImportFailed {
		t.Fatalf("audit actions = %v", got)
	}
}

func TestRunRejectsInvalidScope(t *testing.T) {
	imp := newTestImporter(newFakeStore(), &fakeAudit{})
	_, err := imp.Run(context.Background(), Request{
		Scope: Scope{Region: 0, Year: 2024, Month: 7}, SourceType: SourcePaved,
	}, testTable(t))
	if !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}

func TestSummaryCountsPerSource(t *testing.T) {
	store := newFakeStore()
	imp := newTestImporter(store, &fakeAudit{})

	if _, err := imp.Run(context.Background(), Request{Scope: testScope, SourceType: SourcePaved}, testTable(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := imp.Summary(context.Background(), testScope)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got[SourcePaved] != 2 || got[SourceUnpaved] != 0 {
		t.Fatalf("summary = %v", got)
	}
}

func TestImportComplementary(t *testing.T) {
	store := newFakeStore()
	imp := newTestImporter(store, &fakeAudit{})

	batch, err := imp.ImportComplementary(context.Background(), Request{
		Scope: testScope, SourceType: SourcePaved, Origin: "21RG-graficos.xlsx",
	}, ComplementaryData{
		Charts: []ChartSeries{
			{Sheet: "Plan1", Order: 0, Section: "BR-153", Title: "Condições", Type: "pie", Labels: []string{"Bom"}, Values: []float64{1}},
		},
		Evaluations: []EvaluationRow{{Section: "BR-153", Group: "Pista", Class: "Bom", Value: 55}},
	})
	if err != nil {
		t.Fatalf("ImportComplementary: %v", err)
	}

	if batch.Status != StatusSuccess || batch.Persisted != 2 {
		t.Fatalf("batch = %+v", batch)
	}
	if len(store.charts) != 1 || store.charts[0].BatchID != batch.ID {
		t.Fatalf("charts = %v", store.charts)
	}
	if len(store.evaluations) != 1 || store.evaluations[0].Scope != testScope {
		t.Fatalf("evaluations = %v", store.evaluations)
	}
	if len(store.periods) != 1 {
		t.Fatalf("complementary import must open the period, got %+v", store.periods)
	}
}
