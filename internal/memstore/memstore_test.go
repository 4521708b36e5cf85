package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"conserva/ingest"
)

var scope = ingest.Scope{Region: 21, Year: 2024, Month: 7}

func TestBatchLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	batch := &ingest.ImportBatch{ID: "b1", Scope: scope, Status: ingest.StatusRunning}
	if err := store.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if err := store.InsertBatch(ctx, batch); err == nil {
		t.Fatalf("duplicate insert should fail")
	}

	batch.Status = ingest.StatusSuccess
	if err := store.UpdateBatch(ctx, batch); err != nil {
		t.Fatalf("UpdateBatch: %v", err)
	}

	got, err := store.BatchByID(ctx, "b1")
	if err != nil {
		t.Fatalf("BatchByID: %v", err)
	}
	if got.Status != ingest.StatusSuccess {
		t.Fatalf("status = %s", got.Status)
	}

	if _, err := store.BatchByID(ctx, "missing"); !errors.Is(err, ingest.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestSectionScopeIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, rec := range []ingest.SectionRecord{
		{Scope: scope, SourceType: ingest.SourcePaved, Name: "BR-153", SRE: "21a"},
		{Scope: scope, SourceType: ingest.SourceUnpaved, Name: "LMG-808", SRE: "21b"},
		{Scope: ingest.Scope{Region: 5, Year: 2024, Month: 7}, SourceType: ingest.SourcePaved, Name: "MG-050", SRE: "05a"},
	} {
		rec := rec
		if err := store.InsertSection(ctx, &rec); err != nil {
			t.Fatalf("InsertSection: %v", err)
		}
	}

	removed, err := store.DeleteSections(ctx, scope, ingest.SourcePaved)
	if err != nil || removed != 1 {
		t.Fatalf("DeleteSections removed %d, err %v", removed, err)
	}

	left, err := store.SectionsByScope(ctx, scope, ingest.SourceUnpaved)
	if err != nil || len(left) != 1 || left[0].Name != "LMG-808" {
		t.Fatalf("SectionsByScope = %v, %v", left, err)
	}
}

func TestEnsurePeriodCreatesThenTouches(t *testing.T) {
	store := New()
	ctx := context.Background()

	first := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	if err := store.EnsurePeriod(ctx, scope, first); err != nil {
		t.Fatalf("EnsurePeriod: %v", err)
	}
	second := first.Add(48 * time.Hour)
	if err := store.EnsurePeriod(ctx, scope, second); err != nil {
		t.Fatalf("EnsurePeriod: %v", err)
	}

	periods := store.Periods()
	if len(periods) != 1 {
		t.Fatalf("periods = %+v", periods)
	}
	if periods[0].Key != "2024-07" || !periods[0].CreatedAt.Equal(first) || !periods[0].UpdatedAt.Equal(second) {
		t.Fatalf("period = %+v", periods[0])
	}
}

func TestInsertSectionRequiresNameAndSRE(t *testing.T) {
	store := New()
	err := store.InsertSection(context.Background(), &ingest.SectionRecord{Name: "BR-153"})
	if !errors.Is(err, ingest.ErrSectionIncomplete) {
		t.Fatalf("expected ErrSectionIncomplete, got %v", err)
	}
}

func TestRowErrorsFilterByBatch(t *testing.T) {
	store := New()
	ctx := context.Background()
	store.InsertRowError(ctx, &ingest.RowError{BatchID: "b1", Code: ingest.CodeSRERequired})
	store.InsertRowError(ctx, &ingest.RowError{BatchID: "b2", Code: ingest.CodeExtKmInvalid})

	got, err := store.RowErrors(ctx, "b1")
	if err != nil || len(got) != 1 || got[0].Code != ingest.CodeSRERequired {
		t.Fatalf("RowErrors = %v, %v", got, err)
	}
}

func TestAuditTrail(t *testing.T) {
	store := New()
	store.Record(context.Background(), ingest.AuditEvent{Action: ingest.ActionImportStarted})
	store.Record(context.Background(), ingest.AuditEvent{Action: ingest.ActionImportFinished})

	events := store.Events()
	if len(events) != 2 || events[1].Action != ingest.ActionImportFinished {
		t.Fatalf("Events = %v", events)
	}
}
