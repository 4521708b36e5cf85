// Package memstore is the built-in persistence backend: everything lives in
// process memory behind a mutex. The CLI runs on it; deployments wanting
// durability implement ingest.Store against their own database.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"conserva/ingest"
)

type Store struct {
	mu          sync.Mutex
	batches     map[string]*ingest.ImportBatch
	periods     []ingest.PeriodRecord
	sections    []ingest.SectionRecord
	rowErrors   []ingest.RowError
	charts      []ingest.ChartSeries
	evaluations []ingest.EvaluationRow
	events      []ingest.AuditEvent
}

func New() *Store {
	return &Store{batches: make(map[string]*ingest.ImportBatch)}
}

func (s *Store) InsertBatch(_ context.Context, batch *ingest.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.batches[batch.ID]; dup {
		return fmt.Errorf("memstore: duplicate batch id %s", batch.ID)
	}
	copied := *batch
	s.batches[batch.ID] = &copied
	return nil
}

func (s *Store) UpdateBatch(_ context.Context, batch *ingest.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; !ok {
		return ingest.ErrBatchNotFound
	}
	copied := *batch
	s.batches[batch.ID] = &copied
	return nil
}

func (s *Store) BatchByID(_ context.Context, id string) (*ingest.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, ingest.ErrBatchNotFound
	}
	copied := *batch
	return &copied, nil
}

func (s *Store) EnsurePeriod(_ context.Context, scope ingest.Scope, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.periods {
		if s.periods[i].Scope == scope {
			s.periods[i].UpdatedAt = at
			return nil
		}
	}
	s.periods = append(s.periods, ingest.PeriodRecord{
		Scope:     scope,
		Key:       scope.PeriodKey(),
		CreatedAt: at,
		UpdatedAt: at,
	})
	return nil
}

// Periods returns a copy of the period records.
func (s *Store) Periods() []ingest.PeriodRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ingest.PeriodRecord, len(s.periods))
	copy(out, s.periods)
	return out
}

func (s *Store) InsertSection(_ context.Context, rec *ingest.SectionRecord) error {
	if rec.Name == "" || rec.SRE == "" {
		return ingest.ErrSectionIncomplete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = append(s.sections, *rec)
	return nil
}

func (s *Store) DeleteSections(_ context.Context, scope ingest.Scope, source ingest.SourceType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func (s *Store) SectionsByScope(_ context.Context, scope ingest.Scope, source ingest.SourceType) ([]ingest.SectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ingest.SectionRecord
	for _, rec := range s.sections {
		if rec.Scope == scope && rec.SourceType == source {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) InsertRowError(_ context.Context, rowErr *ingest.RowError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowErrors = append(s.rowErrors, *rowErr)
	return nil
}

func (s *Store) RowErrors(_ context.Context, batchID string) ([]ingest.RowError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ingest.RowError
	for _, re := range s.rowErrors {
		if re.BatchID == batchID {
			out = append(out, re)
		}
	}
	return out, nil
}

func (s *Store) InsertChartSeries(_ context.Context, series *ingest.ChartSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charts = append(s.charts, *series)
	return nil
}

func (s *Store) InsertEvaluation(_ context.Context, row *ingest.EvaluationRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append(s.evaluations, *row)
	return nil
}

// Record implements ingest.AuditLog on the same store.
func (s *Store) Record(_ context.Context, event ingest.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the audit trail, oldest first.
func (s *Store) Events() []ingest.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ingest.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}
