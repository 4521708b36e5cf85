// Package ingest turns field-authored section spreadsheets into persisted
// records: it locates the data table, maps the headers, classifies each row
// and drives an import batch through its lifecycle.
package ingest

import (
	"context"
	"fmt"
	"time"

	"conserva/internal/headermap"
)

// SourceType distinguishes the two parallel record universes every scope
// carries.
type SourceType string

const (
	SourcePaved   SourceType = "PAVED"
	SourceUnpaved SourceType = "UNPAVED"
)

// Scope pins a batch to one region and reporting period.
type Scope struct {
	Region int
	Year   int
	Month  int
}

func (s Scope) PeriodKey() string {
	return headermap.PeriodKey(s.Year, s.Month)
}

func (s Scope) Validate() error {
	if s.Region < 1 || s.Region > 99 {
		return fmt.Errorf("%w: region %d outside 1-99", ErrInvalidScope, s.Region)
	}
	if s.Year < 2000 || s.Year > 2100 {
		return fmt.Errorf("%w: year %d outside 2000-2100", ErrInvalidScope, s.Year)
	}
	if s.Month < 1 || s.Month > 12 {
		return fmt.Errorf("%w: month %d outside 1-12", ErrInvalidScope, s.Month)
	}
	return nil
}

// Status is the batch lifecycle state. RUNNING is the only non-terminal
// value; once a terminal status is stamped the batch never changes again.
type Status string

const (
	StatusRunning           Status = "RUNNING"
	StatusSuccess           Status = "SUCCESS"
	StatusSuccessWithErrors Status = "SUCCESS_WITH_ERRORS"
	StatusError             Status = "ERROR"
)

// Hard-error codes.
const (
	CodeSRERequired  = "SRE_OBRIGATORIO"
	CodeExtKmInvalid = "EXT_KM_INVALIDO"
)

// ImportBatch is the durable record of one ingestion run, including failed
// ones.
type ImportBatch struct {
	ID          string
	Scope       Scope
	SourceType  SourceType
	Origin      string
	Operator    string
	ClearBefore bool
	DryRun      bool

	Status       Status
	Received     int
	Valid        int
	Ignored      int
	Errored      int
	Persisted    int
	StartedAt    time.Time
	FinishedAt   time.Time
	FatalMessage string
}

// PeriodRecord marks a region and reporting period as open. Every import
// path creates or touches it before writing any rows.
type PeriodRecord struct {
	Scope     Scope
	Key       string // YYYY-MM
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RowError records one hard-errored row. Soft skips never produce one.
type RowError struct {
	BatchID    string
	Scope      Scope
	SourceType SourceType
	Row        int // 1-based, counted from the row after the header
	Code       string
	Message    string
	Column     string
	Value      string
}

// SectionRecord is one valid road section row ("trecho"). SRE and Name are
// never empty on a persisted record; LengthKm, when set, is finite.
type SectionRecord struct {
	BatchID    string
	Scope      Scope
	SourceType SourceType

	Lot        string
	Number     string
	RegionName string
	CitySeat   string
	Name       string
	SRE        string
	Subsection string
	LengthKm   *float64
	RoadType   string
	Schedule   map[string]bool // period key YYYY-MM -> planned
}

// ChartSeries is a chart harvested from a complementary workbook, persisted
// alongside the batch that imported it.
type ChartSeries struct {
	BatchID    string
	Scope      Scope
	SourceType SourceType
	Sheet      string
	Order      int
	Section    string
	Title      string
	Type       string
	Labels     []string
	Values     []float64
}

// EvaluationRow is one row of the optional "TT" evaluation sheet of a
// complementary workbook.
type EvaluationRow struct {
	BatchID string
	Scope   Scope
	Section string
	Group   string
	Class   string
	Value   float64
}

// AuditEvent is an append-only trace entry.
type AuditEvent struct {
	Time    time.Time
	Action  string
	Actor   string
	Details map[string]any
}

// Audit actions.
const (
	ActionImportStarted  = "IMPORT_STARTED"
	ActionImportFinished = "IMPORT_FINISHED"
	ActionImportFailed   = "IMPORT_FAILED"
)

// Store is the persistence boundary. Implementations decide durability; the
// pipeline only ever inserts, patches batches and deletes by scope.
type Store interface {
	InsertBatch(ctx context.Context, batch *ImportBatch) error
	UpdateBatch(ctx context.Context, batch *ImportBatch) error
	BatchByID(ctx context.Context, id string) (*ImportBatch, error)

	// EnsurePeriod creates the period record for the scope or, when it
	// already exists, touches its UpdatedAt.
	EnsurePeriod(ctx context.Context, scope Scope, at time.Time) error

	InsertSection(ctx context.Context, rec *SectionRecord) error
	DeleteSections(ctx context.Context, scope Scope, source SourceType) (int, error)
	SectionsByScope(ctx context.Context, scope Scope, source SourceType) ([]SectionRecord, error)

	InsertRowError(ctx context.Context, rowErr *RowError) error
	RowErrors(ctx context.Context, batchID string) ([]RowError, error)

	InsertChartSeries(ctx context.Context, series *ChartSeries) error
	InsertEvaluation(ctx context.Context, row *EvaluationRow) error
}

// AuditLog receives one event per batch transition.
type AuditLog interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Clock exists so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
