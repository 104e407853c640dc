// Package importer runs the one-shot spreadsheet import: it reads the
// source workbook, derives the record shape from its header row, and
// replaces the stored records with the transformed rows.
//
// The run is a fixed sequence of phases:
//
//	ReadSource -> FilterColumns -> SynthesizeSchema -> TransformRows
//	  -> Connect -> PersistSchema -> ClearCollection -> BulkInsert -> Done
//
// Any failure ends the run with a *PhaseError naming the step. The clear
// is not rolled back when the bulk insert fails, and concurrent runs are
// not guarded against.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/trasporti/internal/core"
	"github.com/JonMunkholm/trasporti/internal/metrics"
	"github.com/JonMunkholm/trasporti/internal/schema"
	"github.com/JonMunkholm/trasporti/internal/store"
)

var (
	// ErrSourceMissing is returned when the workbook does not exist.
	ErrSourceMissing = errors.New("source file not found")

	// ErrEmptySource is returned when the first sheet has no data rows.
	ErrEmptySource = errors.New("source sheet is empty")

	// ErrNoColumns is returned when no sheet header is allow-listed.
	ErrNoColumns = errors.New("no allowed columns in source sheet")

	// ErrNoConnectionString is returned when no store URL is configured.
	ErrNoConnectionString = fmt.Errorf("import: %w", store.ErrNoURL)
)

// Phase names one step of an import run.
type Phase string

const (
	PhaseReadSource       Phase = "read_source"
	PhaseFilterColumns    Phase = "filter_columns"
	PhaseSynthesizeSchema Phase = "synthesize_schema"
	PhaseTransformRows    Phase = "transform_rows"
	PhaseConnect          Phase = "connect"
	PhasePersistSchema    Phase = "persist_schema"
	PhaseClearCollection  Phase = "clear_collection"
	PhaseBulkInsert       Phase = "bulk_insert"
	PhaseDone             Phase = "done"
)

// PhaseError reports the step an import run failed in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Row outcome labels for the import rows metric.
const (
	rowsRead      = "read"
	rowsInserted  = "inserted"
	rowsDefaulted = "defaulted"
	rowsRemoved   = "removed"
)

// ConnectFunc opens the store the run writes to. Run closes it.
type ConnectFunc func(ctx context.Context) (store.Store, error)

// Connector returns a ConnectFunc for store.Open. An empty URL fails with
// ErrNoConnectionString.
func Connector(opts store.Options) ConnectFunc {
	return func(ctx context.Context) (store.Store, error) {
		st, err := store.Open(ctx, opts)
		if errors.Is(err, store.ErrNoURL) {
			return nil, ErrNoConnectionString
		}
		return st, err
	}
}

// Options configures a run.
type Options struct {
	Source         string   // workbook path
	SchemaOut      string   // schema artifact path; empty skips the artifact
	AllowedHeaders []string // defaults to schema.DefaultAllowedHeaders
	ForceText      []string // defaults to schema.DefaultForceText
	SampleSize     int      // defaults to schema.DefaultSampleSize
	BatchSize      int      // bulk insert batch size

	// DryRun stops after TransformRows; nothing is written to the store.
	DryRun bool

	Connect ConnectFunc
	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger     // optional
}

// Result summarizes a run.
type Result struct {
	RunID         string
	Sheet         string
	Columns       []schema.Column
	Dropped       []string // allow-listed headers whose field name collided
	Report        core.TransformReport
	SchemaVersion int
	Removed       int64
	Inserted      int
	Duration      time.Duration
}

// Importer executes runs with fixed options.
type Importer struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Importer, filling option defaults.
func New(opts Options) *Importer {
	if opts.AllowedHeaders == nil {
		opts.AllowedHeaders = schema.DefaultAllowedHeaders
	}
	if opts.ForceText == nil {
		opts.ForceText = schema.DefaultForceText
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Run performs one import. On failure the returned Result holds whatever
// was completed before the failing phase.
func (im *Importer) Run(ctx context.Context) (*Result, error) {
	start := im.now()
	res := &Result{RunID: uuid.NewString()}
	logger := im.logger.With("run_id", res.RunID, "source", im.opts.Source)

	phase := PhaseReadSource
	fail := func(err error) (*Result, error) {
		res.Duration = im.now().Sub(start)
		logger.Error("import failed", "phase", phase, "error", err)
		im.recordRun(phase, false)
		return res, &PhaseError{Phase: phase, Err: err}
	}
	enter := func(p Phase) {
		phase = p
		logger.Info("import phase", "phase", p)
	}

	// ReadSource
	enter(PhaseReadSource)
	sheet, err := ReadSource(im.opts.Source)
	if err != nil {
		return fail(err)
	}
	res.Sheet = sheet.Name
	im.addRows(rowsRead, len(sheet.Rows))
	logger.Info("source read", "sheet", sheet.Name, "headers", len(sheet.Headers), "rows", len(sheet.Rows))

	// FilterColumns
	enter(PhaseFilterColumns)
	synth := schema.NewSynthesizer(im.opts.AllowedHeaders, schema.NewInferrer(im.opts.ForceText, im.opts.SampleSize))
	headers := synth.FilterHeaders(sheet.Headers)
	if len(headers) == 0 {
		return fail(ErrNoColumns)
	}

	// SynthesizeSchema
	enter(PhaseSynthesizeSchema)
	cols, dropped := synth.Synthesize(headers, sheet.Rows)
	res.Columns, res.Dropped = cols, dropped
	for _, h := range dropped {
		logger.Warn("header dropped: field name already taken", "header", h, "field", schema.NormalizeHeader(h))
	}
	for _, c := range cols {
		logger.Info("column", "header", c.Header, "field", c.Field, "type", c.Type.String())
	}
	if im.opts.SchemaOut != "" {
		if err := schema.WriteArtifact(im.opts.SchemaOut, cols); err != nil {
			return fail(err)
		}
		logger.Info("schema artifact written", "path", im.opts.SchemaOut)
	}

	// TransformRows
	enter(PhaseTransformRows)
	records, report := core.NewTransformer(cols).TransformAll(sheet.Rows)
	res.Report = report
	im.addRows(rowsDefaulted, report.Defaulted())
	for field, n := range report.Invalid {
		logger.Info("unparseable values defaulted", "field", field, "count", n)
	}

	if im.opts.DryRun {
		res.Duration = im.now().Sub(start)
		logger.Info("dry run: store left untouched", "rows", len(records))
		im.recordRun(PhaseTransformRows, true)
		return res, nil
	}

	// Connect
	enter(PhaseConnect)
	if im.opts.Connect == nil {
		return fail(ErrNoConnectionString)
	}
	st, err := im.opts.Connect(ctx)
	if err != nil {
		return fail(err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	// PersistSchema
	enter(PhasePersistSchema)
	version, err := nextVersion(ctx, st)
	if err != nil {
		return fail(err)
	}
	desc := schema.NewDescriptor(version, filepath.Base(im.opts.Source), cols, im.now())
	if err := st.SaveSchema(ctx, desc); err != nil {
		return fail(fmt.Errorf("save schema: %w", err))
	}
	res.SchemaVersion = version

	// ClearCollection
	enter(PhaseClearCollection)
	removed, err := st.DeleteAll(ctx)
	if err != nil {
		return fail(fmt.Errorf("clear records: %w", err))
	}
	res.Removed = removed
	im.addRows(rowsRemoved, int(removed))

	// BulkInsert
	enter(PhaseBulkInsert)
	docs := make([]map[string]any, len(records))
	for i, rec := range records {
		docs[i] = rec
	}
	inserted, err := st.InsertMany(ctx, docs, im.opts.BatchSize)
	res.Inserted = inserted
	im.addRows(rowsInserted, inserted)
	if err != nil {
		return fail(fmt.Errorf("insert records (%d of %d written): %w", inserted, len(docs), err))
	}

	res.Duration = im.now().Sub(start)
	logger.Info("import complete",
		"schema_version", res.SchemaVersion,
		"rows", report.Rows,
		"removed", res.Removed,
		"inserted", res.Inserted,
		"defaulted_empty", sum(report.Empty),
		"defaulted_invalid", sum(report.Invalid),
		"duration", res.Duration,
	)
	im.recordRun(PhaseDone, true)
	return res, nil
}

// nextVersion returns the version the run registers: one past the
// latest stored descriptor, or 1 for an empty registry.
func nextVersion(ctx context.Context, st store.Store) (int, error) {
	latest, err := st.LatestSchema(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load latest schema: %w", err)
	}
	return latest.Version + 1, nil
}

func (im *Importer) addRows(outcome string, n int) {
	if im.opts.Metrics != nil {
		im.opts.Metrics.AddImportRows(outcome, n)
	}
}

func (im *Importer) recordRun(phase Phase, ok bool) {
	if im.opts.Metrics != nil {
		im.opts.Metrics.RecordImportRun(string(phase), ok)
	}
}

func sum(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
