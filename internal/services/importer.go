package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/haulstack/fuellens-api/internal/fieldmap"
	"github.com/haulstack/fuellens-api/internal/models"
	"github.com/haulstack/fuellens-api/internal/tabular"
)

// InsertOutcome tags the result of a persistence attempt so the pipeline
// never has to inspect error text to recognize the expected
// uniqueness-constraint case.
type InsertOutcome int

const (
	// Inserted means the row was stored and assigned an id.
	Inserted InsertOutcome = iota
	// Duplicate means a stored transaction already carries the same
	// natural key; nothing was written.
	Duplicate
)

// TransactionStore is the persistence collaborator. The store enforces the
// natural-key uniqueness constraint durably; Exists is an advisory
// pre-check that lets the pipeline classify a row as skipped with a clear
// reason instead of relying on a failed insert.
type TransactionStore interface {
	Add(ctx context.Context, t *models.FuelTransaction) (int64, InsertOutcome, error)
	Exists(ctx context.Context, key models.NaturalKey) (bool, error)
}

// EmployeeDirectory provides the read-only employee snapshot used for
// driver/unit correlation. It is loaded once per run.
type EmployeeDirectory interface {
	ListAll(ctx context.Context) ([]models.Employee, error)
}

// State is the lifecycle state of an import run.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateProcessing
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Progress is one progress report: fraction of rows processed plus a
// human-readable status line.
type Progress struct {
	Fraction float64 `json:"fraction"`
	Message  string  `json:"message"`
}

// Importer orchestrates import runs: read, parse, then per candidate
// duplicate-check, correlate and persist.
type Importer struct {
	store     TransactionStore
	directory EmployeeDirectory
	parser    *RecordParser
	log       zerolog.Logger
}

// NewImporter creates an import orchestrator.
func NewImporter(store TransactionStore, directory EmployeeDirectory, parser *RecordParser, log zerolog.Logger) *Importer {
	return &Importer{store: store, directory: directory, parser: parser, log: log}
}

// Run is a single asynchronous import. A Run is started once and never
// reused; its terminal state is final.
type Run struct {
	mu       sync.Mutex
	state    State
	result   *models.ImportResult
	err      error
	progress Progress

	events chan Progress
	cancel context.CancelFunc
	done   chan struct{}
}

// State returns the run's current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Progress returns the most recent progress report.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Events exposes the progress stream. Reports are conflated: a slow
// consumer sees the latest report, never a backlog, and the pipeline is
// never blocked by the consumer.
func (r *Run) Events() <-chan Progress {
	return r.events
}

// Cancel requests cooperative cancellation. The pipeline notices it at the
// next row boundary; an in-flight store call is not interrupted.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is terminal. On Completed and Cancelled it
// returns the (possibly partial) result; on Failed it returns the cause
// and no result.
func (r *Run) Wait() (*models.ImportResult, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// Result returns the terminal result, or nil while the run is in flight.
func (r *Run) Result() *models.ImportResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Err returns the fatal cause after a Failed run, else nil.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Run) setProgress(p Progress) {
	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()

	select {
	case r.events <- p:
	default:
		select {
		case <-r.events: // drop the stale report
		default:
		}
		select {
		case r.events <- p:
		default:
		}
	}
}

// Start begins an asynchronous import of reader's contents using a
// snapshot of the supplied field map. The reader is owned by the run from
// this point and closed when reading finishes. Execution within the run is
// strictly sequential, one row at a time; the caller never blocks.
func (imp *Importer) Start(ctx context.Context, reader tabular.Reader, fm *fieldmap.Map) *Run {
	ctx, cancel := context.WithCancel(ctx)
	run := &Run{
		state:  StateIdle,
		events: make(chan Progress, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go imp.execute(ctx, run, reader, fm.Snapshot())
	return run
}

func (imp *Importer) execute(ctx context.Context, run *Run, reader tabular.Reader, fm *fieldmap.Map) {
	defer close(run.done)
	defer run.cancel()

	run.setState(StateReading)

	candidates, err := imp.parser.Parse(reader, fm)
	reader.Close()
	if err != nil {
		imp.fail(run, fmt.Errorf("reading import file: %w", err))
		return
	}

	employees, err := imp.directory.ListAll(ctx)
	if err != nil {
		imp.fail(run, fmt.Errorf("loading employee directory: %w", err))
		return
	}
	index := NewEmployeeIndex(employees)

	run.setState(StateProcessing)
	total := len(candidates)
	result := &models.ImportResult{Total: total}

	for i := range candidates {
		if ctx.Err() != nil {
			imp.finish(run, StateCancelled, result)
			return
		}

		cand := &candidates[i]
		imp.processRow(ctx, cand, index, result)

		run.setProgress(Progress{
			Fraction: float64(i+1) / float64(total),
			Message:  fmt.Sprintf("processed %d of %d rows", i+1, total),
		})
	}

	imp.finish(run, StateCompleted, result)
}

// processRow runs the per-row sequence: advisory duplicate check,
// correlation, persistence. Row-level problems never abort the batch.
// Cancellation is honored at row boundaries only, so store calls run on a
// detached context; a cancel request never aborts a call in flight.
func (imp *Importer) processRow(ctx context.Context, cand *models.Candidate, index *EmployeeIndex, result *models.ImportResult) {
	ctx = context.WithoutCancel(ctx)

	exists, err := imp.store.Exists(ctx, cand.Txn.Key())
	if err != nil {
		imp.rowError(result, cand.Row, fmt.Sprintf("duplicate check failed: %v", err))
		return
	}
	if exists {
		result.Skipped++
		return
	}

	cand.Txn.EmployeeID = index.Correlate(cand.Txn.DriverName, cand.Txn.Unit)

	id, outcome, err := imp.store.Add(ctx, &cand.Txn)
	switch {
	case err != nil:
		imp.rowError(result, cand.Row, err.Error())
	case outcome == Duplicate:
		// Lost the race against the storage constraint; still a skip.
		result.Skipped++
	default:
		cand.Txn.ID = id
		result.Imported++
	}
}

func (imp *Importer) rowError(result *models.ImportResult, row int, msg string) {
	result.Errors++
	result.ErrorList = append(result.ErrorList, models.RowError{Row: row, Message: msg})
	imp.log.Debug().Int("row", row).Str("error", msg).Msg("row import failed")
}

func (imp *Importer) finish(run *Run, state State, result *models.ImportResult) {
	run.mu.Lock()
	run.state = state
	run.result = result
	run.mu.Unlock()
	imp.log.Info().
		Stringer("state", state).
		Int("total", result.Total).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Msg("import run finished")
}

func (imp *Importer) fail(run *Run, err error) {
	run.mu.Lock()
	run.state = StateFailed
	run.err = err
	run.mu.Unlock()
	imp.log.Error().Err(err).Msg("import run failed")
}
