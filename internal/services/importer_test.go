package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulstack/fuellens-api/internal/fieldmap"
	"github.com/haulstack/fuellens-api/internal/logger"
	"github.com/haulstack/fuellens-api/internal/models"
	"github.com/haulstack/fuellens-api/internal/tabular"
)

// memStore is an in-memory TransactionStore honoring the natural-key
// uniqueness rule the real store enforces with its index.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[models.NaturalKey]int64
	txns   []models.FuelTransaction
}

func newMemStore() *memStore {
	return &memStore{byKey: make(map[models.NaturalKey]int64)}
}

func (s *memStore) Add(_ context.Context, t *models.FuelTransaction) (int64, InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := t.Key()
	if _, ok := s.byKey[key]; ok {
		return 0, Duplicate, nil
	}
	s.nextID++
	s.byKey[key] = s.nextID
	stored := *t
	stored.ID = s.nextID
	s.txns = append(s.txns, stored)
	return s.nextID, Inserted, nil
}

func (s *memStore) Exists(_ context.Context, key models.NaturalKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byKey[key]
	return ok, nil
}

// mockStore overrides individual store calls per test.
type mockStore struct {
	addFn    func(ctx context.Context, t *models.FuelTransaction) (int64, InsertOutcome, error)
	existsFn func(ctx context.Context, key models.NaturalKey) (bool, error)
}

func (m *mockStore) Add(ctx context.Context, t *models.FuelTransaction) (int64, InsertOutcome, error) {
	return m.addFn(ctx, t)
}

func (m *mockStore) Exists(ctx context.Context, key models.NaturalKey) (bool, error) {
	return m.existsFn(ctx, key)
}

type mockDirectory struct {
	listFn func(ctx context.Context) ([]models.Employee, error)
}

func (m *mockDirectory) ListAll(ctx context.Context) ([]models.Employee, error) {
	return m.listFn(ctx)
}

func staticDirectory(employees ...models.Employee) *mockDirectory {
	return &mockDirectory{listFn: func(context.Context) ([]models.Employee, error) {
		return employees, nil
	}}
}

func newTestImporter(store TransactionStore, dir EmployeeDirectory) *Importer {
	log := logger.NewWithWriter(io.Discard)
	return NewImporter(store, dir, NewRecordParser(log), log)
}

// importRow is (invoice, date, location, amount, driver, unit) in the
// column order of importReader's header row.
type importRow [6]string

func importReader(rows ...importRow) tabular.Reader {
	wb := &fakeWorkbook{
		headers: []string{"invoice", "tran date", "location name", "amt", "driver name", "unit"},
	}
	for _, r := range rows {
		wb.rows = append(wb.rows, r[:])
	}
	return wb
}

func TestImport_WellFormed(t *testing.T) {
	store := newMemStore()
	dir := staticDirectory(
		models.Employee{ID: 5, Name: "John Doe", Unit: "TRK-12"},
		models.Employee{ID: 8, Name: "Jane Roe", Unit: "TRK-40"},
	)
	imp := newTestImporter(store, dir)

	reader := importReader(
		importRow{"INV1", "2024-01-01", "StationA", "100.00", "John Doe", "TRK-12"},
		importRow{"INV2", "2024-01-02", "StationB", "50.25", "jane roe", "trk-40"},
		importRow{"INV3", "2024-01-03", "StationC", "75.00", "Nobody", "TRK-99"},
	)

	run := imp.Start(context.Background(), reader, fieldmap.Default())
	result, err := run.Wait()
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, StateCompleted, run.State())
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Errors)

	require.Len(t, store.txns, 3)
	assert.Equal(t, int64(5), store.txns[0].EmployeeID)
	assert.Equal(t, int64(8), store.txns[1].EmployeeID)
	assert.Equal(t, int64(0), store.txns[2].EmployeeID)

	// The final progress report covers the whole batch.
	assert.Equal(t, 1.0, run.Progress().Fraction)
}

func TestImport_RerunSkipsEverything(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(store, staticDirectory())

	rows := []importRow{
		{"INV1", "2024-01-01", "StationA", "100.00", "", ""},
		{"INV2", "2024-01-02", "StationB", "50.25", "", ""},
	}

	run := imp.Start(context.Background(), importReader(rows...), fieldmap.Default())
	result, err := run.Wait()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	// Second run over the same file: nothing new, nothing errored.
	run = imp.Start(context.Background(), importReader(rows...), fieldmap.Default())
	result, err = run.Wait()
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, run.State())
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Errors)
}

func TestImport_DuplicateWithinBatch(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(store, staticDirectory())

	// Rows 1 and 3 share a natural key up to case, whitespace and cent
	// rounding; row 2 differs in amount only.
	reader := importReader(
		importRow{"INV1", "2024-01-01", "StationA", "100.00", "", ""},
		importRow{"INV1", "2024-01-01", "StationA", "100.50", "", ""},
		importRow{" inv1 ", "2024-01-01", "STATIONA", "100.001", "", ""},
	)

	run := imp.Start(context.Background(), reader, fieldmap.Default())
	result, err := run.Wait()
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Errors)
}

func TestImport_PersistFailureContinues(t *testing.T) {
	store := &mockStore{
		existsFn: func(context.Context, models.NaturalKey) (bool, error) {
			return false, nil
		},
		addFn: func(_ context.Context, txn *models.FuelTransaction) (int64, InsertOutcome, error) {
			if txn.Invoice == "INV2" {
				return 0, Inserted, fmt.Errorf("connection reset")
			}
			return 1, Inserted, nil
		},
	}
	imp := newTestImporter(store, staticDirectory())

	reader := importReader(
		importRow{"INV1", "2024-01-01", "StationA", "100.00", "", ""},
		importRow{"INV2", "2024-01-02", "StationB", "50.25", "", ""},
		importRow{"INV3", "2024-01-03", "StationC", "75.00", "", ""},
	)

	run := imp.Start(context.Background(), reader, fieldmap.Default())
	result, err := run.Wait()
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, run.State())
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorList, 1)
	assert.Equal(t, 2, result.ErrorList[0].Row)
	assert.Contains(t, result.ErrorList[0].Message, "connection reset")
}

func TestImport_DuplicateCheckFailureIsRowError(t *testing.T) {
	store := &mockStore{
		existsFn: func(context.Context, models.NaturalKey) (bool, error) {
			return false, fmt.Errorf("query timeout")
		},
	}
	imp := newTestImporter(store, staticDirectory())

	reader := importReader(importRow{"INV1", "2024-01-01", "StationA", "100.00", "", ""})
	run := imp.Start(context.Background(), reader, fieldmap.Default())
	result, err := run.Wait()
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, run.State())
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorList, 1)
	assert.Contains(t, result.ErrorList[0].Message, "query timeout")
}

func TestImport_InsertRaceCountedAsSkip(t *testing.T) {
	store := &mockStore{
		existsFn: func(context.Context, models.NaturalKey) (bool, error) {
			return false, nil
		},
		addFn: func(context.Context, *models.FuelTransaction) (int64, InsertOutcome, error) {
			return 0, Duplicate, nil
		},
	}
	imp := newTestImporter(store, staticDirectory())

	reader := importReader(importRow{"INV1", "2024-01-01", "StationA", "100.00", "", ""})
	run := imp.Start(context.Background(), reader, fieldmap.Default())
	result, err := run.Wait()
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 0, result.Errors)
}

func TestImport_CancelStopsAtRowBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const cancelAt = 2
	calls := 0
	store := &mockStore{
		existsFn: func(context.Context, models.NaturalKey) (bool, error) {
			calls++
			if calls == cancelAt {
				cancel()
			}
			return false, nil
		},
		addFn: func(context.Context, *models.FuelTransaction) (int64, InsertOutcome, error) {
			return int64(calls), Inserted, nil
		},
	}
	imp := newTestImporter(store, staticDirectory())

	reader := importReader(
		importRow{"INV1", "2024-01-01", "StationA", "10.00", "", ""},
		importRow{"INV2", "2024-01-02", "StationA", "20.00", "", ""},
		importRow{"INV3", "2024-01-03", "StationA", "30.00", "", ""},
		importRow{"INV4", "2024-01-04", "StationA", "40.00", "", ""},
		importRow{"INV5", "2024-01-05", "StationA", "50.00", "", ""},
	)

	run := imp.Start(ctx, reader, fieldmap.Default())
	result, err := run.Wait()
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, StateCancelled, run.State())
	// The row in flight when cancellation lands still finishes; nothing
	// after the boundary is touched.
	assert.Equal(t, cancelAt, calls)
	assert.Equal(t, cancelAt, result.Imported+result.Skipped+result.Errors)
	assert.Equal(t, 5, result.Total)
}

func TestImport_CancelViaRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store := &mockStore{
		existsFn: func(context.Context, models.NaturalKey) (bool, error) {
			once.Do(func() { close(started) })
			<-release
			return false, nil
		},
		addFn: func(context.Context, *models.FuelTransaction) (int64, InsertOutcome, error) {
			return 1, Inserted, nil
		},
	}
	imp := newTestImporter(store, staticDirectory())

	reader := importReader(
		importRow{"INV1", "2024-01-01", "StationA", "10.00", "", ""},
		importRow{"INV2", "2024-01-02", "StationA", "20.00", "", ""},
	)

	run := imp.Start(context.Background(), reader, fieldmap.Default())
	<-started
	run.Cancel()
	close(release)

	result, err := run.Wait()
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, run.State())
	assert.Equal(t, 1, result.Imported+result.Skipped+result.Errors)
}

func TestImport_CancelDoesNotAbortStoreCall(t *testing.T) {
	inFlight := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	// The store honors context cancellation, as a real driver would. The
	// row in flight must still complete on a live context and land in the
	// tally, not in the error list.
	store := &mockStore{
		existsFn: func(ctx context.Context, _ models.NaturalKey) (bool, error) {
			once.Do(func() { close(inFlight) })
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-release:
				return false, nil
			}
		},
		addFn: func(ctx context.Context, _ *models.FuelTransaction) (int64, InsertOutcome, error) {
			if err := ctx.Err(); err != nil {
				return 0, Inserted, err
			}
			return 1, Inserted, nil
		},
	}
	imp := newTestImporter(store, staticDirectory())

	reader := importReader(
		importRow{"INV1", "2024-01-01", "StationA", "10.00", "", ""},
		importRow{"INV2", "2024-01-02", "StationA", "20.00", "", ""},
	)

	run := imp.Start(context.Background(), reader, fieldmap.Default())
	<-inFlight
	run.Cancel()
	close(release)

	result, err := run.Wait()
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, run.State())
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 0, result.Errors)
	assert.Empty(t, result.ErrorList)
}

func TestImport_ReadFailureFailsRun(t *testing.T) {
	reader := &fakeWorkbook{
		headers: []string{"invoice"},
		err:     fmt.Errorf("corrupt sheet"),
	}
	imp := newTestImporter(newMemStore(), staticDirectory())

	run := imp.Start(context.Background(), reader, fieldmap.Default())
	result, err := run.Wait()

	assert.Equal(t, StateFailed, run.State())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt sheet")
	assert.Nil(t, result)
}

func TestImport_DirectoryFailureFailsRun(t *testing.T) {
	dir := &mockDirectory{listFn: func(context.Context) ([]models.Employee, error) {
		return nil, fmt.Errorf("employees table unavailable")
	}}
	imp := newTestImporter(newMemStore(), dir)

	reader := importReader(importRow{"INV1", "2024-01-01", "StationA", "100.00", "", ""})
	run := imp.Start(context.Background(), reader, fieldmap.Default())
	result, err := run.Wait()

	assert.Equal(t, StateFailed, run.State())
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestImport_EmptyFileCompletes(t *testing.T) {
	imp := newTestImporter(newMemStore(), staticDirectory())

	run := imp.Start(context.Background(), importReader(), fieldmap.Default())
	result, err := run.Wait()
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, run.State())
	assert.Equal(t, 0, result.Total)
}

func TestImport_ProgressConflation(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(store, staticDirectory())

	var rows []importRow
	for i := 0; i < 50; i++ {
		rows = append(rows, importRow{
			fmt.Sprintf("INV%d", i), "2024-01-01", "StationA",
			fmt.Sprintf("%d.00", i+1), "", "",
		})
	}

	run := imp.Start(context.Background(), importReader(rows...), fieldmap.Default())
	_, err := run.Wait()
	require.NoError(t, err)

	// The stream never blocked the worker; whatever report is buffered is
	// a valid snapshot, and the retained Progress is the final one.
	select {
	case p := <-run.Events():
		assert.Greater(t, p.Fraction, 0.0)
		assert.LessOrEqual(t, p.Fraction, 1.0)
	default:
		t.Fatal("expected at least one buffered progress report")
	}
	assert.Equal(t, 1.0, run.Progress().Fraction)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "processing", StateProcessing.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateFailed.Terminal())
}
