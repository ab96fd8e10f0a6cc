package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quantlens/internal/catalog"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestNewRejectsEmptyDSN(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}

func TestNilPool(t *testing.T) {
	db := &DB{}
	assert.Error(t, db.Health(context.Background()))
	assert.Error(t, db.Migrate(context.Background()))
	active, idle := db.Stats()
	assert.Zero(t, active)
	assert.Zero(t, idle)
	db.Close()
}

// ============================================================================
// MIGRATIONS
// ============================================================================

func TestLoadEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil).Load()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial schema", migrations[0].Description)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS catalog_entries")
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS daily_reports")
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "analysis runs", migrations[1].Description)
}

func TestMigrateAppliesPending(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analysis_runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_version").
		WithArgs(2, "analysis runs").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewMigrator(mock).Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUpToDate(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(2))

	require.NoError(t, NewMigrator(mock).Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateFailureRollsBack(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS catalog_entries").
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := NewMigrator(mock).Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migration 1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationStatus(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(1))

	status, err := NewMigrator(mock).Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.True(t, status[0].Applied)
	assert.False(t, status[1].Applied)
}

// ============================================================================
// CATALOG REPOSITORY
// ============================================================================

func TestCatalogRepositoryList(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)
	added := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT label, series_id, added_at FROM catalog_entries").
		WillReturnRows(pgxmock.NewRows([]string{"label", "series_id", "added_at"}).
			AddRow("Brent (DCOILBRENTEU)", "DCOILBRENTEU", added).
			AddRow("Silver (SLVPRUSD)", "SLVPRUSD", added.Add(time.Hour)))

	entries, err := repo.ListCatalogEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "DCOILBRENTEU", entries[0].SeriesID)
	assert.True(t, entries[0].Dynamic)
	assert.Equal(t, catalog.GroupDynamic, entries[1].Group)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryAdd(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectExec("INSERT INTO catalog_entries").
		WithArgs("Brent (DCOILBRENTEU)", "DCOILBRENTEU", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.AddCatalogEntry(context.Background(), catalog.Entry{Label: "Brent (DCOILBRENTEU)", SeriesID: "DCOILBRENTEU"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryQueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectQuery("SELECT label").WillReturnError(errors.New("relation does not exist"))

	_, err := repo.ListCatalogEntries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query catalog entries")
}

func TestCatalogRepositoryBacksCatalog(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectQuery("SELECT label, series_id, added_at FROM catalog_entries").
		WillReturnRows(pgxmock.NewRows([]string{"label", "series_id", "added_at"}).
			AddRow("Brent (DCOILBRENTEU)", "DCOILBRENTEU", time.Now()))

	c, err := catalog.New(repo)
	require.NoError(t, err)
	require.NoError(t, c.Load(context.Background()))

	ids, err := c.Resolve([]string{"Brent (DCOILBRENTEU)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DCOILBRENTEU"}, ids)
}

// ============================================================================
// REPORT REPOSITORY
// ============================================================================

func TestReportRepositorySave(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO daily_reports").
		WithArgs(pgxmock.AnyArg(), "asset", date, "aapl.us", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &ReportRecord{Kind: "asset", Date: date, Subject: "aapl.us", Payload: json.RawMessage(`{"close":190.1}`)}
	require.NoError(t, repo.Save(context.Background(), rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryList(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	id := uuid.New()
	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, kind, report_date, subject, payload, created_at").
		WithArgs("portfolio", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "report_date", "subject", "payload", "created_at"}).
			AddRow(id, "portfolio", date, "A,B,C", []byte(`{"volatility":0.12}`), date))

	records, err := repo.List(context.Background(), "portfolio", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.JSONEq(t, `{"volatility":0.12}`, string(records[0].Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryCount(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestRepositoriesWithoutPool(t *testing.T) {
	ctx := context.Background()

	_, err := NewCatalogRepository(nil).ListCatalogEntries(ctx)
	assert.Error(t, err)
	assert.Error(t, NewReportRepository(nil).Save(ctx, &ReportRecord{}))
	_, err = NewReportRepository(nil).Count(ctx)
	assert.Error(t, err)
	assert.Error(t, NewRunRepository(nil).Record(ctx, &AnalysisRun{}))
}

// ============================================================================
// RUN REPOSITORY
// ============================================================================

func TestRunRepository(t *testing.T) {
	mock := newMock(t)
	repo := NewRunRepository(mock)
	runID := uuid.New()

	mock.ExpectExec("INSERT INTO analysis_runs").
		WithArgs(runID, "portfolio", "DEXUSEU,SP500,DGS10", pgxmock.AnyArg(), int64(42), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Record(context.Background(), &AnalysisRun{
		RunID:      runID,
		Kind:       "portfolio",
		Subject:    "DEXUSEU,SP500,DGS10",
		Params:     json.RawMessage(`{"rebalance":"Monthly"}`),
		DurationMs: 42,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT run_id, kind, subject, params, duration_ms, created_at").
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "kind", "subject", "params", "duration_ms", "created_at"}).
			AddRow(runID, "portfolio", "DEXUSEU,SP500,DGS10", []byte(`{}`), int64(42), now))

	runs, err := repo.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	require.NoError(t, mock.ExpectationsWereMet())
}
