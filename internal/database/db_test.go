package database

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{sqlDB}, mock
}

func TestCreateTables(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS pipeline_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS feature_values").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.CreateTables(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTablesError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS pipeline_runs").WillReturnError(errors.New("denied"))

	err := db.CreateTables(context.Background())
	assert.ErrorContains(t, err, "creating pipeline_runs")
}

func TestCreateRun(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO pipeline_runs").
		WithArgs(created, "raw.csv", "Volatility_7d", "global", 40, 80, 20, 80).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := db.CreateRun(context.Background(), Run{
		CreatedAt: created, Source: "raw.csv", Target: "Volatility_7d", SplitMode: "global",
		Features: 40, TrainSize: 80, TestSize: 20, SplitIndex: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRun(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	columns := []string{"id", "created_at", "source", "target", "split_mode", "features", "train_size", "test_size", "split_index"}

	mock.ExpectQuery("SELECT (.+) FROM pipeline_runs").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(3, created, "raw.csv", "Volatility_7d", "per_coin", 12, 8, 2, 8))

	run, err := db.LatestRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, int64(3), run.ID)
	assert.Equal(t, "per_coin", run.SplitMode)
	assert.Equal(t, 8, run.SplitIndex)

	mock.ExpectQuery("SELECT (.+) FROM pipeline_runs").WillReturnRows(sqlmock.NewRows(columns))
	run, err = db.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestSaveFeatures(t *testing.T) {
	db, mock := newMockDB(t)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	f := model.NewFrame(2)
	f.Name[0], f.Name[1] = "BTC", "ETH"
	f.Date[0] = date
	require.NoError(t, f.Set("RSI_14", []float64{55, math.NaN()}))
	require.NoError(t, f.Set("MACD", []float64{0.5, -1}))

	mock.ExpectBegin()
	copyStmt := mock.ExpectPrepare(regexp.QuoteMeta(`COPY "feature_values"`))
	copyStmt.ExpectExec().WithArgs(int64(9), "train", "BTC", date, "RSI_14", 55.0).WillReturnResult(sqlmock.NewResult(0, 1))
	copyStmt.ExpectExec().WithArgs(int64(9), "train", "BTC", date, "MACD", 0.5).WillReturnResult(sqlmock.NewResult(0, 1))
	copyStmt.ExpectExec().WithArgs(int64(9), "train", "ETH", nil, "MACD", -1.0).WillReturnResult(sqlmock.NewResult(0, 1))
	copyStmt.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := db.SaveFeatures(context.Background(), 9, "train", f)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "NaN values are skipped")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveFeaturesRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	f := model.NewFrame(1)
	f.Name[0] = "BTC"
	require.NoError(t, f.Set("MACD", []float64{1}))

	mock.ExpectBegin()
	copyStmt := mock.ExpectPrepare(regexp.QuoteMeta(`COPY "feature_values"`))
	copyStmt.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := db.SaveFeatures(context.Background(), 1, "test", f)
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
