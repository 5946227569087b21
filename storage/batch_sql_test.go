package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// These tests pin the generated SQL: placeholder bookkeeping for the
// multi-row insert is easy to get wrong when the per-row column count
// changes.

func newMockStore(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := &SQLite{db: db, log: zap.NewNop(), maxBatch: 1000, now: func() time.Time { return testNow }}
	return s, mock
}

func TestInsertOneSQL(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO population (servers, players, date) VALUES (?, ?, ?)`)).
		WithArgs(5, 10, testNow.Format(timeLayout)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.InsertOne(context.Background(), 5, 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchSQLPlaceholders(t *testing.T) {
	s, mock := newMockStore(t)

	t1 := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO population (servers, players, date) VALUES (?,?,?),(?,?,?)`)).
		WithArgs(5, 10, t1.Format(timeLayout), 7, 14, t2.Format(timeLayout)).
		WillReturnResult(sqlmock.NewResult(2, 2))

	err := s.InsertBatch(context.Background(), []Sample{
		{Servers: 5, Players: 10, Timestamp: t1},
		{Servers: 7, Players: 14, Timestamp: t2},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchOversizedSendsNothing(t *testing.T) {
	s, mock := newMockStore(t)
	s.maxBatch = 1

	err := s.InsertBatch(context.Background(), []Sample{
		{Servers: 1, Players: 1, Timestamp: testNow},
		{Servers: 2, Players: 2, Timestamp: testNow},
	})
	require.Error(t, err)
	// no Exec was expected and none may have happened
	require.NoError(t, mock.ExpectationsWereMet())
}
