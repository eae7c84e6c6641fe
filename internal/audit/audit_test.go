package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/agentcred/internal/audit"
)

func TestEnsureSchemaPostgresExecutesCreateTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_log").WillReturnResult(sqlmock.NewResult(0, 0))

	sink := audit.New(db, audit.DialectPostgres)
	require.NoError(t, sink.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInsertsUsingPostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), "key_rotation", "v3", "success", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink := audit.New(db, audit.DialectPostgres)
	err = sink.Record(context.Background(), audit.Record{
		Timestamp: time.Now(),
		EventType: "key_rotation",
		Subject:   "v3",
		Status:    "success",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFillsInTimestampWhenZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink := audit.New(db, audit.DialectMySQL)
	require.NoError(t, sink.Record(context.Background(), audit.Record{
		EventType: "revocation",
		Subject:   "tok-abc",
		Status:    "success",
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSurfacesDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(errors.New("connection reset"))

	sink := audit.New(db, audit.DialectMySQL)
	err = sink.Record(context.Background(), audit.Record{EventType: "revocation", Subject: "tok-abc", Status: "failure"})
	assert.Error(t, err)
}
