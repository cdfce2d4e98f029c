package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
)

func testRecord() *expense.Record {
	return &expense.Record{
		TransactionTime:       time.Date(2024, 1, 5, 10, 0, 0, 0, time.Local),
		Amount:                decimal.RequireFromString("-45"),
		Currency:              "CNY",
		Channel:               expense.ChannelAlipay,
		SourceRawDescription:  "肯德基 - 宅急送订单",
		DescriptionForAI:      "肯德基 - 宅急送订单",
		ExternalTransactionID: "2024010522001412341234",
	}
}

func TestWithinTxCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	err = repo.WithinTx(context.Background(), func(ImportTx) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := NewPostgresRepository(mock)
	boom := errors.New("boom")
	err = repo.WithinTx(context.Background(), func(ImportTx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertExpense(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectBegin() // savepoint
	mock.ExpectQuery("INSERT INTO expenses").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectCommit() // savepoint release
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	err = repo.WithinTx(context.Background(), func(tx ImportTx) error {
		got, err := tx.InsertExpense(context.Background(), testRecord())
		require.NoError(t, err)
		assert.Equal(t, id, got)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertExpenseDuplicateKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO expenses").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "expenses_external_transaction_id_key"})
	mock.ExpectRollback() // savepoint rollback keeps the outer tx alive
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	err = repo.WithinTx(context.Background(), func(tx ImportTx) error {
		_, err := tx.InsertExpense(context.Background(), testRecord())
		assert.ErrorIs(t, err, ErrDuplicateKey)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertExpenseRowError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO expenses").
		WillReturnError(&pgconn.PgError{Code: "23502", Message: "null value"})
	mock.ExpectRollback()
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	err = repo.WithinTx(context.Background(), func(tx ImportTx) error {
		_, err := tx.InsertExpense(context.Background(), testRecord())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateKey)
		assert.True(t, IsRowError(err))
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	err = repo.WithinTx(context.Background(), func(tx ImportTx) error {
		dup, err := tx.HasDuplicate(context.Background(), testRecord())
		require.NoError(t, err)
		assert.True(t, dup)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAudit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO import_sources").
		WillReturnRows(pgxmock.NewRows([]string{"id", "imported_at"}).AddRow(id, now))

	repo := NewPostgresRepository(mock)
	audit := &Audit{
		FileName:     "wechat.csv",
		Channel:      expense.ChannelWeChatPay,
		Status:       "Success",
		TotalRecords: 3,
		Imported:     3,
	}
	require.NoError(t, repo.RecordAudit(context.Background(), audit))
	assert.Equal(t, id, audit.ID)
	assert.Equal(t, now, audit.ImportedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRowError(t *testing.T) {
	assert.True(t, IsRowError(&pgconn.PgError{Code: "23514"}))
	assert.False(t, IsRowError(errors.New("connection reset")))
	assert.False(t, IsRowError(nil))
}
