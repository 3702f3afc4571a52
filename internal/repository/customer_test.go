package repository

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
)

func newMockCustomerRepository(t *testing.T) (*CustomerRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewCustomerRepository(mockDB, logger), mock, mockDB
}

func TestCustomerGetByIDNotFound(t *testing.T) {
	repo, mock, mockDB := newMockCustomerRepository(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM customers WHERE id").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)

	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkComplete(t *testing.T) {
	t.Run("closes a running account", func(t *testing.T) {
		repo, mock, mockDB := newMockCustomerRepository(t)
		defer mockDB.Close()

		mock.ExpectExec("UPDATE customers SET status = 'COMPLETE'").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkComplete(context.Background(), uuid.New(), "all dues cleared", time.Now())

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflicts when the account is already complete", func(t *testing.T) {
		repo, mock, mockDB := newMockCustomerRepository(t)
		defer mockDB.Close()

		mock.ExpectExec("UPDATE customers SET status = 'COMPLETE'").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkComplete(context.Background(), uuid.New(), "all dues cleared", time.Now())

		assert.ErrorIs(t, err, model.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStampFirstChargePaidTxIdempotent(t *testing.T) {
	repo, mock, mockDB := newMockCustomerRepository(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	tx, err := mockDB.Begin()
	require.NoError(t, err)

	// Zero rows affected means the charge was already stamped; not an error.
	mock.ExpectExec("UPDATE customers SET first_emi_charge_paid_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.StampFirstChargePaidTx(context.Background(), tx, uuid.New(), time.Now())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascadeTxOrder(t *testing.T) {
	repo, mock, mockDB := newMockCustomerRepository(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	tx, err := mockDB.Begin()
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectExec("DELETE FROM payment_request_items").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM payment_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM emi_schedule").
		WillReturnResult(sqlmock.NewResult(0, 6))
	mock.ExpectExec("DELETE FROM customers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.DeleteCascadeTx(context.Background(), tx, id)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
