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

func newMockEMIRepository(t *testing.T) (*EMIRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewEMIRepository(mockDB, logger), mock, mockDB
}

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

func TestMarkPendingApprovalTx(t *testing.T) {
	t.Run("locks all requested rows", func(t *testing.T) {
		repo, mock, mockDB := newMockEMIRepository(t)
		defer mockDB.Close()

		tx := beginTx(t, mockDB, mock)
		ids := []uuid.UUID{uuid.New(), uuid.New()}
		mock.ExpectExec("UPDATE emi_schedule SET status = 'PENDING_APPROVAL'").
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := repo.MarkPendingApprovalTx(context.Background(), tx, ids, uuid.New())

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflicts when any row is not payable", func(t *testing.T) {
		repo, mock, mockDB := newMockEMIRepository(t)
		defer mockDB.Close()

		tx := beginTx(t, mockDB, mock)
		ids := []uuid.UUID{uuid.New(), uuid.New()}
		mock.ExpectExec("UPDATE emi_schedule SET status = 'PENDING_APPROVAL'").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkPendingApprovalTx(context.Background(), tx, ids, uuid.New())

		assert.ErrorIs(t, err, model.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApproveTx(t *testing.T) {
	t.Run("conflicts when the expected source status does not hold", func(t *testing.T) {
		repo, mock, mockDB := newMockEMIRepository(t)
		defer mockDB.Close()

		tx := beginTx(t, mockDB, mock)
		ids := []uuid.UUID{uuid.New()}
		mock.ExpectExec("UPDATE emi_schedule SET status = 'APPROVED'").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.ApproveTx(context.Background(), tx, ids, model.EMIPendingApproval, model.ModeUPI, uuid.New(), time.Now())

		assert.ErrorIs(t, err, model.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRevertToUnpaidTx(t *testing.T) {
	repo, mock, mockDB := newMockEMIRepository(t)
	defer mockDB.Close()

	tx := beginTx(t, mockDB, mock)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	mock.ExpectExec("UPDATE emi_schedule SET status = 'UNPAID'").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.RevertToUnpaidTx(context.Background(), tx, ids)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccrueFines(t *testing.T) {
	repo, mock, mockDB := newMockEMIRepository(t)
	defer mockDB.Close()

	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE emi_schedule SET fine_amount").
		WithArgs(int64(45000), today).
		WillReturnResult(sqlmock.NewResult(0, 3))

	stamped, err := repo.AccrueFines(context.Background(), 45000, today)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), stamped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFineNotFound(t *testing.T) {
	repo, mock, mockDB := newMockEMIRepository(t)
	defer mockDB.Close()

	mock.ExpectExec("UPDATE emi_schedule SET fine_amount").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFine(context.Background(), uuid.New(), 45000, false)

	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDsForCustomerMissingRow(t *testing.T) {
	repo, mock, mockDB := newMockEMIRepository(t)
	defer mockDB.Close()

	customerID := uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	rows := sqlmock.NewRows([]string{
		"id", "customer_id", "emi_no", "due_date", "amount", "status", "paid_at",
		"mode", "approved_by", "fine_amount", "fine_waived", "created_at", "updated_at",
	}).AddRow(ids[0], customerID, 1, time.Now(), int64(100000), "UNPAID", nil,
		"", nil, int64(0), false, time.Now(), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM emi_schedule WHERE id = ANY").
		WillReturnRows(rows)

	_, err := repo.GetByIDsForCustomer(context.Background(), ids, customerID)

	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
