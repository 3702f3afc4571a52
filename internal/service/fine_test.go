package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

func newFineServiceMock(t *testing.T) (*FineService, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := quietLogger()
	svc := NewFineService(
		repository.NewEMIRepository(mockDB, logger),
		repository.NewSettingsRepository(mockDB, logger),
		NewAuditor(repository.NewAuditRepository(mockDB, logger), logger),
		logger,
	)
	return svc, mock, mockDB
}

func TestAccrueOverdueFines(t *testing.T) {
	svc, mock, mockDB := newFineServiceMock(t)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT id, default_fine_amount, updated_at FROM fine_settings").
		WillReturnRows(sqlmock.NewRows([]string{"id", "default_fine_amount", "updated_at"}).
			AddRow(1, int64(45000), time.Now()))
	mock.ExpectExec("UPDATE emi_schedule SET fine_amount").
		WillReturnResult(sqlmock.NewResult(0, 4))

	err := svc.AccrueOverdueFines(context.Background())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaiveFineRequiresAdmin(t *testing.T) {
	svc, _, mockDB := newFineServiceMock(t)
	defer mockDB.Close()

	_, err := svc.WaiveFine(context.Background(),
		model.Caller{UserID: uuid.New(), Role: model.RoleRetailer}, uuid.New())

	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestOverrideDueDateBlockedOnApprovedEMI(t *testing.T) {
	svc, mock, mockDB := newFineServiceMock(t)
	defer mockDB.Close()

	emiID := uuid.New()
	rows := sqlmock.NewRows([]string{
		"id", "customer_id", "emi_no", "due_date", "amount", "status", "paid_at",
		"mode", "approved_by", "fine_amount", "fine_waived", "created_at", "updated_at",
	}).AddRow(emiID, uuid.New(), 1, time.Now(), int64(100000), "APPROVED", nil,
		"CASH", nil, int64(0), false, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM emi_schedule WHERE id").
		WillReturnRows(rows)

	_, err := svc.OverrideDueDate(context.Background(),
		model.Caller{UserID: uuid.New(), Role: model.RoleSuperAdmin},
		model.OverrideDueDateInput{EMIID: emiID, DueDate: "2026-09-10"})

	assert.ErrorIs(t, err, model.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFineSettingsRejectsNegative(t *testing.T) {
	svc, _, mockDB := newFineServiceMock(t)
	defer mockDB.Close()

	_, err := svc.UpdateFineSettings(context.Background(),
		model.Caller{UserID: uuid.New(), Role: model.RoleSuperAdmin}, -1)

	assert.ErrorIs(t, err, model.ErrValidation)
}
