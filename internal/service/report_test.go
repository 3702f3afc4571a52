package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

func TestFinesCSV(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	logger := quietLogger()
	svc := NewReportService(repository.NewReportRepository(mockDB, logger), logger)

	rows := sqlmock.NewRows([]string{
		"id", "customer_id", "emi_no", "due_date", "amount", "status", "paid_at",
		"mode", "fine_amount", "fine_waived", "customer_name", "imei", "mobile", "name",
	}).AddRow(uuid.New(), uuid.New(), 2, time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC),
		int64(100000), "UNPAID", nil, "", int64(45000), false,
		"Ramesh Kumar", "123456789012345", "9876543210", "Star Mobiles")

	mock.ExpectQuery("SELECT (.+) FROM emi_schedule e JOIN customers c").
		WillReturnRows(rows)

	var buf bytes.Buffer
	err = svc.FinesCSV(context.Background(),
		model.Caller{UserID: uuid.New(), Role: model.RoleSuperAdmin}, &buf)
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Customer", records[0][0])
	assert.Equal(t, "Ramesh Kumar", records[1][0])
	assert.Equal(t, "2026-07-05", records[1][5])
	assert.Equal(t, "INR 1000.00", records[1][6])
	assert.Equal(t, "INR 450.00", records[1][10])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomersCSV(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	logger := quietLogger()
	svc := NewReportService(repository.NewReportRepository(mockDB, logger), logger)

	rows := sqlmock.NewRows([]string{
		"id", "customer_name", "mobile", "model_no", "imei", "name",
		"purchase_date", "purchase_value", "emi_amount", "emi_tenure", "status", "count",
	}).AddRow(uuid.New(), "Ramesh Kumar", "9876543210", "Galaxy A15", "123456789012345",
		"Star Mobiles", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		int64(1500000), int64(100000), 12, "RUNNING", 3)

	mock.ExpectQuery("SELECT (.+) FROM customers c JOIN retailers rt").
		WillReturnRows(rows)

	var buf bytes.Buffer
	err = svc.CustomersCSV(context.Background(),
		model.Caller{UserID: uuid.New(), Role: model.RoleSuperAdmin}, &buf)
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Customer", records[0][0])
	assert.Equal(t, "Ramesh Kumar", records[1][0])
	assert.Equal(t, "INR 15000.00", records[1][6])
	assert.Equal(t, "3/12", records[1][9])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportsRequireAdmin(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	logger := quietLogger()
	svc := NewReportService(repository.NewReportRepository(mockDB, logger), logger)
	retailerCaller := model.Caller{UserID: uuid.New(), Role: model.RoleRetailer}

	var buf bytes.Buffer
	assert.ErrorIs(t, svc.FullScheduleCSV(context.Background(), retailerCaller, &buf), model.ErrForbidden)
	assert.ErrorIs(t, svc.CustomersCSV(context.Background(), retailerCaller, &buf), model.ErrForbidden)
	assert.ErrorIs(t, svc.CollectionsCSV(context.Background(), retailerCaller, &buf), model.ErrForbidden)

	_, err = svc.ListOverdue(context.Background(), retailerCaller, 7)
	assert.ErrorIs(t, err, model.ErrForbidden)
}
