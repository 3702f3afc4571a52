package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biswadipgoj/emi-portal-full/internal/crypto"
	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

func newCustomerServiceMock(t *testing.T, pgp *crypto.PGPManager) (*CustomerService, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger := quietLogger()
	svc := NewCustomerService(
		repository.NewCustomerRepository(mockDB, logger),
		repository.NewEMIRepository(mockDB, logger),
		repository.NewRetailerRepository(mockDB, logger),
		pgp,
		NewAuditor(repository.NewAuditRepository(mockDB, logger), logger),
		logger,
	)
	return svc, mock
}

func TestGenerateSchedule(t *testing.T) {
	customerID := uuid.New()
	purchase := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	emis := GenerateSchedule(customerID, purchase, 5, 3, 100000, now)

	require.Len(t, emis, 3)
	assert.Equal(t, time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC), emis[0].DueDate)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), emis[1].DueDate)
	assert.Equal(t, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), emis[2].DueDate)

	for i, emi := range emis {
		assert.Equal(t, i+1, emi.EMINo)
		assert.Equal(t, customerID, emi.CustomerID)
		assert.Equal(t, int64(100000), emi.Amount)
		assert.Equal(t, model.EMIUnpaid, emi.Status)
		assert.Zero(t, emi.FineAmount)
		assert.False(t, emi.FineWaived)
		assert.NotEqual(t, uuid.Nil, emi.ID)
	}
}

func TestGenerateSchedule_YearRollover(t *testing.T) {
	purchase := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)

	emis := GenerateSchedule(uuid.New(), purchase, 10, 4, 50000, time.Now())

	require.Len(t, emis, 4)
	assert.Equal(t, time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC), emis[0].DueDate)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), emis[1].DueDate)
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), emis[2].DueDate)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), emis[3].DueDate)
}

func TestGenerateSchedule_DueDayBeforePurchaseDay(t *testing.T) {
	// The first installment still lands in the month after purchase even
	// when the due day has already passed within the purchase month.
	purchase := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

	emis := GenerateSchedule(uuid.New(), purchase, 1, 2, 75000, time.Now())

	require.Len(t, emis, 2)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), emis[0].DueDate)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), emis[1].DueDate)
}

func TestCreateCustomerAdminOnly(t *testing.T) {
	svc, mock := newCustomerServiceMock(t, nil)

	input := model.CreateCustomerInput{
		RetailerID:    uuid.New(),
		CustomerName:  "Ramesh Kumar",
		Mobile:        "9876543210",
		IMEI:          "123456789012345",
		PurchaseValue: 1500000,
		DownPayment:   300000,
		PurchaseDate:  "2026-01-15",
		EMIDueDay:     5,
		EMIAmount:     100000,
		EMITenure:     12,
	}

	_, err := svc.Create(context.Background(),
		model.Caller{UserID: uuid.New(), Role: model.RoleRetailer}, input)
	assert.ErrorIs(t, err, model.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelfLookupMissIsUnauthorized(t *testing.T) {
	pgp, err := crypto.NewPGPManager(
		filepath.Join(t.TempDir(), "key.asc"),
		[]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	svc, mock := newCustomerServiceMock(t, pgp)
	mock.ExpectQuery("SELECT (.+) FROM customers WHERE aadhaar_digest").
		WillReturnError(sql.ErrNoRows)

	_, err = svc.SelfLookup(context.Background(), model.SelfLookupInput{
		Aadhaar: "123412341234",
		Mobile:  "9876543210",
	})
	assert.ErrorIs(t, err, model.ErrAuth)
	assert.NotErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchQueryClassification(t *testing.T) {
	assert.True(t, imeiSearchable("123456789012345"))
	assert.False(t, imeiSearchable("12345678901234"))
	assert.False(t, imeiSearchable("12345678901234a"))

	assert.True(t, aadhaarSearchable("123412341234"))
	assert.False(t, aadhaarSearchable("1234123412"))
	assert.False(t, aadhaarSearchable("Ramesh Kumar"))
}
