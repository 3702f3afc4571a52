package service

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
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newPaymentServiceMock(t *testing.T) (*PaymentService, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := quietLogger()
	paymentRepo := repository.NewPaymentRepository(mockDB, logger)
	emiRepo := repository.NewEMIRepository(mockDB, logger)
	customerRepo := repository.NewCustomerRepository(mockDB, logger)
	retailerRepo := repository.NewRetailerRepository(mockDB, logger)
	auditRepo := repository.NewAuditRepository(mockDB, logger)

	svc := NewPaymentService(
		paymentRepo, emiRepo, customerRepo, retailerRepo,
		NewAuditor(auditRepo, logger), NewEmailSender(logger), logger,
	)
	return svc, mock, mockDB
}

func retailerRow(rt *model.Retailer) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "auth_user_id", "name", "username", "email", "retail_pin",
		"is_active", "created_at", "updated_at",
	}).AddRow(rt.ID, rt.AuthUserID, rt.Name, rt.Username, rt.Email, rt.RetailPIN,
		rt.IsActive, rt.CreatedAt, rt.UpdatedAt)
}

func customerRow(c *model.Customer) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "retailer_id", "customer_name", "father_name", "aadhaar_enc", "aadhaar_digest",
		"voter_id", "address", "landmark", "mobile", "alternate_number_1", "alternate_number_2",
		"model_no", "imei", "box_no", "purchase_value", "down_payment", "disburse_amount",
		"purchase_date", "emi_due_day", "emi_amount", "emi_tenure",
		"first_emi_charge_amount", "first_emi_charge_paid_at",
		"status", "completion_remark", "completion_date", "created_at", "updated_at",
	}).AddRow(
		c.ID, c.RetailerID, c.CustomerName, c.FatherName, c.AadhaarEnc, c.AadhaarDigest,
		c.VoterID, c.Address, c.Landmark, c.Mobile, c.AlternateNumber1, c.AlternateNumber2,
		c.ModelNo, c.IMEI, c.BoxNo, c.PurchaseValue, c.DownPayment, c.DisburseAmount,
		c.PurchaseDate, c.EMIDueDay, c.EMIAmount, c.EMITenure,
		c.FirstEMIChargeAmount, c.FirstEMIChargePaidAt,
		c.Status, c.CompletionRemark, c.CompletionDate, c.CreatedAt, c.UpdatedAt,
	)
}

func emiRows(emis []model.EMISchedule) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "customer_id", "emi_no", "due_date", "amount", "status", "paid_at",
		"mode", "approved_by", "fine_amount", "fine_waived", "created_at", "updated_at",
	})
	for _, e := range emis {
		rows.AddRow(e.ID, e.CustomerID, e.EMINo, e.DueDate, e.Amount, e.Status, e.PaidAt,
			string(e.Mode), nil, e.FineAmount, e.FineWaived, e.CreatedAt, e.UpdatedAt)
	}
	return rows
}

type submitFixture struct {
	retailer *model.Retailer
	customer *model.Customer
	emis     []model.EMISchedule
	caller   model.Caller
}

func newSubmitFixture() submitFixture {
	now := time.Now()
	authUserID := uuid.New()
	retailer := &model.Retailer{
		ID:         uuid.New(),
		AuthUserID: authUserID,
		Name:       "Star Mobiles",
		Username:   "starmobiles",
		RetailPIN:  "4321",
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	customer := &model.Customer{
		ID:                   uuid.New(),
		RetailerID:           retailer.ID,
		CustomerName:         "Ramesh Kumar",
		Mobile:               "9876543210",
		IMEI:                 "123456789012345",
		PurchaseDate:         time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		EMIDueDay:            5,
		EMIAmount:            100000,
		EMITenure:            6,
		FirstEMIChargeAmount: 20000,
		Status:               model.CustomerRunning,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	emis := []model.EMISchedule{
		{
			ID: uuid.New(), CustomerID: customer.ID, EMINo: 1,
			DueDate: time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
			Amount:  100000, Status: model.EMIUnpaid, FineAmount: 45000,
		},
		{
			ID: uuid.New(), CustomerID: customer.ID, EMINo: 2,
			DueDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
			Amount:  100000, Status: model.EMIUnpaid,
		},
	}
	return submitFixture{
		retailer: retailer,
		customer: customer,
		emis:     emis,
		caller:   model.Caller{UserID: authUserID, Role: model.RoleRetailer},
	}
}

func (f submitFixture) input() model.SubmitPaymentInput {
	return model.SubmitPaymentInput{
		CustomerID:           f.customer.ID,
		EMIIDs:               []uuid.UUID{f.emis[0].ID, f.emis[1].ID},
		Mode:                 model.ModeUPI,
		RetailPIN:            "4321",
		TotalEMIAmount:       200000,
		FineAmount:           45000,
		FirstEMIChargeAmount: 20000,
		TotalAmount:          265000,
	}
}

func TestPaymentSubmit(t *testing.T) {
	t.Run("happy path recomputes totals and locks rows", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()

		mock.ExpectQuery("SELECT (.+) FROM retailers WHERE auth_user_id").
			WillReturnRows(retailerRow(f.retailer))
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id").
			WillReturnRows(customerRow(f.customer))
		mock.ExpectQuery("SELECT (.+) FROM emi_schedule WHERE id = ANY").
			WillReturnRows(emiRows(f.emis))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payment_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO payment_request_items").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO payment_request_items").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE emi_schedule SET status = 'PENDING_APPROVAL'").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		request, err := svc.Submit(context.Background(), f.caller, f.input())

		require.NoError(t, err)
		assert.Equal(t, model.RequestPending, request.Status)
		assert.Equal(t, int64(200000), request.TotalEMIAmount)
		assert.Equal(t, int64(45000), request.FineAmount)
		assert.Equal(t, int64(20000), request.FirstEMIChargeAmount)
		assert.Equal(t, int64(265000), request.TotalAmount)
		assert.Equal(t, []int64{1, 2}, request.SelectedEMINos)
		assert.Len(t, request.Items, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fine on a not yet due row is not charged", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()
		f.emis[0].DueDate = time.Now().AddDate(0, 1, 0)

		mock.ExpectQuery("SELECT (.+) FROM retailers WHERE auth_user_id").
			WillReturnRows(retailerRow(f.retailer))
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id").
			WillReturnRows(customerRow(f.customer))
		mock.ExpectQuery("SELECT (.+) FROM emi_schedule WHERE id = ANY").
			WillReturnRows(emiRows(f.emis))

		// The caller total still includes the 45000 fine, so the
		// recomputed total comes out 45000 short and the submission
		// is rejected before any write.
		_, err := svc.Submit(context.Background(), f.caller, f.input())

		assert.ErrorIs(t, err, model.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong PIN is forbidden and writes nothing", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()

		mock.ExpectQuery("SELECT (.+) FROM retailers WHERE auth_user_id").
			WillReturnRows(retailerRow(f.retailer))

		input := f.input()
		input.RetailPIN = "9999"
		_, err := svc.Submit(context.Background(), f.caller, input)

		assert.ErrorIs(t, err, model.ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deactivated retailer is forbidden", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()
		f.retailer.IsActive = false

		mock.ExpectQuery("SELECT (.+) FROM retailers WHERE auth_user_id").
			WillReturnRows(retailerRow(f.retailer))

		_, err := svc.Submit(context.Background(), f.caller, f.input())

		assert.ErrorIs(t, err, model.ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin caller cannot submit", func(t *testing.T) {
		svc, _, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()

		_, err := svc.Submit(context.Background(), model.Caller{UserID: uuid.New(), Role: model.RoleSuperAdmin}, f.input())

		assert.ErrorIs(t, err, model.ErrForbidden)
	})

	t.Run("someone else's customer is forbidden", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()
		f.customer.RetailerID = uuid.New()

		mock.ExpectQuery("SELECT (.+) FROM retailers WHERE auth_user_id").
			WillReturnRows(retailerRow(f.retailer))
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id").
			WillReturnRows(customerRow(f.customer))

		_, err := svc.Submit(context.Background(), f.caller, f.input())

		assert.ErrorIs(t, err, model.ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mismatched total is rejected", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()

		mock.ExpectQuery("SELECT (.+) FROM retailers WHERE auth_user_id").
			WillReturnRows(retailerRow(f.retailer))
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id").
			WillReturnRows(customerRow(f.customer))
		mock.ExpectQuery("SELECT (.+) FROM emi_schedule WHERE id = ANY").
			WillReturnRows(emiRows(f.emis))

		input := f.input()
		input.TotalAmount = 165000 // stale: misses the second EMI
		_, err := svc.Submit(context.Background(), f.caller, input)

		assert.ErrorIs(t, err, model.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locked row rolls the whole submission back", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()

		mock.ExpectQuery("SELECT (.+) FROM retailers WHERE auth_user_id").
			WillReturnRows(retailerRow(f.retailer))
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id").
			WillReturnRows(customerRow(f.customer))
		mock.ExpectQuery("SELECT (.+) FROM emi_schedule WHERE id = ANY").
			WillReturnRows(emiRows(f.emis))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payment_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO payment_request_items").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO payment_request_items").
			WillReturnResult(sqlmock.NewResult(0, 1))
		// A concurrent submission already locked one row.
		mock.ExpectExec("UPDATE emi_schedule SET status = 'PENDING_APPROVAL'").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		_, err := svc.Submit(context.Background(), f.caller, f.input())

		assert.ErrorIs(t, err, model.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func requestRow(p *model.PaymentRequest) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "customer_id", "retailer_id", "submitted_by", "status", "mode",
		"total_emi_amount", "fine_amount", "first_emi_charge_amount", "total_amount",
		"notes", "rejection_reason", "approved_by", "approved_at", "rejected_by", "rejected_at",
		"selected_emi_nos", "created_at", "updated_at",
	}).AddRow(
		p.ID, p.CustomerID, p.RetailerID, p.SubmittedBy, p.Status, string(p.Mode),
		p.TotalEMIAmount, p.FineAmount, p.FirstEMIChargeAmount, p.TotalAmount,
		p.Notes, p.RejectionReason, nil, p.ApprovedAt, nil, p.RejectedAt,
		"{1}", p.CreatedAt, p.UpdatedAt,
	)
}

func TestPaymentApprove(t *testing.T) {
	adminCaller := model.Caller{UserID: uuid.New(), Role: model.RoleSuperAdmin}

	t.Run("retailer cannot approve", func(t *testing.T) {
		svc, _, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()

		_, err := svc.Approve(context.Background(),
			model.Caller{UserID: uuid.New(), Role: model.RoleRetailer},
			model.ApprovePaymentInput{RequestID: uuid.New()})

		assert.ErrorIs(t, err, model.ErrForbidden)
	})

	t.Run("already decided request conflicts", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()

		request := &model.PaymentRequest{
			ID:         uuid.New(),
			CustomerID: uuid.New(),
			RetailerID: uuid.New(),
			Status:     model.RequestApproved,
			Mode:       model.ModeCash,
		}
		mock.ExpectQuery("SELECT (.+) FROM payment_requests WHERE id").
			WillReturnRows(requestRow(request))
		mock.ExpectQuery("SELECT (.+) FROM payment_request_items").
			WillReturnRows(sqlmock.NewRows([]string{"id", "payment_request_id", "emi_id", "emi_no", "amount"}))

		_, err := svc.Approve(context.Background(), adminCaller,
			model.ApprovePaymentInput{RequestID: request.ID})

		assert.ErrorIs(t, err, model.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("losing an EMI status race rolls back", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()

		request := &model.PaymentRequest{
			ID:          uuid.New(),
			CustomerID:  uuid.New(),
			RetailerID:  uuid.New(),
			SubmittedBy: uuid.New(),
			Status:      model.RequestPending,
			Mode:        model.ModeUPI,
			TotalAmount: 100000,
		}
		emiID := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM payment_requests WHERE id").
			WillReturnRows(requestRow(request))
		mock.ExpectQuery("SELECT (.+) FROM payment_request_items").
			WillReturnRows(sqlmock.NewRows([]string{"id", "payment_request_id", "emi_id", "emi_no", "amount"}).
				AddRow(uuid.New(), request.ID, emiID, 1, 100000))
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE payment_requests SET status = 'APPROVED'").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE emi_schedule SET status = 'APPROVED'").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := svc.Approve(context.Background(), adminCaller,
			model.ApprovePaymentInput{RequestID: request.ID})

		assert.ErrorIs(t, err, model.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentReject(t *testing.T) {
	adminCaller := model.Caller{UserID: uuid.New(), Role: model.RoleSuperAdmin}

	t.Run("reason is required", func(t *testing.T) {
		svc, _, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()

		_, err := svc.Reject(context.Background(), adminCaller,
			model.RejectPaymentInput{RequestID: uuid.New(), Reason: "  "})

		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("already decided request conflicts", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()

		request := &model.PaymentRequest{
			ID:         uuid.New(),
			CustomerID: uuid.New(),
			RetailerID: uuid.New(),
			Status:     model.RequestRejected,
			Mode:       model.ModeCash,
		}
		mock.ExpectQuery("SELECT (.+) FROM payment_requests WHERE id").
			WillReturnRows(requestRow(request))
		mock.ExpectQuery("SELECT (.+) FROM payment_request_items").
			WillReturnRows(sqlmock.NewRows([]string{"id", "payment_request_id", "emi_id", "emi_no", "amount"}))

		_, err := svc.Reject(context.Background(), adminCaller,
			model.RejectPaymentInput{RequestID: request.ID, Reason: "amount not received"})

		assert.ErrorIs(t, err, model.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentDirectApprove(t *testing.T) {
	adminCaller := model.Caller{UserID: uuid.New(), Role: model.RoleSuperAdmin}

	t.Run("retailer cannot record direct payments", func(t *testing.T) {
		svc, _, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()

		_, err := svc.DirectApprove(context.Background(), f.caller, model.DirectPaymentInput{
			CustomerID:  f.customer.ID,
			EMIIDs:      []uuid.UUID{f.emis[0].ID},
			Mode:        model.ModeCash,
			TotalAmount: 165000,
		})

		assert.ErrorIs(t, err, model.ErrForbidden)
	})

	t.Run("request is born approved", func(t *testing.T) {
		svc, mock, mockDB := newPaymentServiceMock(t)
		defer mockDB.Close()
		f := newSubmitFixture()
		paidAt := time.Now()
		f.customer.FirstEMIChargePaidAt = &paidAt
		emis := f.emis[:1]

		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id").
			WillReturnRows(customerRow(f.customer))
		mock.ExpectQuery("SELECT (.+) FROM emi_schedule WHERE id = ANY").
			WillReturnRows(emiRows(emis))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO payment_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO payment_request_items").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE emi_schedule SET status = 'APPROVED'").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectExec("INSERT INTO audit_log").
			WillReturnResult(sqlmock.NewResult(0, 1))

		request, err := svc.DirectApprove(context.Background(), adminCaller, model.DirectPaymentInput{
			CustomerID:  f.customer.ID,
			EMIIDs:      []uuid.UUID{emis[0].ID},
			Mode:        model.ModeCash,
			TotalAmount: 145000, // EMI + unwaived fine, charge already paid
		})

		require.NoError(t, err)
		assert.Equal(t, model.RequestApproved, request.Status)
		assert.Equal(t, int64(100000), request.TotalEMIAmount)
		assert.Equal(t, int64(45000), request.FineAmount)
		assert.Zero(t, request.FirstEMIChargeAmount)
		assert.Equal(t, int64(145000), request.TotalAmount)
		require.NotNil(t, request.ApprovedBy)
		assert.Equal(t, adminCaller.UserID, *request.ApprovedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconcileTotal(t *testing.T) {
	assert.NoError(t, reconcileTotal(165000, 165000))
	assert.NoError(t, reconcileTotal(165050, 165000))
	assert.NoError(t, reconcileTotal(164900, 165000))
	assert.ErrorIs(t, reconcileTotal(165101, 165000), model.ErrValidation)
	assert.ErrorIs(t, reconcileTotal(100000, 165000), model.ErrValidation)
}

func TestMergeRemark(t *testing.T) {
	assert.Equal(t, "", mergeRemark("", ""))
	assert.Equal(t, "collected at shop", mergeRemark("collected at shop", ""))
	assert.Equal(t, "Remark: verified", mergeRemark("", "verified"))
	assert.Equal(t, "collected at shop\nRemark: verified", mergeRemark("collected at shop", "verified"))
}
