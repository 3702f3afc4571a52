package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

// totalTolerance is how far the caller-supplied total may drift from the
// server-recomputed one before the submission is rejected. Covers rounding
// in clients that render rupees; server amounts are always authoritative.
const totalTolerance = 100 // paise

type PaymentService struct {
	paymentRepo  *repository.PaymentRepository
	emiRepo      *repository.EMIRepository
	customerRepo *repository.CustomerRepository
	retailerRepo *repository.RetailerRepository
	auditor      *Auditor
	emailSender  *EmailSender
	logger       *logrus.Logger
}

func NewPaymentService(
	paymentRepo *repository.PaymentRepository,
	emiRepo *repository.EMIRepository,
	customerRepo *repository.CustomerRepository,
	retailerRepo *repository.RetailerRepository,
	auditor *Auditor,
	emailSender *EmailSender,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		emiRepo:      emiRepo,
		customerRepo: customerRepo,
		retailerRepo: retailerRepo,
		auditor:      auditor,
		emailSender:  emailSender,
		logger:       logger,
	}
}

// recomputedAmounts is what the server decides the submission is worth,
// derived only from stored state.
type recomputedAmounts struct {
	TotalEMI       int64
	Fine           int64
	FirstEMICharge int64
	Total          int64
}

func (s *PaymentService) recompute(customer *model.Customer, emis []model.EMISchedule, now time.Time) recomputedAmounts {
	today := now.Truncate(24 * time.Hour)
	var amounts recomputedAmounts
	for i := range emis {
		amounts.TotalEMI += emis[i].Amount
		// Fines are collected only on rows that are actually late.
		if !emis[i].FineWaived && emis[i].DueDate.Before(today) {
			amounts.Fine += emis[i].FineAmount
		}
	}
	if customer.FirstEMIChargePaidAt == nil {
		amounts.FirstEMICharge = customer.FirstEMIChargeAmount
	}
	amounts.Total = amounts.TotalEMI + amounts.Fine + amounts.FirstEMICharge
	return amounts
}

func reconcileTotal(callerTotal, serverTotal int64) error {
	diff := callerTotal - serverTotal
	if diff < 0 {
		diff = -diff
	}
	if diff > totalTolerance {
		return model.Validationf("submitted total %s does not match computed total %s",
			formatINR(callerTotal), formatINR(serverTotal))
	}
	return nil
}

// Submit records a retailer payment submission: the request row, its item
// rows and the PENDING_APPROVAL lock on every target EMI land in one
// transaction, so a row can never sit in two open requests.
func (s *PaymentService) Submit(ctx context.Context, caller model.Caller, input model.SubmitPaymentInput) (*model.PaymentRequest, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if caller.Role != model.RoleRetailer {
		return nil, model.Forbiddenf("only retailers submit payment requests")
	}

	retailer, err := s.retailerRepo.GetByAuthUserID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve retailer: %w", err)
	}
	if !retailer.IsActive {
		return nil, model.Forbiddenf("retailer account is deactivated")
	}
	if subtle.ConstantTimeCompare([]byte(retailer.RetailPIN), []byte(input.RetailPIN)) != 1 {
		s.logger.WithField("retailer_id", retailer.ID).Warn("Retail PIN mismatch on payment submission")
		return nil, model.Forbiddenf("incorrect retail PIN")
	}

	customer, err := s.customerRepo.GetByID(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.RetailerID != retailer.ID {
		return nil, model.Forbiddenf("customer belongs to another retailer")
	}
	if customer.Status == model.CustomerComplete {
		return nil, model.Conflictf("customer account is already complete")
	}

	emis, err := s.emiRepo.GetByIDsForCustomer(ctx, input.EMIIDs, customer.ID)
	if err != nil {
		return nil, err
	}

	amounts := s.recompute(customer, emis, time.Now())
	if err := reconcileTotal(input.TotalAmount, amounts.Total); err != nil {
		return nil, err
	}

	now := time.Now()
	request := &model.PaymentRequest{
		ID:                   uuid.New(),
		CustomerID:           customer.ID,
		RetailerID:           retailer.ID,
		SubmittedBy:          caller.UserID,
		Status:               model.RequestPending,
		Mode:                 input.Mode,
		TotalEMIAmount:       amounts.TotalEMI,
		FineAmount:           amounts.Fine,
		FirstEMIChargeAmount: amounts.FirstEMICharge,
		TotalAmount:          amounts.Total,
		Notes:                input.Notes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	items := make([]model.PaymentRequestItem, 0, len(emis))
	for i := range emis {
		request.SelectedEMINos = append(request.SelectedEMINos, int64(emis[i].EMINo))
		items = append(items, model.PaymentRequestItem{
			ID:               uuid.New(),
			PaymentRequestID: request.ID,
			EMIID:            emis[i].ID,
			EMINo:            emis[i].EMINo,
			Amount:           emis[i].Amount,
		})
	}

	tx, err := s.paymentRepo.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.paymentRepo.CreateTx(ctx, tx, request); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.CreateItemsTx(ctx, tx, items); err != nil {
		return nil, err
	}
	if err := s.emiRepo.MarkPendingApprovalTx(ctx, tx, input.EMIIDs, customer.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment submission: %w", err)
	}
	request.Items = items

	s.logger.WithFields(logrus.Fields{
		"request_id":  request.ID,
		"customer_id": customer.ID,
		"retailer_id": retailer.ID,
		"total":       formatINR(request.TotalAmount),
	}).Info("Payment request submitted")

	return request, nil
}

// Approve finalizes a pending request: request PENDING -> APPROVED, every
// target EMI PENDING_APPROVAL -> APPROVED, first-EMI charge stamped once.
// When two admins race on the same request the status guards let exactly
// one transaction win.
func (s *PaymentService) Approve(ctx context.Context, caller model.Caller, input model.ApprovePaymentInput) (*model.PaymentRequest, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator approves payments")
	}

	request, err := s.paymentRepo.GetByID(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.RequestPending {
		return nil, model.Conflictf("request is not pending")
	}

	emiIDs := make([]uuid.UUID, len(request.Items))
	for i, item := range request.Items {
		emiIDs[i] = item.EMIID
	}

	now := time.Now()
	notes := mergeRemark(request.Notes, input.Remark)

	tx, err := s.paymentRepo.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.paymentRepo.ApproveTx(ctx, tx, request.ID, caller.UserID, now, notes); err != nil {
		return nil, err
	}
	if err := s.emiRepo.ApproveTx(ctx, tx, emiIDs, model.EMIPendingApproval, request.Mode, caller.UserID, now); err != nil {
		return nil, err
	}
	if request.FirstEMIChargeAmount > 0 {
		if err := s.customerRepo.StampFirstChargePaidTx(ctx, tx, request.CustomerID, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment approval: %w", err)
	}

	s.auditor.Record(ctx, caller, model.ActionApprovePayment, "payment_requests", request.ID.String(),
		map[string]interface{}{"status": model.RequestPending},
		map[string]interface{}{"status": model.RequestApproved, "total_amount": request.TotalAmount},
		input.Remark)

	s.notifyRetailer(request.RetailerID, func(email string) error {
		return s.emailSender.SendPaymentApprovedNotification(email, request.TotalAmount, request.ID)
	})

	return s.paymentRepo.GetByID(ctx, request.ID)
}

// Reject returns a pending request to the retailer: request PENDING ->
// REJECTED and every target EMI reverts to UNPAID so it becomes payable
// again. Fines flagged before submission stay in place.
func (s *PaymentService) Reject(ctx context.Context, caller model.Caller, input model.RejectPaymentInput) (*model.PaymentRequest, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator rejects payments")
	}

	request, err := s.paymentRepo.GetByID(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.RequestPending {
		return nil, model.Conflictf("request is not pending")
	}

	emiIDs := make([]uuid.UUID, len(request.Items))
	for i, item := range request.Items {
		emiIDs[i] = item.EMIID
	}

	now := time.Now()

	tx, err := s.paymentRepo.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.paymentRepo.RejectTx(ctx, tx, request.ID, caller.UserID, now, input.Reason); err != nil {
		return nil, err
	}
	if err := s.emiRepo.RevertToUnpaidTx(ctx, tx, emiIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment rejection: %w", err)
	}

	s.auditor.Record(ctx, caller, model.ActionRejectPayment, "payment_requests", request.ID.String(),
		map[string]interface{}{"status": model.RequestPending},
		map[string]interface{}{"status": model.RequestRejected, "rejection_reason": input.Reason},
		input.Reason)

	s.notifyRetailer(request.RetailerID, func(email string) error {
		return s.emailSender.SendPaymentRejectedNotification(email, request.ID, input.Reason)
	})

	return s.paymentRepo.GetByID(ctx, request.ID)
}

// DirectApprove is the admin shortcut that skips the queue: the request is
// born APPROVED and the target EMIs go straight from UNPAID to APPROVED,
// all in one transaction.
func (s *PaymentService) DirectApprove(ctx context.Context, caller model.Caller, input model.DirectPaymentInput) (*model.PaymentRequest, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator records direct payments")
	}

	customer, err := s.customerRepo.GetByID(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.Status == model.CustomerComplete {
		return nil, model.Conflictf("customer account is already complete")
	}

	emis, err := s.emiRepo.GetByIDsForCustomer(ctx, input.EMIIDs, customer.ID)
	if err != nil {
		return nil, err
	}

	amounts := s.recompute(customer, emis, time.Now())
	if err := reconcileTotal(input.TotalAmount, amounts.Total); err != nil {
		return nil, err
	}

	now := time.Now()
	adminID := caller.UserID
	request := &model.PaymentRequest{
		ID:                   uuid.New(),
		CustomerID:           customer.ID,
		RetailerID:           customer.RetailerID,
		SubmittedBy:          caller.UserID,
		Status:               model.RequestApproved,
		Mode:                 input.Mode,
		TotalEMIAmount:       amounts.TotalEMI,
		FineAmount:           amounts.Fine,
		FirstEMIChargeAmount: amounts.FirstEMICharge,
		TotalAmount:          amounts.Total,
		Notes:                input.Notes,
		ApprovedBy:           &adminID,
		ApprovedAt:           &now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	items := make([]model.PaymentRequestItem, 0, len(emis))
	for i := range emis {
		request.SelectedEMINos = append(request.SelectedEMINos, int64(emis[i].EMINo))
		items = append(items, model.PaymentRequestItem{
			ID:               uuid.New(),
			PaymentRequestID: request.ID,
			EMIID:            emis[i].ID,
			EMINo:            emis[i].EMINo,
			Amount:           emis[i].Amount,
		})
	}

	tx, err := s.paymentRepo.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.paymentRepo.CreateTx(ctx, tx, request); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.CreateItemsTx(ctx, tx, items); err != nil {
		return nil, err
	}
	if err := s.emiRepo.ApproveTx(ctx, tx, input.EMIIDs, model.EMIUnpaid, input.Mode, caller.UserID, now); err != nil {
		return nil, err
	}
	if amounts.FirstEMICharge > 0 {
		if err := s.customerRepo.StampFirstChargePaidTx(ctx, tx, customer.ID, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit direct payment: %w", err)
	}
	request.Items = items

	s.auditor.Record(ctx, caller, model.ActionDirectPayment, "payment_requests", request.ID.String(),
		nil,
		map[string]interface{}{"status": model.RequestApproved, "total_amount": request.TotalAmount},
		input.Notes)

	s.logger.WithFields(logrus.Fields{
		"request_id":  request.ID,
		"customer_id": customer.ID,
		"total":       formatINR(request.TotalAmount),
	}).Info("Direct payment recorded")

	return request, nil
}

func (s *PaymentService) GetRequest(ctx context.Context, caller model.Caller, id uuid.UUID) (*model.PaymentRequest, error) {
	request, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		retailer, err := s.retailerRepo.GetByAuthUserID(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve retailer: %w", err)
		}
		if request.RetailerID != retailer.ID {
			return nil, model.Forbiddenf("request belongs to another retailer")
		}
	}
	return request, nil
}

func (s *PaymentService) ListPending(ctx context.Context, caller model.Caller) ([]model.PaymentRequest, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator views the approval queue")
	}
	return s.paymentRepo.ListPending(ctx)
}

func (s *PaymentService) ListByCustomer(ctx context.Context, caller model.Caller, customerID uuid.UUID) ([]model.PaymentRequest, error) {
	if !caller.IsAdmin() {
		customer, err := s.customerRepo.GetByID(ctx, customerID)
		if err != nil {
			return nil, err
		}
		retailer, err := s.retailerRepo.GetByAuthUserID(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve retailer: %w", err)
		}
		if customer.RetailerID != retailer.ID {
			return nil, model.Forbiddenf("customer belongs to another retailer")
		}
	}
	return s.paymentRepo.ListByCustomer(ctx, customerID)
}

// notifyRetailer emails best-effort after commit, the same way statement
// delivery works elsewhere: a mail failure never fails the transition.
func (s *PaymentService) notifyRetailer(retailerID uuid.UUID, send func(email string) error) {
	go func() {
		retailer, err := s.retailerRepo.GetByID(context.Background(), retailerID)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to load retailer for notification")
			return
		}
		if retailer.Email == "" {
			return
		}
		if err := send(retailer.Email); err != nil {
			s.logger.WithError(err).Warn("Failed to send payment notification email")
		}
	}()
}

func mergeRemark(notes, remark string) string {
	if remark == "" {
		return notes
	}
	if notes == "" {
		return "Remark: " + remark
	}
	return notes + "\nRemark: " + remark
}
