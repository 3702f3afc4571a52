package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

// ComputeDueBreakdown derives what a customer owes right now from the
// customer record and the full schedule. It is a pure function of its
// inputs so the same logic serves the portal, the self-lookup page and
// the payment recompute path.
func ComputeDueBreakdown(customer *model.Customer, emis []model.EMISchedule, now time.Time) model.DueBreakdown {
	b := model.DueBreakdown{
		CustomerID:     customer.ID,
		CustomerStatus: customer.Status,
	}

	if customer.Status == model.CustomerComplete {
		return b
	}

	var next *model.EMISchedule
	for i := range emis {
		if emis[i].Status != model.EMIApproved {
			next = &emis[i]
			break
		}
	}
	if next == nil {
		return b
	}

	emiNo := next.EMINo
	b.NextEMIID = &next.ID
	b.NextEMINo = &emiNo
	b.NextEMIAmount = next.Amount
	due := next.DueDate
	b.NextEMIDueDate = &due
	b.NextEMIStatus = next.Status

	today := now.Truncate(24 * time.Hour)
	overdue := next.DueDate.Before(today)
	b.IsOverdue = next.Status == model.EMIUnpaid && overdue

	// An UNPAID fine only bites once the row is actually late; a pending
	// request already priced its fine in at submission.
	if !next.FineWaived && next.FineAmount > 0 &&
		(next.Status == model.EMIPendingApproval || overdue) {
		b.FineDue = next.FineAmount
	}

	if customer.FirstEMIChargePaidAt == nil && customer.FirstEMIChargeAmount > 0 {
		b.FirstEMIChargeDue = customer.FirstEMIChargeAmount
	}

	b.TotalPayable = b.NextEMIAmount + b.FineDue + b.FirstEMIChargeDue
	b.PopupFirstEMICharge = next.EMINo == 1 && b.FirstEMIChargeDue > 0
	b.PopupFineDue = b.FineDue > 0

	return b
}

type BreakdownService struct {
	customerRepo *repository.CustomerRepository
	emiRepo      *repository.EMIRepository
	logger       *logrus.Logger
}

func NewBreakdownService(customerRepo *repository.CustomerRepository, emiRepo *repository.EMIRepository, logger *logrus.Logger) *BreakdownService {
	return &BreakdownService{
		customerRepo: customerRepo,
		emiRepo:      emiRepo,
		logger:       logger,
	}
}

func (s *BreakdownService) GetDueBreakdown(ctx context.Context, customerID uuid.UUID) (*model.DueBreakdown, error) {
	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	emis, err := s.emiRepo.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	b := ComputeDueBreakdown(customer, emis, time.Now())
	return &b, nil
}
