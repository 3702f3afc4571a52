package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/crypto"
	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

type CustomerService struct {
	customerRepo *repository.CustomerRepository
	emiRepo      *repository.EMIRepository
	retailerRepo *repository.RetailerRepository
	pgp          *crypto.PGPManager
	auditor      *Auditor
	logger       *logrus.Logger
}

func NewCustomerService(
	customerRepo *repository.CustomerRepository,
	emiRepo *repository.EMIRepository,
	retailerRepo *repository.RetailerRepository,
	pgp *crypto.PGPManager,
	auditor *Auditor,
	logger *logrus.Logger,
) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
		emiRepo:      emiRepo,
		retailerRepo: retailerRepo,
		pgp:          pgp,
		auditor:      auditor,
		logger:       logger,
	}
}

// CustomerDetail is the portal view of one account: the record, the full
// schedule and the computed dues.
type CustomerDetail struct {
	Customer  *model.Customer     `json:"customer"`
	EMIs      []model.EMISchedule `json:"emis"`
	Breakdown model.DueBreakdown  `json:"breakdown"`
}

// GenerateSchedule builds the installment rows for a new account: EMI i
// falls due on emi_due_day of the i-th month after the purchase month.
// emi_due_day is capped at 28 upstream so the day exists in every month.
func GenerateSchedule(customerID uuid.UUID, purchaseDate time.Time, dueDay, tenure int, amount int64, now time.Time) []model.EMISchedule {
	emis := make([]model.EMISchedule, 0, tenure)
	year, month, _ := purchaseDate.Date()
	for i := 1; i <= tenure; i++ {
		emis = append(emis, model.EMISchedule{
			ID:         uuid.New(),
			CustomerID: customerID,
			EMINo:      i,
			DueDate:    time.Date(year, month+time.Month(i), dueDay, 0, 0, 0, 0, time.UTC),
			Amount:     amount,
			Status:     model.EMIUnpaid,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return emis
}

// Create registers a customer and generates the full EMI schedule in one
// transaction. Only the administrator registers customers; the retailer is
// assigned through input.RetailerID.
func (s *CustomerService) Create(ctx context.Context, caller model.Caller, input model.CreateCustomerInput) (*CustomerDetail, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator registers customers")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	purchaseDate, _ := time.Parse("2006-01-02", input.PurchaseDate)
	disburse := input.DisburseAmount
	if disburse == 0 {
		disburse = input.PurchaseValue - input.DownPayment
	}

	now := time.Now()
	customer := &model.Customer{
		ID:                   uuid.New(),
		RetailerID:           input.RetailerID,
		CustomerName:         strings.TrimSpace(input.CustomerName),
		FatherName:           input.FatherName,
		VoterID:              input.VoterID,
		Address:              input.Address,
		Landmark:             input.Landmark,
		Mobile:               input.Mobile,
		AlternateNumber1:     input.AlternateNumber1,
		AlternateNumber2:     input.AlternateNumber2,
		ModelNo:              input.ModelNo,
		IMEI:                 input.IMEI,
		BoxNo:                input.BoxNo,
		PurchaseValue:        input.PurchaseValue,
		DownPayment:          input.DownPayment,
		DisburseAmount:       disburse,
		PurchaseDate:         purchaseDate,
		EMIDueDay:            input.EMIDueDay,
		EMIAmount:            input.EMIAmount,
		EMITenure:            input.EMITenure,
		FirstEMIChargeAmount: input.FirstEMIChargeAmount,
		Status:               model.CustomerRunning,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if input.Aadhaar != "" {
		enc, err := s.pgp.Encrypt(input.Aadhaar)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt Aadhaar: %w", err)
		}
		customer.AadhaarEnc = enc
		customer.AadhaarDigest = s.pgp.Digest(input.Aadhaar)
	}

	emis := GenerateSchedule(customer.ID, purchaseDate, input.EMIDueDay, input.EMITenure, input.EMIAmount, now)

	tx, err := s.customerRepo.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.customerRepo.CreateTx(ctx, tx, customer); err != nil {
		return nil, err
	}
	for i := range emis {
		if err := s.emiRepo.CreateTx(ctx, tx, &emis[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit customer creation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id": customer.ID,
		"retailer_id": customer.RetailerID,
		"tenure":      customer.EMITenure,
	}).Info("Customer registered with EMI schedule")

	customer.Aadhaar = input.Aadhaar
	return &CustomerDetail{
		Customer:  customer,
		EMIs:      emis,
		Breakdown: ComputeDueBreakdown(customer, emis, now),
	}, nil
}

// Get loads the portal view of one account. Retailers only see their own
// customers; the decrypted Aadhaar is admin-only.
func (s *CustomerService) Get(ctx context.Context, caller model.Caller, id uuid.UUID) (*CustomerDetail, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeAccess(ctx, caller, customer); err != nil {
		return nil, err
	}

	if caller.IsAdmin() && customer.AadhaarEnc != "" {
		aadhaar, err := s.pgp.Decrypt(customer.AadhaarEnc)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to decrypt Aadhaar")
		} else {
			customer.Aadhaar = aadhaar
		}
	}

	emis, err := s.emiRepo.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	return &CustomerDetail{
		Customer:  customer,
		EMIs:      emis,
		Breakdown: ComputeDueBreakdown(customer, emis, time.Now()),
	}, nil
}

// Search resolves a single field to customers: full IMEI, full Aadhaar (via
// digest) or a name fragment. Retailer results are filtered to their own
// accounts.
func (s *CustomerService) Search(ctx context.Context, caller model.Caller, query string) ([]model.Customer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.Validationf("search query is required")
	}

	var customers []model.Customer
	switch {
	case imeiSearchable(query):
		customer, err := s.customerRepo.GetByIMEI(ctx, query)
		if err == nil {
			customers = []model.Customer{*customer}
		} else if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
	case aadhaarSearchable(query):
		customer, err := s.customerRepo.GetByAadhaarDigest(ctx, s.pgp.Digest(query))
		if err == nil {
			customers = []model.Customer{*customer}
		} else if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
	default:
		var err error
		customers, err = s.customerRepo.SearchByName(ctx, query, 50)
		if err != nil {
			return nil, err
		}
	}

	if caller.Role == model.RoleRetailer {
		retailer, err := s.retailerRepo.GetByAuthUserID(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve retailer: %w", err)
		}
		filtered := customers[:0]
		for _, c := range customers {
			if c.RetailerID == retailer.ID {
				filtered = append(filtered, c)
			}
		}
		customers = filtered
	}

	return customers, nil
}

func (s *CustomerService) List(ctx context.Context, caller model.Caller) ([]model.Customer, error) {
	if caller.IsAdmin() {
		return s.customerRepo.ListAll(ctx)
	}
	retailer, err := s.retailerRepo.GetByAuthUserID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve retailer: %w", err)
	}
	return s.customerRepo.ListByRetailer(ctx, retailer.ID)
}

func (s *CustomerService) Update(ctx context.Context, caller model.Caller, input model.UpdateCustomerInput) (*model.Customer, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator edits customer records")
	}

	customer, err := s.customerRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.RetailerID != nil {
		customer.RetailerID = *input.RetailerID
	}
	if input.CustomerName != nil {
		customer.CustomerName = strings.TrimSpace(*input.CustomerName)
	}
	if input.FatherName != nil {
		customer.FatherName = *input.FatherName
	}
	if input.VoterID != nil {
		customer.VoterID = *input.VoterID
	}
	if input.Address != nil {
		customer.Address = *input.Address
	}
	if input.Landmark != nil {
		customer.Landmark = *input.Landmark
	}
	if input.Mobile != nil {
		customer.Mobile = *input.Mobile
	}
	if input.AlternateNumber1 != nil {
		customer.AlternateNumber1 = *input.AlternateNumber1
	}
	if input.AlternateNumber2 != nil {
		customer.AlternateNumber2 = *input.AlternateNumber2
	}
	if input.ModelNo != nil {
		customer.ModelNo = *input.ModelNo
	}
	if input.BoxNo != nil {
		customer.BoxNo = *input.BoxNo
	}
	if input.FirstEMIChargeAmount != nil {
		customer.FirstEMIChargeAmount = *input.FirstEMIChargeAmount
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, err
	}
	return s.customerRepo.GetByID(ctx, customer.ID)
}

// MarkComplete closes out an account. One-way: a COMPLETE customer never
// returns to RUNNING.
func (s *CustomerService) MarkComplete(ctx context.Context, caller model.Caller, input model.CompleteCustomerInput) (*model.Customer, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator completes accounts")
	}

	if err := s.customerRepo.MarkComplete(ctx, input.CustomerID, input.Remark, time.Now()); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, caller, model.ActionCompleteCustomer, "customers", input.CustomerID.String(),
		map[string]interface{}{"status": model.CustomerRunning},
		map[string]interface{}{"status": model.CustomerComplete},
		input.Remark)

	return s.customerRepo.GetByID(ctx, input.CustomerID)
}

// Delete removes a customer and everything hanging off it (items, requests,
// schedule) in one transaction. The reason survives in the audit log.
func (s *CustomerService) Delete(ctx context.Context, caller model.Caller, input model.DeleteCustomerInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return model.Forbiddenf("only the administrator deletes customers")
	}

	customer, err := s.customerRepo.GetByID(ctx, input.CustomerID)
	if err != nil {
		return err
	}

	tx, err := s.customerRepo.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.customerRepo.DeleteCascadeTx(ctx, tx, input.CustomerID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit customer deletion: %w", err)
	}

	s.auditor.Record(ctx, caller, model.ActionDeleteCustomer, "customers", input.CustomerID.String(),
		map[string]interface{}{
			"customer_name": customer.CustomerName,
			"imei":          customer.IMEI,
			"retailer_id":   customer.RetailerID.String(),
		},
		nil,
		input.Reason)

	return nil
}

// SelfLookupView is what a customer sees of their own account: no retailer
// internals, Aadhaar masked to the last four digits.
type SelfLookupView struct {
	CustomerName  string               `json:"customer_name"`
	MaskedAadhaar string               `json:"masked_aadhaar"`
	Mobile        string               `json:"mobile"`
	ModelNo       string               `json:"model_no,omitempty"`
	IMEI          string               `json:"imei"`
	Status        model.CustomerStatus `json:"status"`
	EMIAmount     int64                `json:"emi_amount"`
	EMITenure     int                  `json:"emi_tenure"`
	EMIs          []model.EMISchedule  `json:"emis"`
	Breakdown     model.DueBreakdown   `json:"breakdown"`
}

// SelfLookup is the unauthenticated customer view. Both numbers must match
// exactly; any miss collapses to the same unauthorized answer so the
// endpoint cannot be used to probe which number was wrong.
func (s *CustomerService) SelfLookup(ctx context.Context, input model.SelfLookupInput) (*SelfLookupView, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.FindByDigestAndMobile(ctx, s.pgp.Digest(input.Aadhaar), input.Mobile)
	if err != nil {
		return nil, fmt.Errorf("%w: no running account matches the given details", model.ErrAuth)
	}

	emis, err := s.emiRepo.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	return &SelfLookupView{
		CustomerName:  customer.CustomerName,
		MaskedAadhaar: "XXXXXXXX" + input.Aadhaar[8:],
		Mobile:        customer.Mobile,
		ModelNo:       customer.ModelNo,
		IMEI:          customer.IMEI,
		Status:        customer.Status,
		EMIAmount:     customer.EMIAmount,
		EMITenure:     customer.EMITenure,
		EMIs:          emis,
		Breakdown:     ComputeDueBreakdown(customer, emis, time.Now()),
	}, nil
}

func (s *CustomerService) authorizeAccess(ctx context.Context, caller model.Caller, customer *model.Customer) error {
	if caller.IsAdmin() {
		return nil
	}
	retailer, err := s.retailerRepo.GetByAuthUserID(ctx, caller.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve retailer: %w", err)
	}
	if customer.RetailerID != retailer.ID {
		return model.Forbiddenf("customer belongs to another retailer")
	}
	return nil
}

func imeiSearchable(q string) bool {
	return len(q) == 15 && allDigits(q)
}

func aadhaarSearchable(q string) bool {
	return len(q) == 12 && allDigits(q)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
