package service

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/crypto"
	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

// DocumentService renders the printable artifacts of the portal: payment
// receipts, the purchase bill and the closing no-objection certificate.
// Output is XML, rendered to print format downstream.
type DocumentService struct {
	customerRepo *repository.CustomerRepository
	emiRepo      *repository.EMIRepository
	paymentRepo  *repository.PaymentRepository
	retailerRepo *repository.RetailerRepository
	pgp          *crypto.PGPManager
	logger       *logrus.Logger
}

func NewDocumentService(
	customerRepo *repository.CustomerRepository,
	emiRepo *repository.EMIRepository,
	paymentRepo *repository.PaymentRepository,
	retailerRepo *repository.RetailerRepository,
	pgp *crypto.PGPManager,
	logger *logrus.Logger,
) *DocumentService {
	return &DocumentService{
		customerRepo: customerRepo,
		emiRepo:      emiRepo,
		paymentRepo:  paymentRepo,
		retailerRepo: retailerRepo,
		pgp:          pgp,
		logger:       logger,
	}
}

// PaymentReceipt renders the receipt for one approved payment request.
func (s *DocumentService) PaymentReceipt(ctx context.Context, caller model.Caller, requestID uuid.UUID) ([]byte, error) {
	request, err := s.paymentRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.RequestApproved {
		return nil, model.Conflictf("receipt is only available for approved payments")
	}

	customer, err := s.customerRepo.GetByID(ctx, request.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, customer); err != nil {
		return nil, err
	}

	retailer, err := s.retailerRepo.GetByID(ctx, request.RetailerID)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	receipt := doc.CreateElement("PaymentReceipt")
	receipt.CreateAttr("id", request.ID.String())
	receipt.CreateElement("IssuedAt").SetText(time.Now().Format(time.RFC3339))
	if request.ApprovedAt != nil {
		receipt.CreateElement("PaidAt").SetText(request.ApprovedAt.Format("2006-01-02"))
	}

	cust := receipt.CreateElement("Customer")
	cust.CreateElement("Name").SetText(customer.CustomerName)
	cust.CreateElement("Mobile").SetText(customer.Mobile)
	cust.CreateElement("Aadhaar").SetText(s.maskedAadhaar(customer))
	cust.CreateElement("IMEI").SetText(customer.IMEI)
	if customer.ModelNo != "" {
		cust.CreateElement("Model").SetText(customer.ModelNo)
	}

	receipt.CreateElement("Retailer").SetText(retailer.Name)
	receipt.CreateElement("Mode").SetText(string(request.Mode))

	lines := receipt.CreateElement("Lines")
	for _, item := range request.Items {
		line := lines.CreateElement("EMI")
		line.CreateAttr("no", fmt.Sprintf("%d", item.EMINo))
		line.SetText(formatINR(item.Amount))
	}
	if request.FineAmount > 0 {
		lines.CreateElement("LateFine").SetText(formatINR(request.FineAmount))
	}
	if request.FirstEMIChargeAmount > 0 {
		lines.CreateElement("FirstEMICharge").SetText(formatINR(request.FirstEMIChargeAmount))
	}
	receipt.CreateElement("Total").SetText(formatINR(request.TotalAmount))

	doc.Indent(2)
	return doc.WriteToBytes()
}

// PurchaseBill renders the financing bill for a customer account.
func (s *DocumentService) PurchaseBill(ctx context.Context, caller model.Caller, customerID uuid.UUID) ([]byte, error) {
	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, customer); err != nil {
		return nil, err
	}

	retailer, err := s.retailerRepo.GetByID(ctx, customer.RetailerID)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	bill := doc.CreateElement("PurchaseBill")
	bill.CreateAttr("customer_id", customer.ID.String())
	bill.CreateElement("IssuedAt").SetText(time.Now().Format(time.RFC3339))

	cust := bill.CreateElement("Customer")
	cust.CreateElement("Name").SetText(customer.CustomerName)
	if customer.FatherName != "" {
		cust.CreateElement("FatherName").SetText(customer.FatherName)
	}
	cust.CreateElement("Mobile").SetText(customer.Mobile)
	cust.CreateElement("Aadhaar").SetText(s.maskedAadhaar(customer))
	if customer.Address != "" {
		cust.CreateElement("Address").SetText(customer.Address)
	}

	device := bill.CreateElement("Device")
	device.CreateElement("Model").SetText(customer.ModelNo)
	device.CreateElement("IMEI").SetText(customer.IMEI)
	if customer.BoxNo != "" {
		device.CreateElement("BoxNo").SetText(customer.BoxNo)
	}

	terms := bill.CreateElement("Financing")
	terms.CreateElement("PurchaseDate").SetText(customer.PurchaseDate.Format("2006-01-02"))
	terms.CreateElement("PurchaseValue").SetText(formatINR(customer.PurchaseValue))
	terms.CreateElement("DownPayment").SetText(formatINR(customer.DownPayment))
	terms.CreateElement("DisburseAmount").SetText(formatINR(customer.DisburseAmount))
	terms.CreateElement("EMIAmount").SetText(formatINR(customer.EMIAmount))
	terms.CreateElement("Tenure").SetText(fmt.Sprintf("%d", customer.EMITenure))
	terms.CreateElement("DueDay").SetText(fmt.Sprintf("%d", customer.EMIDueDay))

	bill.CreateElement("Retailer").SetText(retailer.Name)

	doc.Indent(2)
	return doc.WriteToBytes()
}

// NOC renders the no-objection certificate closing out an account. Every
// EMI must be approved and no unwaived fine may remain; a fine outstanding
// blocks the certificate even when the installments are all paid.
func (s *DocumentService) NOC(ctx context.Context, caller model.Caller, customerID uuid.UUID) ([]byte, error) {
	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, customer); err != nil {
		return nil, err
	}

	emis, err := s.emiRepo.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	var totalPaid, fineOutstanding int64
	for i := range emis {
		if emis[i].Status != model.EMIApproved {
			return nil, model.Conflictf("EMI %d is not yet paid", emis[i].EMINo)
		}
		totalPaid += emis[i].Amount
		if !emis[i].FineWaived {
			fineOutstanding += emis[i].FineAmount
		}
	}
	if fineOutstanding > 0 {
		return nil, model.Conflictf("outstanding fine of %s blocks the certificate", formatINR(fineOutstanding))
	}

	retailer, err := s.retailerRepo.GetByID(ctx, customer.RetailerID)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	noc := doc.CreateElement("NoObjectionCertificate")
	noc.CreateAttr("customer_id", customer.ID.String())
	noc.CreateElement("IssuedAt").SetText(time.Now().Format(time.RFC3339))

	cust := noc.CreateElement("Customer")
	cust.CreateElement("Name").SetText(customer.CustomerName)
	cust.CreateElement("Mobile").SetText(customer.Mobile)
	cust.CreateElement("Aadhaar").SetText(s.maskedAadhaar(customer))

	device := noc.CreateElement("Device")
	device.CreateElement("Model").SetText(customer.ModelNo)
	device.CreateElement("IMEI").SetText(customer.IMEI)

	summary := noc.CreateElement("Summary")
	summary.CreateElement("Installments").SetText(fmt.Sprintf("%d", len(emis)))
	summary.CreateElement("TotalPaid").SetText(formatINR(totalPaid))
	if customer.CompletionDate != nil {
		summary.CreateElement("ClosedOn").SetText(customer.CompletionDate.Format("2006-01-02"))
	}
	noc.CreateElement("Retailer").SetText(retailer.Name)
	noc.CreateElement("Statement").SetText(
		"All installments against the above device have been received in full. " +
			"No objection remains against the customer named herein.")

	doc.Indent(2)
	return doc.WriteToBytes()
}

// maskedAadhaar decrypts at render time and exposes only the last four
// digits, matching what the printed documents show.
func (s *DocumentService) maskedAadhaar(customer *model.Customer) string {
	if customer.AadhaarEnc == "" {
		return ""
	}
	aadhaar, err := s.pgp.Decrypt(customer.AadhaarEnc)
	if err != nil || len(aadhaar) != 12 {
		s.logger.WithError(err).Warn("Failed to decrypt Aadhaar for document")
		return "XXXXXXXXXXXX"
	}
	return "XXXXXXXX" + aadhaar[8:]
}

func (s *DocumentService) authorize(ctx context.Context, caller model.Caller, customer *model.Customer) error {
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
