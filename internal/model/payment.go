package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// PaymentRequest is one attempted settlement: one or more EMI lines plus the
// fixed add-ons (late fine, one-time first-EMI charge). Status is monotonic
// PENDING -> APPROVED|REJECTED and never reversed. Amounts are paise.
type PaymentRequest struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	CustomerID  uuid.UUID     `json:"customer_id" db:"customer_id"`
	RetailerID  uuid.UUID     `json:"retailer_id" db:"retailer_id"`
	SubmittedBy uuid.UUID     `json:"submitted_by" db:"submitted_by"`
	Status      RequestStatus `json:"status" db:"status"`
	Mode        PaymentMode   `json:"mode" db:"mode"`

	TotalEMIAmount       int64 `json:"total_emi_amount" db:"total_emi_amount"`
	FineAmount           int64 `json:"fine_amount" db:"fine_amount"`
	FirstEMIChargeAmount int64 `json:"first_emi_charge_amount" db:"first_emi_charge_amount"`
	TotalAmount          int64 `json:"total_amount" db:"total_amount"`

	Notes           string     `json:"notes,omitempty" db:"notes"`
	RejectionReason string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectedBy      *uuid.UUID `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`

	SelectedEMINos []int64   `json:"selected_emi_nos,omitempty" db:"selected_emi_nos"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

	Items    []PaymentRequestItem `json:"items,omitempty" db:"-"`
	Customer *Customer            `json:"customer,omitempty" db:"-"`
	Retailer *Retailer            `json:"retailer,omitempty" db:"-"`
}

type PaymentRequestItem struct {
	ID               uuid.UUID `json:"id" db:"id"`
	PaymentRequestID uuid.UUID `json:"payment_request_id" db:"payment_request_id"`
	EMIID            uuid.UUID `json:"emi_id" db:"emi_id"`
	EMINo            int       `json:"emi_no" db:"emi_no"`
	Amount           int64     `json:"amount" db:"amount"`
}

// SubmitPaymentInput carries the caller-computed breakdown alongside the
// targets. The server recomputes the amounts from stored state and only
// reconciles the caller's total against them (see PaymentService).
type SubmitPaymentInput struct {
	CustomerID uuid.UUID   `json:"customer_id"`
	EMIIDs     []uuid.UUID `json:"emi_ids"`
	Mode       PaymentMode `json:"mode"`
	Notes      string      `json:"notes"`
	RetailPIN  string      `json:"retail_pin"`

	TotalEMIAmount       int64 `json:"total_emi_amount"`
	FineAmount           int64 `json:"fine_amount"`
	FirstEMIChargeAmount int64 `json:"first_emi_charge_amount"`
	TotalAmount          int64 `json:"total_amount"`
}

func (in *SubmitPaymentInput) Validate() error {
	if in.CustomerID == uuid.Nil || len(in.EMIIDs) == 0 || !in.Mode.Valid() {
		return Validationf("missing required fields")
	}
	if strings.TrimSpace(in.RetailPIN) == "" {
		return Validationf("retailer PIN is required")
	}
	return nil
}

// DirectPaymentInput is the admin shortcut: create and approve in one call,
// no PIN and no PENDING stage.
type DirectPaymentInput struct {
	CustomerID uuid.UUID   `json:"customer_id"`
	EMIIDs     []uuid.UUID `json:"emi_ids"`
	Mode       PaymentMode `json:"mode"`
	Notes      string      `json:"notes"`

	TotalEMIAmount       int64 `json:"total_emi_amount"`
	FineAmount           int64 `json:"fine_amount"`
	FirstEMIChargeAmount int64 `json:"first_emi_charge_amount"`
	TotalAmount          int64 `json:"total_amount"`
}

func (in *DirectPaymentInput) Validate() error {
	if in.CustomerID == uuid.Nil || len(in.EMIIDs) == 0 || !in.Mode.Valid() {
		return Validationf("missing required fields")
	}
	return nil
}

type ApprovePaymentInput struct {
	RequestID uuid.UUID `json:"request_id"`
	Remark    string    `json:"remark"`
}

func (in *ApprovePaymentInput) Validate() error {
	if in.RequestID == uuid.Nil {
		return Validationf("request_id is required")
	}
	return nil
}

type RejectPaymentInput struct {
	RequestID uuid.UUID `json:"request_id"`
	Reason    string    `json:"reason"`
}

func (in *RejectPaymentInput) Validate() error {
	if in.RequestID == uuid.Nil {
		return Validationf("request_id is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Validationf("rejection reason is required")
	}
	return nil
}
