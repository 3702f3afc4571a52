package model

import (
	"time"

	"github.com/google/uuid"
)

type EMIStatus string

const (
	EMIUnpaid EMIStatus = "UNPAID"
	// EMIPendingApproval locks a row between retailer submission and admin
	// decision: not payable again, not counted as due, not yet credited.
	EMIPendingApproval EMIStatus = "PENDING_APPROVAL"
	EMIApproved        EMIStatus = "APPROVED"
)

type PaymentMode string

const (
	ModeCash PaymentMode = "CASH"
	ModeUPI  PaymentMode = "UPI"
)

func (m PaymentMode) Valid() bool {
	return m == ModeCash || m == ModeUPI
}

// EMISchedule is one installment row. Exactly emi_tenure rows exist per
// customer with emi_no dense 1..tenure. Amounts are paise.
type EMISchedule struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	CustomerID uuid.UUID   `json:"customer_id" db:"customer_id"`
	EMINo      int         `json:"emi_no" db:"emi_no"`
	DueDate    time.Time   `json:"due_date" db:"due_date"`
	Amount     int64       `json:"amount" db:"amount"`
	Status     EMIStatus   `json:"status" db:"status"`
	PaidAt     *time.Time  `json:"paid_at,omitempty" db:"paid_at"`
	Mode       PaymentMode `json:"mode,omitempty" db:"mode"`
	ApprovedBy *uuid.UUID  `json:"approved_by,omitempty" db:"approved_by"`
	FineAmount int64       `json:"fine_amount" db:"fine_amount"`
	FineWaived bool        `json:"fine_waived" db:"fine_waived"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

type OverrideFineInput struct {
	EMIID      uuid.UUID `json:"emi_id"`
	FineAmount int64     `json:"fine_amount"`
}

func (in *OverrideFineInput) Validate() error {
	if in.EMIID == uuid.Nil {
		return Validationf("emi_id is required")
	}
	if in.FineAmount < 0 {
		return Validationf("fine_amount must not be negative")
	}
	return nil
}

type OverrideDueDateInput struct {
	EMIID   uuid.UUID `json:"emi_id"`
	DueDate string    `json:"due_date"` // YYYY-MM-DD
}

func (in *OverrideDueDateInput) Validate() error {
	if in.EMIID == uuid.Nil {
		return Validationf("emi_id is required")
	}
	if _, err := time.Parse("2006-01-02", in.DueDate); err != nil {
		return Validationf("due_date must be YYYY-MM-DD")
	}
	return nil
}

// FineSettings is a singleton row (id=1) holding the flat default fine that
// the accrual job stamps onto newly overdue EMIs.
type FineSettings struct {
	ID                int       `json:"id" db:"id"`
	DefaultFineAmount int64     `json:"default_fine_amount" db:"default_fine_amount"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
