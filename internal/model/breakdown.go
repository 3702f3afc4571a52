package model

import (
	"time"

	"github.com/google/uuid"
)

// DueBreakdown is what a customer currently owes: the next unresolved EMI,
// any stored late fine on it, and the one-time first-EMI charge if still
// unpaid. Computed on demand, never persisted. Amounts are paise.
type DueBreakdown struct {
	CustomerID     uuid.UUID      `json:"customer_id"`
	CustomerStatus CustomerStatus `json:"customer_status"`

	NextEMIID      *uuid.UUID `json:"next_emi_id,omitempty"`
	NextEMINo      *int       `json:"next_emi_no,omitempty"`
	NextEMIAmount  int64      `json:"next_emi_amount"`
	NextEMIDueDate *time.Time `json:"next_emi_due_date,omitempty"`
	NextEMIStatus  EMIStatus  `json:"next_emi_status,omitempty"`

	FineDue           int64 `json:"fine_due"`
	FirstEMIChargeDue int64 `json:"first_emi_charge_due"`
	TotalPayable      int64 `json:"total_payable"`

	PopupFirstEMICharge bool `json:"popup_first_emi_charge"`
	PopupFineDue        bool `json:"popup_fine_due"`
	IsOverdue           bool `json:"is_overdue"`
}
