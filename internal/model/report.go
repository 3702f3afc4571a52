package model

import (
	"time"

	"github.com/google/uuid"
)

// EMIWithCustomer is a flattened schedule row for report queries and the
// admin overdue filters.
type EMIWithCustomer struct {
	EMIID        uuid.UUID `json:"id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	EMINo        int       `json:"emi_no"`
	DueDate      time.Time `json:"due_date"`
	Amount       int64     `json:"amount"`
	Status       EMIStatus `json:"status"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	Mode         PaymentMode `json:"mode,omitempty"`
	FineAmount   int64     `json:"fine_amount"`
	FineWaived   bool      `json:"fine_waived"`
	CustomerName string    `json:"customer_name"`
	IMEI         string    `json:"imei"`
	Mobile       string    `json:"mobile"`
	RetailerName string    `json:"retailer_name"`
}

// CustomerReportRow is one customer in the admin customer export, with the
// schedule progress folded in.
type CustomerReportRow struct {
	CustomerID    uuid.UUID      `json:"id"`
	CustomerName  string         `json:"customer_name"`
	Mobile        string         `json:"mobile"`
	ModelNo       string         `json:"model_no"`
	IMEI          string         `json:"imei"`
	RetailerName  string         `json:"retailer_name"`
	PurchaseDate  time.Time      `json:"purchase_date"`
	PurchaseValue int64          `json:"purchase_value"`
	EMIAmount     int64          `json:"emi_amount"`
	EMITenure     int            `json:"emi_tenure"`
	PaidCount     int            `json:"paid_count"`
	Status        CustomerStatus `json:"status"`
}

// CollectionRow is one approved payment request in the retailer collection
// report.
type CollectionRow struct {
	CreatedAt            time.Time   `json:"date"`
	TotalAmount          int64       `json:"total"`
	FineAmount           int64       `json:"fine"`
	FirstEMIChargeAmount int64       `json:"first_charge"`
	Mode                 PaymentMode `json:"mode"`
	RetailerName         string      `json:"retailer"`
	CustomerName         string      `json:"customer"`
	IMEI                 string      `json:"imei"`
}
