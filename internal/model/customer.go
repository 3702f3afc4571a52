package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CustomerStatus string

const (
	CustomerRunning  CustomerStatus = "RUNNING"
	CustomerComplete CustomerStatus = "COMPLETE"
)

var (
	imeiPattern    = regexp.MustCompile(`^\d{15}$`)
	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
	mobilePattern  = regexp.MustCompile(`^\d{10}$`)
)

// Customer binds a financed device sale to its EMI terms. All currency
// amounts are stored in paise.
type Customer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	RetailerID uuid.UUID `json:"retailer_id" db:"retailer_id"`

	CustomerName string `json:"customer_name" db:"customer_name"`
	FatherName   string `json:"father_name,omitempty" db:"father_name"`
	// Aadhaar is only populated after decryption for document/export flows;
	// at rest the number lives in AadhaarEnc with AadhaarDigest as the
	// equality-lookup key.
	Aadhaar          string `json:"aadhaar,omitempty" db:"-"`
	AadhaarEnc       string `json:"-" db:"aadhaar_enc"`
	AadhaarDigest    string `json:"-" db:"aadhaar_digest"`
	VoterID          string `json:"voter_id,omitempty" db:"voter_id"`
	Address          string `json:"address,omitempty" db:"address"`
	Landmark         string `json:"landmark,omitempty" db:"landmark"`
	Mobile           string `json:"mobile" db:"mobile"`
	AlternateNumber1 string `json:"alternate_number_1,omitempty" db:"alternate_number_1"`
	AlternateNumber2 string `json:"alternate_number_2,omitempty" db:"alternate_number_2"`

	ModelNo string `json:"model_no,omitempty" db:"model_no"`
	IMEI    string `json:"imei" db:"imei"`
	BoxNo   string `json:"box_no,omitempty" db:"box_no"`

	PurchaseValue  int64     `json:"purchase_value" db:"purchase_value"`
	DownPayment    int64     `json:"down_payment" db:"down_payment"`
	DisburseAmount int64     `json:"disburse_amount" db:"disburse_amount"`
	PurchaseDate   time.Time `json:"purchase_date" db:"purchase_date"`
	EMIDueDay      int       `json:"emi_due_day" db:"emi_due_day"`
	EMIAmount      int64     `json:"emi_amount" db:"emi_amount"`
	EMITenure      int       `json:"emi_tenure" db:"emi_tenure"`

	FirstEMIChargeAmount int64      `json:"first_emi_charge_amount" db:"first_emi_charge_amount"`
	FirstEMIChargePaidAt *time.Time `json:"first_emi_charge_paid_at,omitempty" db:"first_emi_charge_paid_at"`

	Status           CustomerStatus `json:"status" db:"status"`
	CompletionRemark string         `json:"completion_remark,omitempty" db:"completion_remark"`
	CompletionDate   *time.Time     `json:"completion_date,omitempty" db:"completion_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Retailer *Retailer `json:"retailer,omitempty" db:"-"`
}

type CreateCustomerInput struct {
	RetailerID       uuid.UUID `json:"retailer_id"`
	CustomerName     string    `json:"customer_name"`
	FatherName       string    `json:"father_name"`
	Aadhaar          string    `json:"aadhaar"`
	VoterID          string    `json:"voter_id"`
	Address          string    `json:"address"`
	Landmark         string    `json:"landmark"`
	Mobile           string    `json:"mobile"`
	AlternateNumber1 string    `json:"alternate_number_1"`
	AlternateNumber2 string    `json:"alternate_number_2"`
	ModelNo          string    `json:"model_no"`
	IMEI             string    `json:"imei"`
	BoxNo            string    `json:"box_no"`

	PurchaseValue int64  `json:"purchase_value"`
	DownPayment   int64  `json:"down_payment"`
	// DisburseAmount defaults to purchase_value - down_payment when zero.
	DisburseAmount int64  `json:"disburse_amount"`
	PurchaseDate   string `json:"purchase_date"` // YYYY-MM-DD
	EMIDueDay      int    `json:"emi_due_day"`
	EMIAmount      int64  `json:"emi_amount"`
	EMITenure      int    `json:"emi_tenure"`

	FirstEMIChargeAmount int64 `json:"first_emi_charge_amount"`
}

func (in *CreateCustomerInput) Validate() error {
	if in.RetailerID == uuid.Nil {
		return Validationf("retailer_id is required")
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return Validationf("customer_name is required")
	}
	if !mobilePattern.MatchString(in.Mobile) {
		return Validationf("mobile must be exactly 10 digits")
	}
	if !imeiPattern.MatchString(in.IMEI) {
		return Validationf("IMEI must be exactly 15 digits")
	}
	if in.Aadhaar != "" && !aadhaarPattern.MatchString(in.Aadhaar) {
		return Validationf("Aadhaar must be exactly 12 digits")
	}
	if in.EMIDueDay < 1 || in.EMIDueDay > 28 {
		return Validationf("emi_due_day must be between 1 and 28")
	}
	if in.EMITenure < 1 {
		return Validationf("emi_tenure must be at least 1")
	}
	if in.EMIAmount <= 0 {
		return Validationf("emi_amount must be positive")
	}
	if in.PurchaseValue < 0 || in.DownPayment < 0 || in.FirstEMIChargeAmount < 0 {
		return Validationf("amounts must not be negative")
	}
	if in.DownPayment > in.PurchaseValue {
		return Validationf("down_payment cannot exceed purchase_value")
	}
	if _, err := time.Parse("2006-01-02", in.PurchaseDate); err != nil {
		return Validationf("purchase_date must be YYYY-MM-DD")
	}
	return nil
}

// UpdateCustomerInput applies partial edits; nil fields are left untouched.
// Financing terms that would desync the generated schedule (emi_tenure) are
// intentionally not editable here.
type UpdateCustomerInput struct {
	ID               uuid.UUID  `json:"id"`
	RetailerID       *uuid.UUID `json:"retailer_id"`
	CustomerName     *string    `json:"customer_name"`
	FatherName       *string    `json:"father_name"`
	VoterID          *string    `json:"voter_id"`
	Address          *string    `json:"address"`
	Landmark         *string    `json:"landmark"`
	Mobile           *string    `json:"mobile"`
	AlternateNumber1 *string    `json:"alternate_number_1"`
	AlternateNumber2 *string    `json:"alternate_number_2"`
	ModelNo          *string    `json:"model_no"`
	BoxNo            *string    `json:"box_no"`

	FirstEMIChargeAmount *int64 `json:"first_emi_charge_amount"`
}

func (in *UpdateCustomerInput) Validate() error {
	if in.ID == uuid.Nil {
		return Validationf("id is required")
	}
	if in.Mobile != nil && !mobilePattern.MatchString(*in.Mobile) {
		return Validationf("mobile must be exactly 10 digits")
	}
	if in.FirstEMIChargeAmount != nil && *in.FirstEMIChargeAmount < 0 {
		return Validationf("first_emi_charge_amount must not be negative")
	}
	return nil
}

type CompleteCustomerInput struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Remark     string    `json:"remark"`
}

func (in *CompleteCustomerInput) Validate() error {
	if in.CustomerID == uuid.Nil {
		return Validationf("customer_id is required")
	}
	if strings.TrimSpace(in.Remark) == "" {
		return Validationf("completion remark is required")
	}
	return nil
}

type DeleteCustomerInput struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Reason     string    `json:"reason"`
}

func (in *DeleteCustomerInput) Validate() error {
	if in.CustomerID == uuid.Nil {
		return Validationf("customer_id is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Validationf("deletion reason is required")
	}
	return nil
}

// SelfLookupInput is the unauthenticated customer lookup: possession of both
// numbers is the viewing capability, there is no session.
type SelfLookupInput struct {
	Aadhaar string `json:"aadhaar"`
	Mobile  string `json:"mobile"`
}

func (in *SelfLookupInput) Validate() error {
	if !aadhaarPattern.MatchString(in.Aadhaar) {
		return Validationf("Aadhaar must be exactly 12 digits")
	}
	if !mobilePattern.MatchString(in.Mobile) {
		return Validationf("Mobile must be exactly 10 digits")
	}
	return nil
}
