package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded for every admin state-changing operation.
const (
	ActionApprovePayment     = "APPROVE_PAYMENT"
	ActionRejectPayment      = "REJECT_PAYMENT"
	ActionDirectPayment      = "DIRECT_PAYMENT"
	ActionWaiveFine          = "WAIVE_FINE"
	ActionOverrideFine       = "OVERRIDE_FINE"
	ActionOverrideDueDate    = "OVERRIDE_DUE_DATE"
	ActionCompleteCustomer   = "COMPLETE_CUSTOMER"
	ActionDeleteCustomer     = "DELETE_CUSTOMER"
	ActionUpdateFineSettings = "UPDATE_FINE_SETTINGS"
)

// AuditLog is append-only; rows are never updated or deleted. Writes are
// best-effort relative to the primary transition.
type AuditLog struct {
	ID          uuid.UUID              `json:"id" db:"id"`
	ActorUserID uuid.UUID              `json:"actor_user_id" db:"actor_user_id"`
	ActorRole   Role                   `json:"actor_role" db:"actor_role"`
	Action      string                 `json:"action" db:"action"`
	TableName   string                 `json:"table_name" db:"table_name"`
	RecordID    string                 `json:"record_id" db:"record_id"`
	BeforeData  map[string]interface{} `json:"before_data,omitempty" db:"before_data"`
	AfterData   map[string]interface{} `json:"after_data,omitempty" db:"after_data"`
	Remark      string                 `json:"remark,omitempty" db:"remark"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}
