package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

// Auditor writes audit entries after a primary transition has committed.
// Writes are best-effort: losing an audit row on crash is acceptable, losing
// the transition is not, so failures are logged and swallowed.
type Auditor struct {
	auditRepo *repository.AuditRepository
	logger    *logrus.Logger
}

func NewAuditor(auditRepo *repository.AuditRepository, logger *logrus.Logger) *Auditor {
	return &Auditor{auditRepo: auditRepo, logger: logger}
}

func (a *Auditor) Record(ctx context.Context, caller model.Caller, action, tableName, recordID string, before, after map[string]interface{}, remark string) {
	entry := &model.AuditLog{
		ID:          uuid.New(),
		ActorUserID: caller.UserID,
		ActorRole:   caller.Role,
		Action:      action,
		TableName:   tableName,
		RecordID:    recordID,
		BeforeData:  before,
		AfterData:   after,
		Remark:      remark,
		CreatedAt:   time.Now(),
	}

	if err := a.auditRepo.Create(ctx, entry); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"action":    action,
			"record_id": recordID,
		}).Error("Failed to write audit entry")
	}
}

// List returns the most recent audit entries for the admin activity view.
func (a *Auditor) List(ctx context.Context, caller model.Caller, limit int) ([]model.AuditLog, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator views the audit log")
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return a.auditRepo.List(ctx, limit)
}
