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

type FineService struct {
	emiRepo      *repository.EMIRepository
	settingsRepo *repository.SettingsRepository
	auditor      *Auditor
	logger       *logrus.Logger
}

func NewFineService(emiRepo *repository.EMIRepository, settingsRepo *repository.SettingsRepository, auditor *Auditor, logger *logrus.Logger) *FineService {
	return &FineService{
		emiRepo:      emiRepo,
		settingsRepo: settingsRepo,
		auditor:      auditor,
		logger:       logger,
	}
}

// AccrueOverdueFines is the nightly job target. It stamps the configured
// default fine on UNPAID rows whose due date has passed and that carry no
// fine yet. Idempotent: re-running a day touches nothing new.
func (s *FineService) AccrueOverdueFines(ctx context.Context) error {
	settings, err := s.settingsRepo.GetFineSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load fine settings: %w", err)
	}

	today := time.Now().Truncate(24 * time.Hour)
	stamped, err := s.emiRepo.AccrueFines(ctx, settings.DefaultFineAmount, today)
	if err != nil {
		return err
	}

	if stamped > 0 {
		s.logger.WithFields(logrus.Fields{
			"stamped":      stamped,
			"default_fine": formatINR(settings.DefaultFineAmount),
		}).Info("Fine accrual run complete")
	}
	return nil
}

// WaiveFine forgives the fine on one EMI. The waived flag also blocks the
// accrual job from re-stamping the row.
func (s *FineService) WaiveFine(ctx context.Context, caller model.Caller, emiID uuid.UUID) (*model.EMISchedule, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator waives fines")
	}

	emi, err := s.emiRepo.GetByID(ctx, emiID)
	if err != nil {
		return nil, err
	}

	if err := s.emiRepo.UpdateFine(ctx, emiID, 0, true); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, caller, model.ActionWaiveFine, "emi_schedule", emiID.String(),
		map[string]interface{}{"fine_amount": emi.FineAmount, "fine_waived": emi.FineWaived},
		map[string]interface{}{"fine_amount": 0, "fine_waived": true},
		"")

	return s.emiRepo.GetByID(ctx, emiID)
}

// OverrideFine sets an explicit fine amount on one EMI and clears any
// previous waiver.
func (s *FineService) OverrideFine(ctx context.Context, caller model.Caller, input model.OverrideFineInput) (*model.EMISchedule, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator overrides fines")
	}

	emi, err := s.emiRepo.GetByID(ctx, input.EMIID)
	if err != nil {
		return nil, err
	}

	if err := s.emiRepo.UpdateFine(ctx, input.EMIID, input.FineAmount, false); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, caller, model.ActionOverrideFine, "emi_schedule", input.EMIID.String(),
		map[string]interface{}{"fine_amount": emi.FineAmount, "fine_waived": emi.FineWaived},
		map[string]interface{}{"fine_amount": input.FineAmount, "fine_waived": false},
		"")

	return s.emiRepo.GetByID(ctx, input.EMIID)
}

func (s *FineService) OverrideDueDate(ctx context.Context, caller model.Caller, input model.OverrideDueDateInput) (*model.EMISchedule, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator overrides due dates")
	}

	emi, err := s.emiRepo.GetByID(ctx, input.EMIID)
	if err != nil {
		return nil, err
	}
	if emi.Status == model.EMIApproved {
		return nil, model.Conflictf("cannot move the due date of an approved EMI")
	}

	dueDate, _ := time.Parse("2006-01-02", input.DueDate)
	if err := s.emiRepo.UpdateDueDate(ctx, input.EMIID, dueDate); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, caller, model.ActionOverrideDueDate, "emi_schedule", input.EMIID.String(),
		map[string]interface{}{"due_date": emi.DueDate.Format("2006-01-02")},
		map[string]interface{}{"due_date": input.DueDate},
		"")

	return s.emiRepo.GetByID(ctx, input.EMIID)
}

func (s *FineService) GetFineSettings(ctx context.Context, caller model.Caller) (*model.FineSettings, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator views fine settings")
	}
	return s.settingsRepo.GetFineSettings(ctx)
}

func (s *FineService) UpdateFineSettings(ctx context.Context, caller model.Caller, defaultFineAmount int64) (*model.FineSettings, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator updates fine settings")
	}
	if defaultFineAmount < 0 {
		return nil, model.Validationf("default_fine_amount must not be negative")
	}

	before, err := s.settingsRepo.GetFineSettings(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.settingsRepo.UpdateFineSettings(ctx, defaultFineAmount); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, caller, model.ActionUpdateFineSettings, "fine_settings", "1",
		map[string]interface{}{"default_fine_amount": before.DefaultFineAmount},
		map[string]interface{}{"default_fine_amount": defaultFineAmount},
		"")

	return s.settingsRepo.GetFineSettings(ctx)
}
