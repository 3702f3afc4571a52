package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

type RetailerService struct {
	retailerRepo *repository.RetailerRepository
	userRepo     *repository.UserRepository
	customerRepo *repository.CustomerRepository
	logger       *logrus.Logger
}

func NewRetailerService(
	retailerRepo *repository.RetailerRepository,
	userRepo *repository.UserRepository,
	customerRepo *repository.CustomerRepository,
	logger *logrus.Logger,
) *RetailerService {
	return &RetailerService{
		retailerRepo: retailerRepo,
		userRepo:     userRepo,
		customerRepo: customerRepo,
		logger:       logger,
	}
}

// Create provisions the login user and the retailer profile together; a
// partial pair is never left behind.
func (s *RetailerService) Create(ctx context.Context, caller model.Caller, input model.CreateRetailerInput) (*model.Retailer, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator manages retailers")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New(),
		Username:  strings.TrimSpace(input.Username),
		Password:  string(hash),
		Role:      model.RoleRetailer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	retailer := &model.Retailer{
		ID:         uuid.New(),
		AuthUserID: user.ID,
		Name:       strings.TrimSpace(input.Name),
		Username:   user.Username,
		Email:      input.Email,
		RetailPIN:  input.RetailPIN,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tx, err := s.retailerRepo.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.userRepo.CreateTx(ctx, tx, user); err != nil {
		return nil, err
	}
	if err := s.retailerRepo.CreateTx(ctx, tx, retailer); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit retailer creation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"retailer_id": retailer.ID,
		"username":    retailer.Username,
	}).Info("Retailer created")

	return retailer, nil
}

func (s *RetailerService) Get(ctx context.Context, caller model.Caller, id uuid.UUID) (*model.Retailer, error) {
	if !caller.IsAdmin() {
		retailer, err := s.retailerRepo.GetByAuthUserID(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve retailer: %w", err)
		}
		if retailer.ID != id {
			return nil, model.Forbiddenf("retailers only view their own profile")
		}
		return retailer, nil
	}
	return s.retailerRepo.GetByID(ctx, id)
}

func (s *RetailerService) List(ctx context.Context, caller model.Caller) ([]model.Retailer, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator lists retailers")
	}
	return s.retailerRepo.List(ctx)
}

// Update applies partial edits. A password change re-hashes and writes to
// the login user; a PIN change takes effect on the next submission.
func (s *RetailerService) Update(ctx context.Context, caller model.Caller, input model.UpdateRetailerInput) (*model.Retailer, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator manages retailers")
	}

	retailer, err := s.retailerRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		retailer.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		retailer.Email = *input.Email
	}
	if input.RetailPIN != nil {
		retailer.RetailPIN = *input.RetailPIN
	}
	if input.IsActive != nil {
		retailer.IsActive = *input.IsActive
	}

	if err := s.retailerRepo.Update(ctx, retailer); err != nil {
		return nil, err
	}

	if input.Password != nil {
		if len(*input.Password) < 6 {
			return nil, model.Validationf("password must be at least 6 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		if err := s.userRepo.UpdatePassword(ctx, retailer.AuthUserID, string(hash)); err != nil {
			return nil, err
		}
	}

	return s.retailerRepo.GetByID(ctx, input.ID)
}

// Delete removes a retailer and its login user. Blocked while any customer
// is still assigned; reassign or delete those first.
func (s *RetailerService) Delete(ctx context.Context, caller model.Caller, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return model.Forbiddenf("only the administrator manages retailers")
	}

	retailer, err := s.retailerRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.customerRepo.CountByRetailer(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return model.Conflictf("retailer still has %d customers assigned", count)
	}

	tx, err := s.retailerRepo.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.retailerRepo.DeleteTx(ctx, tx, id); err != nil {
		return err
	}
	if err := s.userRepo.DeleteTx(ctx, tx, retailer.AuthUserID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit retailer deletion: %w", err)
	}

	s.logger.WithField("retailer_id", id).Info("Retailer deleted")
	return nil
}
