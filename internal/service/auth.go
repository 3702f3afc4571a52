package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

type AuthService struct {
	userRepo    *repository.UserRepository
	jwtSecret   string
	tokenExpiry time.Duration
	logger      *logrus.Logger
}

func NewAuthService(userRepo *repository.UserRepository, jwtSecret string, tokenExpiry time.Duration, logger *logrus.Logger) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		jwtSecret:   jwtSecret,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}
}

type authClaims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// SignIn authenticates an admin or retailer login and returns a token
// carrying the user id and role.
func (s *AuthService) SignIn(ctx context.Context, input model.SignInInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	s.logger.WithField("username", input.Username).Info("Sign-in attempt")

	user, err := s.userRepo.FindByUsername(ctx, input.Username)
	if err != nil {
		s.logger.WithError(err).Warn("User not found or invalid credentials")
		return "", fmt.Errorf("%w: invalid credentials", model.ErrAuth)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		s.logger.Warn("Wrong password on sign-in attempt")
		return "", fmt.Errorf("%w: invalid credentials", model.ErrAuth)
	}

	token, err := s.GenerateToken(user.ID, user.Role)
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate JWT token")
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("User signed in")
	return token, nil
}

func (s *AuthService) GenerateToken(userID uuid.UUID, role model.Role) (string, error) {
	claims := authClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ParseToken validates a token and resolves the caller it represents. This
// is the only place identity enters the system; everything downstream takes
// the Caller as an explicit argument.
func (s *AuthService) ParseToken(tokenString string) (model.Caller, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		s.logger.WithError(err).Warn("Invalid JWT token")
		return model.Caller{}, fmt.Errorf("%w: invalid token", model.ErrAuth)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Caller{}, fmt.Errorf("%w: malformed token subject", model.ErrAuth)
	}

	if claims.Role != model.RoleSuperAdmin && claims.Role != model.RoleRetailer {
		return model.Caller{}, fmt.Errorf("%w: unknown role", model.ErrAuth)
	}

	return model.Caller{UserID: userID, Role: claims.Role}, nil
}
