package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

func TestSignIn(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	logger := quietLogger()
	svc := NewAuthService(repository.NewUserRepository(mockDB, logger), "test-secret", time.Hour, logger)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)
	userID := uuid.New()

	userRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "username", "password", "role", "created_at", "updated_at"}).
			AddRow(userID, "starmobiles", string(hash), "retailer", time.Now(), time.Now())
	}

	t.Run("valid credentials produce a parseable token", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
			WillReturnRows(userRows())

		token, err := svc.SignIn(context.Background(),
			model.SignInInput{Username: "starmobiles", Password: "correct-password"})
		require.NoError(t, err)

		caller, err := svc.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID, caller.UserID)
		assert.Equal(t, model.RoleRetailer, caller.Role)
		assert.False(t, caller.IsAdmin())
	})

	t.Run("wrong password fails closed", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
			WillReturnRows(userRows())

		_, err := svc.SignIn(context.Background(),
			model.SignInInput{Username: "starmobiles", Password: "wrong"})

		assert.ErrorIs(t, err, model.ErrAuth)
	})

	t.Run("unknown user maps to invalid credentials", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users WHERE username").
			WillReturnError(assert.AnError)

		_, err := svc.SignIn(context.Background(),
			model.SignInInput{Username: "ghost", Password: "whatever"})

		assert.ErrorIs(t, err, model.ErrAuth)
	})
}

func TestParseToken(t *testing.T) {
	logger := quietLogger()
	svc := NewAuthService(nil, "test-secret", time.Hour, logger)

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := svc.ParseToken("not-a-token")
		assert.ErrorIs(t, err, model.ErrAuth)
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		other := NewAuthService(nil, "other-secret", time.Hour, logger)
		token, err := other.GenerateToken(uuid.New(), model.RoleSuperAdmin)
		require.NoError(t, err)

		_, err = svc.ParseToken(token)
		assert.ErrorIs(t, err, model.ErrAuth)
	})

	t.Run("admin role round-trips", func(t *testing.T) {
		adminID := uuid.New()
		token, err := svc.GenerateToken(adminID, model.RoleSuperAdmin)
		require.NoError(t, err)

		caller, err := svc.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, adminID, caller.UserID)
		assert.True(t, caller.IsAdmin())
	})
}
