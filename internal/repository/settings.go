package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
)

// SettingsRepository reads and writes the fine_settings singleton (id=1).
type SettingsRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewSettingsRepository(db *sql.DB, logger *logrus.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

func (r *SettingsRepository) GetFineSettings(ctx context.Context) (*model.FineSettings, error) {
	query := `SELECT id, default_fine_amount, updated_at FROM fine_settings WHERE id = 1`

	var s model.FineSettings
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.DefaultFineAmount, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: fine settings", model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get fine settings: %w", err)
	}

	return &s, nil
}

func (r *SettingsRepository) UpdateFineSettings(ctx context.Context, defaultFineAmount int64) error {
	query := `
        UPDATE fine_settings
        SET default_fine_amount = $1,
            updated_at = NOW()
        WHERE id = 1
    `

	result, err := r.db.ExecContext(ctx, query, defaultFineAmount)
	if err != nil {
		return fmt.Errorf("failed to update fine settings: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check settings update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: fine settings", model.ErrNotFound)
	}

	return nil
}
