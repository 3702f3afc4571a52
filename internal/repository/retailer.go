package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
)

type RetailerRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewRetailerRepository(db *sql.DB, logger *logrus.Logger) *RetailerRepository {
	return &RetailerRepository{db: db, logger: logger}
}

func (r *RetailerRepository) GetDB() *sql.DB {
	return r.db
}

const retailerColumns = `
        id, auth_user_id, name, username, COALESCE(email, ''), COALESCE(retail_pin, ''),
        is_active, created_at, updated_at`

func scanRetailer(row interface{ Scan(...interface{}) error }) (*model.Retailer, error) {
	var rt model.Retailer
	err := row.Scan(
		&rt.ID, &rt.AuthUserID, &rt.Name, &rt.Username, &rt.Email, &rt.RetailPIN,
		&rt.IsActive, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *RetailerRepository) CreateTx(ctx context.Context, tx *sql.Tx, rt *model.Retailer) error {
	query := `
        INSERT INTO retailers (id, auth_user_id, name, username, email, retail_pin,
                               is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	_, err := tx.ExecContext(ctx, query,
		rt.ID, rt.AuthUserID, rt.Name, rt.Username, rt.Email, rt.RetailPIN,
		rt.IsActive, rt.CreatedAt, rt.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: a retailer with this username already exists", model.ErrIntegrity)
		}
		return fmt.Errorf("failed to create retailer: %w", err)
	}

	return nil
}

func (r *RetailerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Retailer, error) {
	query := `SELECT` + retailerColumns + ` FROM retailers WHERE id = $1`

	retailer, err := scanRetailer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: retailer %s", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get retailer: %w", err)
	}

	return retailer, nil
}

func (r *RetailerRepository) GetByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*model.Retailer, error) {
	query := `SELECT` + retailerColumns + ` FROM retailers WHERE auth_user_id = $1`

	retailer, err := scanRetailer(r.db.QueryRowContext(ctx, query, authUserID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: retailer for user %s", model.ErrNotFound, authUserID)
		}
		return nil, fmt.Errorf("failed to get retailer: %w", err)
	}

	return retailer, nil
}

func (r *RetailerRepository) List(ctx context.Context) ([]model.Retailer, error) {
	query := `SELECT` + retailerColumns + ` FROM retailers ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list retailers: %w", err)
	}
	defer rows.Close()

	var retailers []model.Retailer
	for rows.Next() {
		rt, err := scanRetailer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retailer: %w", err)
		}
		retailers = append(retailers, *rt)
	}

	return retailers, rows.Err()
}

func (r *RetailerRepository) Update(ctx context.Context, rt *model.Retailer) error {
	query := `
        UPDATE retailers
        SET name = $1,
            email = $2,
            retail_pin = $3,
            is_active = $4,
            updated_at = NOW()
        WHERE id = $5
    `

	result, err := r.db.ExecContext(ctx, query, rt.Name, rt.Email, rt.RetailPIN, rt.IsActive, rt.ID)
	if err != nil {
		return fmt.Errorf("failed to update retailer: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: retailer %s", model.ErrNotFound, rt.ID)
	}

	return nil
}

func (r *RetailerRepository) DeleteTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM retailers WHERE id = $1`, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "foreign_key_violation" {
			return fmt.Errorf("%w: retailer still has customers assigned", model.ErrConflict)
		}
		return fmt.Errorf("failed to delete retailer: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: retailer %s", model.ErrNotFound, id)
	}

	return nil
}
