package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
)

type PaymentRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPaymentRepository(db *sql.DB, logger *logrus.Logger) *PaymentRepository {
	return &PaymentRepository{db: db, logger: logger}
}

func (r *PaymentRepository) GetDB() *sql.DB {
	return r.db
}

const requestColumns = `
        id, customer_id, retailer_id, submitted_by, status, mode,
        total_emi_amount, fine_amount, first_emi_charge_amount, total_amount,
        COALESCE(notes, ''), COALESCE(rejection_reason, ''),
        approved_by, approved_at, rejected_by, rejected_at,
        selected_emi_nos, created_at, updated_at`

func scanRequest(row interface{ Scan(...interface{}) error }) (*model.PaymentRequest, error) {
	var p model.PaymentRequest
	var approvedBy, rejectedBy uuid.NullUUID
	err := row.Scan(
		&p.ID, &p.CustomerID, &p.RetailerID, &p.SubmittedBy, &p.Status, &p.Mode,
		&p.TotalEMIAmount, &p.FineAmount, &p.FirstEMIChargeAmount, &p.TotalAmount,
		&p.Notes, &p.RejectionReason,
		&approvedBy, &p.ApprovedAt, &rejectedBy, &p.RejectedAt,
		pq.Array(&p.SelectedEMINos), &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedBy.Valid {
		p.ApprovedBy = &approvedBy.UUID
	}
	if rejectedBy.Valid {
		p.RejectedBy = &rejectedBy.UUID
	}
	return &p, nil
}

func (r *PaymentRepository) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PaymentRequest) error {
	query := `
        INSERT INTO payment_requests (id, customer_id, retailer_id, submitted_by, status, mode,
                                      total_emi_amount, fine_amount, first_emi_charge_amount,
                                      total_amount, notes, rejection_reason,
                                      approved_by, approved_at, selected_emi_nos,
                                      created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `

	var approvedBy interface{}
	if p.ApprovedBy != nil {
		approvedBy = *p.ApprovedBy
	}

	_, err := tx.ExecContext(ctx, query,
		p.ID, p.CustomerID, p.RetailerID, p.SubmittedBy, p.Status, p.Mode,
		p.TotalEMIAmount, p.FineAmount, p.FirstEMIChargeAmount,
		p.TotalAmount, p.Notes, p.RejectionReason,
		approvedBy, p.ApprovedAt, pq.Array(p.SelectedEMINos),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "foreign_key_violation" {
			return fmt.Errorf("%w: customer or retailer not found", model.ErrNotFound)
		}
		return fmt.Errorf("failed to create payment request: %w", err)
	}

	return nil
}

func (r *PaymentRepository) CreateItemsTx(ctx context.Context, tx *sql.Tx, items []model.PaymentRequestItem) error {
	query := `
        INSERT INTO payment_request_items (id, payment_request_id, emi_id, emi_no, amount)
        VALUES ($1, $2, $3, $4, $5)
    `

	for i := range items {
		item := &items[i]
		if _, err := tx.ExecContext(ctx, query,
			item.ID, item.PaymentRequestID, item.EMIID, item.EMINo, item.Amount,
		); err != nil {
			return fmt.Errorf("failed to create payment request item: %w", err)
		}
	}

	return nil
}

// GetByID loads a request together with its items.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentRequest, error) {
	query := `SELECT` + requestColumns + ` FROM payment_requests WHERE id = $1`

	request, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: payment request %s", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	request.Items = items

	return request, nil
}

func (r *PaymentRepository) listItems(ctx context.Context, requestID uuid.UUID) ([]model.PaymentRequestItem, error) {
	query := `
        SELECT id, payment_request_id, emi_id, emi_no, amount
        FROM payment_request_items
        WHERE payment_request_id = $1
        ORDER BY emi_no
    `

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query request items: %w", err)
	}
	defer rows.Close()

	var items []model.PaymentRequestItem
	for rows.Next() {
		var item model.PaymentRequestItem
		if err := rows.Scan(&item.ID, &item.PaymentRequestID, &item.EMIID, &item.EMINo, &item.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan request item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ApproveTx transitions PENDING -> APPROVED. The status guard ensures that
// when two admins race, exactly one transition wins; the loser sees
// ErrConflict and no side effects are applied twice.
func (r *PaymentRepository) ApproveTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, approvedBy uuid.UUID, approvedAt time.Time, notes string) error {
	query := `
        UPDATE payment_requests
        SET status = 'APPROVED',
            approved_by = $1,
            approved_at = $2,
            notes = $3,
            updated_at = NOW()
        WHERE id = $4 AND status = 'PENDING'
    `

	result, err := tx.ExecContext(ctx, query, approvedBy, approvedAt, notes, id)
	if err != nil {
		return fmt.Errorf("failed to approve payment request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check approve result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: request is not pending", model.ErrConflict)
	}

	return nil
}

// RejectTx transitions PENDING -> REJECTED under the same guard as ApproveTx.
func (r *PaymentRepository) RejectTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, rejectedBy uuid.UUID, rejectedAt time.Time, reason string) error {
	query := `
        UPDATE payment_requests
        SET status = 'REJECTED',
            rejected_by = $1,
            rejected_at = $2,
            rejection_reason = $3,
            updated_at = NOW()
        WHERE id = $4 AND status = 'PENDING'
    `

	result, err := tx.ExecContext(ctx, query, rejectedBy, rejectedAt, reason, id)
	if err != nil {
		return fmt.Errorf("failed to reject payment request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reject result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: request is not pending", model.ErrConflict)
	}

	return nil
}

func (r *PaymentRepository) ListPending(ctx context.Context) ([]model.PaymentRequest, error) {
	query := `SELECT` + requestColumns + `
        FROM payment_requests
        WHERE status = 'PENDING'
        ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var requests []model.PaymentRequest
	for rows.Next() {
		p, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		requests = append(requests, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range requests {
		items, err := r.listItems(ctx, requests[i].ID)
		if err != nil {
			return nil, err
		}
		requests[i].Items = items
	}

	return requests, nil
}

func (r *PaymentRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.PaymentRequest, error) {
	query := `SELECT` + requestColumns + `
        FROM payment_requests
        WHERE customer_id = $1
        ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer requests: %w", err)
	}
	defer rows.Close()

	var requests []model.PaymentRequest
	for rows.Next() {
		p, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		requests = append(requests, *p)
	}

	return requests, rows.Err()
}

func (r *PaymentRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_requests WHERE status = 'PENDING'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return count, nil
}
