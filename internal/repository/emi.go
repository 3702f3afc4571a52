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

type EMIRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewEMIRepository(db *sql.DB, logger *logrus.Logger) *EMIRepository {
	return &EMIRepository{db: db, logger: logger}
}

func (r *EMIRepository) GetDB() *sql.DB {
	return r.db
}

const emiColumns = `
        id, customer_id, emi_no, due_date, amount, status, paid_at,
        COALESCE(mode, ''), approved_by, fine_amount, fine_waived, created_at, updated_at`

func scanEMI(row interface{ Scan(...interface{}) error }) (*model.EMISchedule, error) {
	var e model.EMISchedule
	var approvedBy uuid.NullUUID
	err := row.Scan(
		&e.ID, &e.CustomerID, &e.EMINo, &e.DueDate, &e.Amount, &e.Status, &e.PaidAt,
		&e.Mode, &approvedBy, &e.FineAmount, &e.FineWaived, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedBy.Valid {
		e.ApprovedBy = &approvedBy.UUID
	}
	return &e, nil
}

func (r *EMIRepository) CreateTx(ctx context.Context, tx *sql.Tx, e *model.EMISchedule) error {
	query := `
        INSERT INTO emi_schedule (id, customer_id, emi_no, due_date, amount, status,
                                  fine_amount, fine_waived, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	_, err := tx.ExecContext(ctx, query,
		e.ID, e.CustomerID, e.EMINo, e.DueDate, e.Amount, e.Status,
		e.FineAmount, e.FineWaived, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create EMI row: %w", err)
	}

	return nil
}

func (r *EMIRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.EMISchedule, error) {
	query := `SELECT` + emiColumns + ` FROM emi_schedule WHERE id = $1`

	emi, err := scanEMI(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: EMI %s", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get EMI: %w", err)
	}

	return emi, nil
}

func (r *EMIRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.EMISchedule, error) {
	query := `SELECT` + emiColumns + `
        FROM emi_schedule
        WHERE customer_id = $1
        ORDER BY emi_no`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query EMI schedule: %w", err)
	}
	defer rows.Close()

	var emis []model.EMISchedule
	for rows.Next() {
		e, err := scanEMI(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan EMI: %w", err)
		}
		emis = append(emis, *e)
	}

	return emis, rows.Err()
}

// GetByIDsForCustomer loads the target rows of a payment request and
// verifies they all belong to the given customer.
func (r *EMIRepository) GetByIDsForCustomer(ctx context.Context, ids []uuid.UUID, customerID uuid.UUID) ([]model.EMISchedule, error) {
	query := `SELECT` + emiColumns + `
        FROM emi_schedule
        WHERE id = ANY($1) AND customer_id = $2
        ORDER BY emi_no`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)), customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query EMI rows: %w", err)
	}
	defer rows.Close()

	var emis []model.EMISchedule
	for rows.Next() {
		e, err := scanEMI(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan EMI: %w", err)
		}
		emis = append(emis, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(emis) != len(ids) {
		return nil, fmt.Errorf("%w: one or more EMIs not found for customer", model.ErrNotFound)
	}

	return emis, nil
}

// MarkPendingApprovalTx locks the target rows for an in-flight request. The
// status='UNPAID' precondition turns the single-pending UI convention into a
// store-level invariant: a concurrent submit for the same row affects zero
// rows and the whole transaction is rolled back.
func (r *EMIRepository) MarkPendingApprovalTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID, customerID uuid.UUID) error {
	query := `
        UPDATE emi_schedule
        SET status = 'PENDING_APPROVAL',
            updated_at = NOW()
        WHERE id = ANY($1) AND customer_id = $2 AND status = 'UNPAID'
    `

	result, err := tx.ExecContext(ctx, query, pq.Array(uuidStrings(ids)), customerID)
	if err != nil {
		return fmt.Errorf("failed to lock EMI rows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check lock result: %w", err)
	}
	if affected != int64(len(ids)) {
		return fmt.Errorf("%w: one or more EMIs are not payable", model.ErrConflict)
	}

	return nil
}

// ApproveTx finalizes the target rows. The expected current status differs
// between queue approval (PENDING_APPROVAL) and admin direct approval
// (UNPAID), so the caller supplies it; a mismatch fails the transaction.
func (r *EMIRepository) ApproveTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID, from model.EMIStatus, mode model.PaymentMode, approvedBy uuid.UUID, paidAt time.Time) error {
	query := `
        UPDATE emi_schedule
        SET status = 'APPROVED',
            paid_at = $1,
            mode = $2,
            approved_by = $3,
            updated_at = NOW()
        WHERE id = ANY($4) AND status = $5
    `

	result, err := tx.ExecContext(ctx, query, paidAt, mode, approvedBy, pq.Array(uuidStrings(ids)), from)
	if err != nil {
		return fmt.Errorf("failed to approve EMI rows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check approve result: %w", err)
	}
	if affected != int64(len(ids)) {
		return fmt.Errorf("%w: one or more EMIs are not in %s state", model.ErrConflict, from)
	}

	return nil
}

// RevertToUnpaidTx undoes the submission lock on rejection. Fine fields are
// deliberately untouched: a fine flagged before submission stays visible for
// the next cycle.
func (r *EMIRepository) RevertToUnpaidTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	query := `
        UPDATE emi_schedule
        SET status = 'UNPAID',
            updated_at = NOW()
        WHERE id = ANY($1) AND status = 'PENDING_APPROVAL'
    `

	result, err := tx.ExecContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return fmt.Errorf("failed to revert EMI rows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revert result: %w", err)
	}
	if affected != int64(len(ids)) {
		return fmt.Errorf("%w: one or more EMIs are not pending approval", model.ErrConflict)
	}

	return nil
}

func (r *EMIRepository) UpdateFine(ctx context.Context, id uuid.UUID, amount int64, waived bool) error {
	query := `
        UPDATE emi_schedule
        SET fine_amount = $1,
            fine_waived = $2,
            updated_at = NOW()
        WHERE id = $3
    `

	result, err := r.db.ExecContext(ctx, query, amount, waived, id)
	if err != nil {
		return fmt.Errorf("failed to update fine: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check fine update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: EMI %s", model.ErrNotFound, id)
	}

	return nil
}

func (r *EMIRepository) UpdateDueDate(ctx context.Context, id uuid.UUID, dueDate time.Time) error {
	query := `
        UPDATE emi_schedule
        SET due_date = $1,
            updated_at = NOW()
        WHERE id = $2
    `

	result, err := r.db.ExecContext(ctx, query, dueDate, id)
	if err != nil {
		return fmt.Errorf("failed to update due date: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check due date update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: EMI %s", model.ErrNotFound, id)
	}

	return nil
}

// AccrueFines stamps the default fine on UNPAID rows that went overdue and
// have no fine assigned yet. Waived rows never re-accrue.
func (r *EMIRepository) AccrueFines(ctx context.Context, defaultFine int64, today time.Time) (int64, error) {
	query := `
        UPDATE emi_schedule
        SET fine_amount = $1,
            updated_at = NOW()
        WHERE status = 'UNPAID'
          AND due_date < $2
          AND fine_amount = 0
          AND fine_waived = FALSE
    `

	result, err := r.db.ExecContext(ctx, query, defaultFine, today)
	if err != nil {
		return 0, fmt.Errorf("failed to accrue fines: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check accrual result: %w", err)
	}

	return affected, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
