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

type CustomerRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewCustomerRepository(db *sql.DB, logger *logrus.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger}
}

func (r *CustomerRepository) GetDB() *sql.DB {
	return r.db
}

const customerColumns = `
        id, retailer_id, customer_name, father_name, aadhaar_enc, aadhaar_digest,
        voter_id, address, landmark, mobile, alternate_number_1, alternate_number_2,
        model_no, imei, box_no, purchase_value, down_payment, disburse_amount,
        purchase_date, emi_due_day, emi_amount, emi_tenure,
        first_emi_charge_amount, first_emi_charge_paid_at,
        status, completion_remark, completion_date, created_at, updated_at`

func scanCustomer(row interface{ Scan(...interface{}) error }) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(
		&c.ID, &c.RetailerID, &c.CustomerName, &c.FatherName, &c.AadhaarEnc, &c.AadhaarDigest,
		&c.VoterID, &c.Address, &c.Landmark, &c.Mobile, &c.AlternateNumber1, &c.AlternateNumber2,
		&c.ModelNo, &c.IMEI, &c.BoxNo, &c.PurchaseValue, &c.DownPayment, &c.DisburseAmount,
		&c.PurchaseDate, &c.EMIDueDay, &c.EMIAmount, &c.EMITenure,
		&c.FirstEMIChargeAmount, &c.FirstEMIChargePaidAt,
		&c.Status, &c.CompletionRemark, &c.CompletionDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Customer) error {
	query := `
        INSERT INTO customers (` + customerColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
                $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
    `

	_, err := tx.ExecContext(
		ctx,
		query,
		c.ID, c.RetailerID, c.CustomerName, c.FatherName, c.AadhaarEnc, c.AadhaarDigest,
		c.VoterID, c.Address, c.Landmark, c.Mobile, c.AlternateNumber1, c.AlternateNumber2,
		c.ModelNo, c.IMEI, c.BoxNo, c.PurchaseValue, c.DownPayment, c.DisburseAmount,
		c.PurchaseDate, c.EMIDueDay, c.EMIAmount, c.EMITenure,
		c.FirstEMIChargeAmount, c.FirstEMIChargePaidAt,
		c.Status, c.CompletionRemark, c.CompletionDate, c.CreatedAt, c.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return fmt.Errorf("%w: a customer with this IMEI already exists", model.ErrIntegrity)
			case "foreign_key_violation":
				return fmt.Errorf("%w: retailer not found", model.ErrNotFound)
			}
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	query := `SELECT` + customerColumns + ` FROM customers WHERE id = $1`

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: customer %s", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return customer, nil
}

// FindByDigestAndMobile resolves the unauthenticated self-lookup: both the
// Aadhaar digest and the mobile number must match the same RUNNING record.
func (r *CustomerRepository) FindByDigestAndMobile(ctx context.Context, digest, mobile string) (*model.Customer, error) {
	query := `SELECT` + customerColumns + `
        FROM customers
        WHERE aadhaar_digest = $1 AND mobile = $2 AND status = 'RUNNING'`

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, digest, mobile))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: no matching customer", model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}

	return customer, nil
}

func (r *CustomerRepository) GetByIMEI(ctx context.Context, imei string) (*model.Customer, error) {
	query := `SELECT` + customerColumns + ` FROM customers WHERE imei = $1`

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, imei))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: customer with IMEI %s", model.ErrNotFound, imei)
		}
		return nil, fmt.Errorf("failed to get customer by IMEI: %w", err)
	}

	return customer, nil
}

func (r *CustomerRepository) GetByAadhaarDigest(ctx context.Context, digest string) (*model.Customer, error) {
	query := `SELECT` + customerColumns + ` FROM customers WHERE aadhaar_digest = $1`

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, digest))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: customer with this Aadhaar", model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get customer by Aadhaar: %w", err)
	}

	return customer, nil
}

func (r *CustomerRepository) SearchByName(ctx context.Context, name string, limit int) ([]model.Customer, error) {
	query := `SELECT` + customerColumns + `
        FROM customers
        WHERE customer_name ILIKE $1
        ORDER BY customer_name
        LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, "%"+name+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}

	return customers, rows.Err()
}

func (r *CustomerRepository) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]model.Customer, error) {
	query := `SELECT` + customerColumns + `
        FROM customers
        WHERE retailer_id = $1
        ORDER BY customer_name`

	rows, err := r.db.QueryContext(ctx, query, retailerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list retailer customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}

	return customers, rows.Err()
}

func (r *CustomerRepository) ListAll(ctx context.Context) ([]model.Customer, error) {
	query := `SELECT` + customerColumns + ` FROM customers ORDER BY customer_name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}

	return customers, rows.Err()
}

func (r *CustomerRepository) Update(ctx context.Context, c *model.Customer) error {
	query := `
        UPDATE customers
        SET retailer_id = $1,
            customer_name = $2,
            father_name = $3,
            voter_id = $4,
            address = $5,
            landmark = $6,
            mobile = $7,
            alternate_number_1 = $8,
            alternate_number_2 = $9,
            model_no = $10,
            box_no = $11,
            first_emi_charge_amount = $12,
            updated_at = NOW()
        WHERE id = $13
    `

	result, err := r.db.ExecContext(ctx, query,
		c.RetailerID, c.CustomerName, c.FatherName, c.VoterID, c.Address, c.Landmark,
		c.Mobile, c.AlternateNumber1, c.AlternateNumber2, c.ModelNo, c.BoxNo,
		c.FirstEMIChargeAmount, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: customer %s", model.ErrNotFound, c.ID)
	}

	return nil
}

// MarkComplete flips RUNNING -> COMPLETE. The status guard makes the
// transition one-way even under concurrent calls.
func (r *CustomerRepository) MarkComplete(ctx context.Context, id uuid.UUID, remark string, date time.Time) error {
	query := `
        UPDATE customers
        SET status = 'COMPLETE',
            completion_remark = $1,
            completion_date = $2,
            updated_at = NOW()
        WHERE id = $3 AND status = 'RUNNING'
    `

	result, err := r.db.ExecContext(ctx, query, remark, date, id)
	if err != nil {
		return fmt.Errorf("failed to mark customer complete: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check completion result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: customer is not RUNNING", model.ErrConflict)
	}

	return nil
}

// StampFirstChargePaidTx records the one-time first-EMI charge as paid. The
// IS NULL guard means a second approval can never re-stamp it.
func (r *CustomerRepository) StampFirstChargePaidTx(ctx context.Context, tx *sql.Tx, customerID uuid.UUID, paidAt time.Time) error {
	query := `
        UPDATE customers
        SET first_emi_charge_paid_at = $1,
            updated_at = NOW()
        WHERE id = $2 AND first_emi_charge_paid_at IS NULL
    `

	if _, err := tx.ExecContext(ctx, query, paidAt, customerID); err != nil {
		return fmt.Errorf("failed to stamp first EMI charge: %w", err)
	}

	return nil
}

// DeleteCascadeTx hard-deletes the customer with its schedule and payment
// history. Irreversible.
func (r *CustomerRepository) DeleteCascadeTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	statements := []string{
		`DELETE FROM payment_request_items
         WHERE payment_request_id IN (SELECT id FROM payment_requests WHERE customer_id = $1)`,
		`DELETE FROM payment_requests WHERE customer_id = $1`,
		`DELETE FROM emi_schedule WHERE customer_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete customer records: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: customer %s", model.ErrNotFound, id)
	}

	return nil
}

func (r *CustomerRepository) CountByRetailer(ctx context.Context, retailerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE retailer_id = $1`, retailerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count retailer customers: %w", err)
	}
	return count, nil
}
