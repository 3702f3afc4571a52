package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
)

// ReportRepository serves the flattened joins behind the admin CSV exports
// and overdue filters.
type ReportRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewReportRepository(db *sql.DB, logger *logrus.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

const emiWithCustomerColumns = `
        e.id, e.customer_id, e.emi_no, e.due_date, e.amount, e.status, e.paid_at,
        COALESCE(e.mode, ''), e.fine_amount, e.fine_waived,
        c.customer_name, c.imei, c.mobile, rt.name`

const emiWithCustomerJoin = `
        FROM emi_schedule e
        JOIN customers c ON c.id = e.customer_id
        JOIN retailers rt ON rt.id = c.retailer_id`

func (r *ReportRepository) queryEMIRows(ctx context.Context, query string, args ...interface{}) ([]model.EMIWithCustomer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule report: %w", err)
	}
	defer rows.Close()

	var out []model.EMIWithCustomer
	for rows.Next() {
		var row model.EMIWithCustomer
		if err := rows.Scan(
			&row.EMIID, &row.CustomerID, &row.EMINo, &row.DueDate, &row.Amount, &row.Status,
			&row.PaidAt, &row.Mode, &row.FineAmount, &row.FineWaived,
			&row.CustomerName, &row.IMEI, &row.Mobile, &row.RetailerName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func (r *ReportRepository) ListFullSchedule(ctx context.Context) ([]model.EMIWithCustomer, error) {
	query := `SELECT` + emiWithCustomerColumns + emiWithCustomerJoin + ` ORDER BY e.due_date`
	return r.queryEMIRows(ctx, query)
}

// ListUnpaidDueBetween returns UNPAID rows falling due in [from, to].
func (r *ReportRepository) ListUnpaidDueBetween(ctx context.Context, from, to time.Time) ([]model.EMIWithCustomer, error) {
	query := `SELECT` + emiWithCustomerColumns + emiWithCustomerJoin + `
        WHERE e.status = 'UNPAID' AND e.due_date >= $1 AND e.due_date <= $2
        ORDER BY e.due_date`
	return r.queryEMIRows(ctx, query, from, to)
}

// ListUnpaidOlderThan returns UNPAID rows whose due date is before cutoff.
func (r *ReportRepository) ListUnpaidOlderThan(ctx context.Context, cutoff time.Time) ([]model.EMIWithCustomer, error) {
	query := `SELECT` + emiWithCustomerColumns + emiWithCustomerJoin + `
        WHERE e.status = 'UNPAID' AND e.due_date < $1
        ORDER BY e.due_date`
	return r.queryEMIRows(ctx, query, cutoff)
}

// ListUnpaidWithFines returns UNPAID rows carrying an unwaived fine.
func (r *ReportRepository) ListUnpaidWithFines(ctx context.Context) ([]model.EMIWithCustomer, error) {
	query := `SELECT` + emiWithCustomerColumns + emiWithCustomerJoin + `
        WHERE e.status = 'UNPAID' AND e.fine_amount > 0 AND e.fine_waived = FALSE
        ORDER BY e.due_date`
	return r.queryEMIRows(ctx, query)
}

// ListCustomerSummaries returns every customer with retailer name and the
// count of approved installments, newest purchase first.
func (r *ReportRepository) ListCustomerSummaries(ctx context.Context) ([]model.CustomerReportRow, error) {
	query := `
        SELECT c.id, c.customer_name, c.mobile, c.model_no, c.imei, rt.name,
               c.purchase_date, c.purchase_value, c.emi_amount, c.emi_tenure, c.status,
               COUNT(e.id) FILTER (WHERE e.status = 'APPROVED')
        FROM customers c
        JOIN retailers rt ON rt.id = c.retailer_id
        LEFT JOIN emi_schedule e ON e.customer_id = c.id
        GROUP BY c.id, rt.name
        ORDER BY c.purchase_date DESC
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer summaries: %w", err)
	}
	defer rows.Close()

	var out []model.CustomerReportRow
	for rows.Next() {
		var row model.CustomerReportRow
		if err := rows.Scan(
			&row.CustomerID, &row.CustomerName, &row.Mobile, &row.ModelNo, &row.IMEI,
			&row.RetailerName, &row.PurchaseDate, &row.PurchaseValue, &row.EMIAmount,
			&row.EMITenure, &row.Status, &row.PaidCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan customer summary: %w", err)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// ListApprovedCollections returns the approved requests joined with retailer
// and customer identity, newest first.
func (r *ReportRepository) ListApprovedCollections(ctx context.Context) ([]model.CollectionRow, error) {
	query := `
        SELECT p.created_at, p.total_amount, p.fine_amount, p.first_emi_charge_amount, p.mode,
               rt.name, c.customer_name, c.imei
        FROM payment_requests p
        JOIN retailers rt ON rt.id = p.retailer_id
        JOIN customers c ON c.id = p.customer_id
        WHERE p.status = 'APPROVED'
        ORDER BY p.created_at DESC
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var out []model.CollectionRow
	for rows.Next() {
		var row model.CollectionRow
		if err := rows.Scan(
			&row.CreatedAt, &row.TotalAmount, &row.FineAmount, &row.FirstEMIChargeAmount,
			&row.Mode, &row.RetailerName, &row.CustomerName, &row.IMEI,
		); err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
