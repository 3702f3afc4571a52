package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/repository"
)

// ReportService produces the admin CSV exports and the overdue filter
// listings. All of it is read-only and super-admin only.
type ReportService struct {
	reportRepo *repository.ReportRepository
	logger     *logrus.Logger
}

func NewReportService(reportRepo *repository.ReportRepository, logger *logrus.Logger) *ReportService {
	return &ReportService{reportRepo: reportRepo, logger: logger}
}

var emiReportHeader = []string{
	"Customer", "IMEI", "Mobile", "Retailer", "EMI No", "Due Date",
	"Amount", "Status", "Paid At", "Mode", "Fine", "Fine Waived",
}

func writeEMIRows(w io.Writer, rows []model.EMIWithCustomer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(emiReportHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		paidAt := ""
		if row.PaidAt != nil {
			paidAt = row.PaidAt.Format("2006-01-02")
		}
		waived := "no"
		if row.FineWaived {
			waived = "yes"
		}
		record := []string{
			row.CustomerName, row.IMEI, row.Mobile, row.RetailerName,
			fmt.Sprintf("%d", row.EMINo), row.DueDate.Format("2006-01-02"),
			formatINR(row.Amount), string(row.Status), paidAt, string(row.Mode),
			formatINR(row.FineAmount), waived,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FullScheduleCSV exports every schedule row across all customers.
func (s *ReportService) FullScheduleCSV(ctx context.Context, caller model.Caller, w io.Writer) error {
	if !caller.IsAdmin() {
		return model.Forbiddenf("only the administrator exports reports")
	}
	rows, err := s.reportRepo.ListFullSchedule(ctx)
	if err != nil {
		return err
	}
	return writeEMIRows(w, rows)
}

// DueSoonCSV exports UNPAID rows falling due within the next `days` days,
// today included.
func (s *ReportService) DueSoonCSV(ctx context.Context, caller model.Caller, days int, w io.Writer) error {
	if !caller.IsAdmin() {
		return model.Forbiddenf("only the administrator exports reports")
	}
	if days < 1 {
		return model.Validationf("days must be at least 1")
	}
	today := time.Now().Truncate(24 * time.Hour)
	rows, err := s.reportRepo.ListUnpaidDueBetween(ctx, today, today.AddDate(0, 0, days))
	if err != nil {
		return err
	}
	return writeEMIRows(w, rows)
}

// OverdueCSV exports UNPAID rows overdue by more than `days` days.
func (s *ReportService) OverdueCSV(ctx context.Context, caller model.Caller, days int, w io.Writer) error {
	if !caller.IsAdmin() {
		return model.Forbiddenf("only the administrator exports reports")
	}
	if days < 0 {
		return model.Validationf("days must not be negative")
	}
	cutoff := time.Now().Truncate(24 * time.Hour).AddDate(0, 0, -days)
	rows, err := s.reportRepo.ListUnpaidOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	return writeEMIRows(w, rows)
}

// FinesCSV exports every UNPAID row carrying an unwaived fine.
func (s *ReportService) FinesCSV(ctx context.Context, caller model.Caller, w io.Writer) error {
	if !caller.IsAdmin() {
		return model.Forbiddenf("only the administrator exports reports")
	}
	rows, err := s.reportRepo.ListUnpaidWithFines(ctx)
	if err != nil {
		return err
	}
	return writeEMIRows(w, rows)
}

// CustomersCSV exports one row per customer with schedule progress.
func (s *ReportService) CustomersCSV(ctx context.Context, caller model.Caller, w io.Writer) error {
	if !caller.IsAdmin() {
		return model.Forbiddenf("only the administrator exports reports")
	}
	rows, err := s.reportRepo.ListCustomerSummaries(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"Customer", "Mobile", "Model", "IMEI", "Retailer", "Purchase Date", "Purchase Value", "EMI Amount", "Tenure", "Paid", "Status"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.CustomerName, row.Mobile, row.ModelNo, row.IMEI, row.RetailerName,
			row.PurchaseDate.Format("2006-01-02"),
			formatINR(row.PurchaseValue), formatINR(row.EMIAmount),
			fmt.Sprintf("%d", row.EMITenure),
			fmt.Sprintf("%d/%d", row.PaidCount, row.EMITenure),
			string(row.Status),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CollectionsCSV exports approved payment requests: who collected what,
// when and how.
func (s *ReportService) CollectionsCSV(ctx context.Context, caller model.Caller, w io.Writer) error {
	if !caller.IsAdmin() {
		return model.Forbiddenf("only the administrator exports reports")
	}
	rows, err := s.reportRepo.ListApprovedCollections(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"Date", "Retailer", "Customer", "IMEI", "Mode", "EMI Total", "Fine", "First EMI Charge", "Total"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.CreatedAt.Format("2006-01-02"),
			row.RetailerName, row.CustomerName, row.IMEI, string(row.Mode),
			formatINR(row.TotalAmount - row.FineAmount - row.FirstEMIChargeAmount),
			formatINR(row.FineAmount),
			formatINR(row.FirstEMIChargeAmount),
			formatINR(row.TotalAmount),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ListOverdue is the JSON counterpart of OverdueCSV for the admin filter
// tabs.
func (s *ReportService) ListOverdue(ctx context.Context, caller model.Caller, days int) ([]model.EMIWithCustomer, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator views overdue listings")
	}
	if days < 0 {
		return nil, model.Validationf("days must not be negative")
	}
	cutoff := time.Now().Truncate(24 * time.Hour).AddDate(0, 0, -days)
	return s.reportRepo.ListUnpaidOlderThan(ctx, cutoff)
}

// ListDueSoon is the JSON counterpart of DueSoonCSV.
func (s *ReportService) ListDueSoon(ctx context.Context, caller model.Caller, days int) ([]model.EMIWithCustomer, error) {
	if !caller.IsAdmin() {
		return nil, model.Forbiddenf("only the administrator views due listings")
	}
	if days < 1 {
		return nil, model.Validationf("days must be at least 1")
	}
	today := time.Now().Truncate(24 * time.Hour)
	return s.reportRepo.ListUnpaidDueBetween(ctx, today, today.AddDate(0, 0, days))
}
