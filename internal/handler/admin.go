package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/service"
)

// AdminHandler groups the super-admin surfaces: fine management, fine
// settings, report exports and the audit log.
type AdminHandler struct {
	fineService   *service.FineService
	reportService *service.ReportService
	auditor       *service.Auditor
	logger        *logrus.Logger
}

func NewAdminHandler(fineService *service.FineService, reportService *service.ReportService, auditor *service.Auditor, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		fineService:   fineService,
		reportService: reportService,
		auditor:       auditor,
		logger:        logger,
	}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/emis/{id}/waive-fine", h.WaiveFine).Methods("POST")
	router.HandleFunc("/emis/{id}/fine", h.OverrideFine).Methods("PUT")
	router.HandleFunc("/emis/{id}/due-date", h.OverrideDueDate).Methods("PUT")

	router.HandleFunc("/settings/fine", h.GetFineSettings).Methods("GET")
	router.HandleFunc("/settings/fine", h.UpdateFineSettings).Methods("PUT")

	router.HandleFunc("/reports/customers.csv", h.CustomersCSV).Methods("GET")
	router.HandleFunc("/reports/schedule.csv", h.ScheduleCSV).Methods("GET")
	router.HandleFunc("/reports/due-soon.csv", h.DueSoonCSV).Methods("GET")
	router.HandleFunc("/reports/overdue.csv", h.OverdueCSV).Methods("GET")
	router.HandleFunc("/reports/fines.csv", h.FinesCSV).Methods("GET")
	router.HandleFunc("/reports/collections.csv", h.CollectionsCSV).Methods("GET")
	router.HandleFunc("/reports/overdue", h.ListOverdue).Methods("GET")
	router.HandleFunc("/reports/due-soon", h.ListDueSoon).Methods("GET")

	router.HandleFunc("/audit-log", h.AuditLog).Methods("GET")
}

func (h *AdminHandler) WaiveFine(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	emi, err := h.fineService.WaiveFine(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, emi)
}

func (h *AdminHandler) OverrideFine(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var input model.OverrideFineInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	input.EMIID = id

	emi, err := h.fineService.OverrideFine(r.Context(), caller, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, emi)
}

func (h *AdminHandler) OverrideDueDate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var input model.OverrideDueDateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	input.EMIID = id

	emi, err := h.fineService.OverrideDueDate(r.Context(), caller, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, emi)
}

func (h *AdminHandler) GetFineSettings(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	settings, err := h.fineService.GetFineSettings(r.Context(), caller)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (h *AdminHandler) UpdateFineSettings(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	var input struct {
		DefaultFineAmount int64 `json:"default_fine_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	settings, err := h.fineService.UpdateFineSettings(r.Context(), caller, input.DefaultFineAmount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func csvHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

func queryDays(r *http.Request, fallback int) int {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil {
		return fallback
	}
	return days
}

func (h *AdminHandler) CustomersCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	csvHeaders(w, "customers.csv")
	if err := h.reportService.CustomersCSV(r.Context(), caller, w); err != nil {
		writeError(w, h.logger, err)
	}
}

func (h *AdminHandler) ScheduleCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	csvHeaders(w, "emi-schedule.csv")
	if err := h.reportService.FullScheduleCSV(r.Context(), caller, w); err != nil {
		writeError(w, h.logger, err)
	}
}

func (h *AdminHandler) DueSoonCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	csvHeaders(w, "emi-due-soon.csv")
	if err := h.reportService.DueSoonCSV(r.Context(), caller, queryDays(r, 7), w); err != nil {
		writeError(w, h.logger, err)
	}
}

func (h *AdminHandler) OverdueCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	csvHeaders(w, "emi-overdue.csv")
	if err := h.reportService.OverdueCSV(r.Context(), caller, queryDays(r, 0), w); err != nil {
		writeError(w, h.logger, err)
	}
}

func (h *AdminHandler) FinesCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	csvHeaders(w, "emi-fines.csv")
	if err := h.reportService.FinesCSV(r.Context(), caller, w); err != nil {
		writeError(w, h.logger, err)
	}
}

func (h *AdminHandler) CollectionsCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	csvHeaders(w, "collections.csv")
	if err := h.reportService.CollectionsCSV(r.Context(), caller, w); err != nil {
		writeError(w, h.logger, err)
	}
}

func (h *AdminHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	rows, err := h.reportService.ListOverdue(r.Context(), caller, queryDays(r, 0))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"emis": rows})
}

func (h *AdminHandler) ListDueSoon(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	rows, err := h.reportService.ListDueSoon(r.Context(), caller, queryDays(r, 7))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"emis": rows})
}

func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.auditor.List(r.Context(), caller, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
