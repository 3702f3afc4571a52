package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/service"
)

type CustomerHandler struct {
	customerService  *service.CustomerService
	breakdownService *service.BreakdownService
	paymentService   *service.PaymentService
	logger           *logrus.Logger
}

func NewCustomerHandler(
	customerService *service.CustomerService,
	breakdownService *service.BreakdownService,
	paymentService *service.PaymentService,
	logger *logrus.Logger,
) *CustomerHandler {
	return &CustomerHandler{
		customerService:  customerService,
		breakdownService: breakdownService,
		paymentService:   paymentService,
		logger:           logger,
	}
}

func (h *CustomerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/customers", h.Create).Methods("POST")
	router.HandleFunc("/customers", h.List).Methods("GET")
	router.HandleFunc("/customers/search", h.Search).Methods("GET")
	router.HandleFunc("/customers/{id}", h.Get).Methods("GET")
	router.HandleFunc("/customers/{id}", h.Update).Methods("PUT")
	router.HandleFunc("/customers/{id}", h.Delete).Methods("DELETE")
	router.HandleFunc("/customers/{id}/complete", h.Complete).Methods("POST")
	router.HandleFunc("/customers/{id}/breakdown", h.Breakdown).Methods("GET")
	router.HandleFunc("/customers/{id}/payments", h.Payments).Methods("GET")
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, model.Validationf("invalid id in path")
	}
	return id, nil
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	var input model.CreateCustomerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	detail, err := h.customerService.Create(r.Context(), caller, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, detail)
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	customers, err := h.customerService.List(r.Context(), caller)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"customers": customers})
}

func (h *CustomerHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	customers, err := h.customerService.Search(r.Context(), caller, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"customers": customers})
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	detail, err := h.customerService.Get(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var input model.UpdateCustomerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	input.ID = id

	customer, err := h.customerService.Update(r.Context(), caller, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var input model.DeleteCustomerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	input.CustomerID = id

	if err := h.customerService.Delete(r.Context(), caller, input); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *CustomerHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var input model.CompleteCustomerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	input.CustomerID = id

	customer, err := h.customerService.MarkComplete(r.Context(), caller, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Ownership check rides on the detail load.
	if _, err := h.customerService.Get(r.Context(), caller, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	breakdown, err := h.breakdownService.GetDueBreakdown(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, breakdown)
}

func (h *CustomerHandler) Payments(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	requests, err := h.paymentService.ListByCustomer(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"payment_requests": requests})
}
