package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/service"
)

type RetailerHandler struct {
	retailerService *service.RetailerService
	logger          *logrus.Logger
}

func NewRetailerHandler(retailerService *service.RetailerService, logger *logrus.Logger) *RetailerHandler {
	return &RetailerHandler{retailerService: retailerService, logger: logger}
}

func (h *RetailerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/retailers", h.Create).Methods("POST")
	router.HandleFunc("/retailers", h.List).Methods("GET")
	router.HandleFunc("/retailers/{id}", h.Get).Methods("GET")
	router.HandleFunc("/retailers/{id}", h.Update).Methods("PUT")
	router.HandleFunc("/retailers/{id}", h.Delete).Methods("DELETE")
}

func (h *RetailerHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	var input model.CreateRetailerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	retailer, err := h.retailerService.Create(r.Context(), caller, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, retailer)
}

func (h *RetailerHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}

	retailers, err := h.retailerService.List(r.Context(), caller)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"retailers": retailers})
}

func (h *RetailerHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	retailer, err := h.retailerService.Get(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, retailer)
}

func (h *RetailerHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var input model.UpdateRetailerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	input.ID = id

	retailer, err := h.retailerService.Update(r.Context(), caller, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, retailer)
}

func (h *RetailerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.retailerService.Delete(r.Context(), caller, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
