package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
	"github.com/Biswadipgoj/emi-portal-full/internal/service"
)

// LookupHandler serves the unauthenticated customer self-lookup. It is
// mounted outside the auth middleware; possession of the matching Aadhaar
// and mobile number pair is the access credential.
type LookupHandler struct {
	customerService *service.CustomerService
	logger          *logrus.Logger
}

func NewLookupHandler(customerService *service.CustomerService, logger *logrus.Logger) *LookupHandler {
	return &LookupHandler{customerService: customerService, logger: logger}
}

func (h *LookupHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/lookup", h.SelfLookup).Methods("POST")
}

func (h *LookupHandler) SelfLookup(w http.ResponseWriter, r *http.Request) {
	var input model.SelfLookupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	view, err := h.customerService.SelfLookup(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
