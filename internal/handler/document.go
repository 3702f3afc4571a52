package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/service"
)

type DocumentHandler struct {
	documentService *service.DocumentService
	logger          *logrus.Logger
}

func NewDocumentHandler(documentService *service.DocumentService, logger *logrus.Logger) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, logger: logger}
}

func (h *DocumentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/payments/{id}/receipt", h.Receipt).Methods("GET")
	router.HandleFunc("/customers/{id}/bill", h.Bill).Methods("GET")
	router.HandleFunc("/customers/{id}/noc", h.NOC).Methods("GET")
}

func (h *DocumentHandler) serveXML(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(data)
}

func (h *DocumentHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	data, err := h.documentService.PaymentReceipt(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.serveXML(w, "receipt-"+id.String()+".xml", data)
}

func (h *DocumentHandler) Bill(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	data, err := h.documentService.PurchaseBill(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.serveXML(w, "bill-"+id.String()+".xml", data)
}

func (h *DocumentHandler) NOC(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrAbort(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	data, err := h.documentService.NOC(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.serveXML(w, "noc-"+id.String()+".xml", data)
}
