package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearledger/bankrecon-backend/internal/api/dto"
	"github.com/clearledger/bankrecon-backend/internal/application/service"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// ReconciliationHandler handles balance reconciliation requests.
type ReconciliationHandler struct {
	*Base
	reconService *service.ReconService
}

// NewReconciliationHandler creates a new reconciliation handler.
func NewReconciliationHandler(repo storage.Repository, reconService *service.ReconService) *ReconciliationHandler {
	return &ReconciliationHandler{
		Base:         NewBase(repo),
		reconService: reconService,
	}
}

// Reconcile handles POST /api/statements/{id}/reconcile. The domain result
// already carries JSON tags, so it goes out as-is.
func (h *ReconciliationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	statementID := chi.URLParam(r, "id")
	if statementID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("statement ID is required"))
		return
	}

	var req dto.ReconcileRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
			return
		}
	}

	result, err := h.reconService.Reconcile(r.Context(), statementID, req.AutoBook)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("statement"))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}
