package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/bankrecon-backend/internal/api/dto"
	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// OpenItemsHandler maintains the open-item ledger over HTTP. In a federated
// deployment the ERP owns these; this surface keeps a standalone instance
// usable.
type OpenItemsHandler struct {
	*Base
}

// NewOpenItemsHandler creates a new open items handler.
func NewOpenItemsHandler(repo storage.Repository) *OpenItemsHandler {
	return &OpenItemsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/open-items.
func (h *OpenItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")

	items, err := h.repo.FindOpenItems(r.Context(), tenant)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := make([]dto.OpenItemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, toOpenItemResponse(item))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Save handles POST /api/open-items.
func (h *OpenItemsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	item, apiErr := toOpenItem(req)
	if apiErr != nil {
		h.WriteError(w, http.StatusBadRequest, *apiErr)
		return
	}

	if err := h.repo.SaveOpenItem(r.Context(), item); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	h.WriteJSON(w, http.StatusCreated, toOpenItemResponse(*item))
}

// toOpenItem validates and converts a request body to a domain open item.
func toOpenItem(req dto.OpenItemRequest) (*ledger.OpenItem, *dto.APIError) {
	fail := func(msg string) (*ledger.OpenItem, *dto.APIError) {
		err := dto.ValidationError(msg)
		return nil, &err
	}

	if req.DocumentNumber == "" {
		return fail("document_number is required")
	}

	side := ledger.Side(req.Side)
	if side != ledger.SideReceivable && side != ledger.SidePayable {
		return fail("side must be RECEIVABLE or PAYABLE")
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil || !total.IsPositive() {
		return fail("total_amount must be a positive decimal string")
	}

	open := total
	if req.OpenAmount != "" {
		open, err = decimal.NewFromString(req.OpenAmount)
		if err != nil || open.IsNegative() || open.GreaterThan(total) {
			return fail("open_amount must be a decimal between 0 and total_amount")
		}
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return fail("due_date must be YYYY-MM-DD")
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	return &ledger.OpenItem{
		ID:               id,
		DocumentNumber:   req.DocumentNumber,
		CounterpartyID:   req.CounterpartyID,
		CounterpartyName: req.CounterpartyName,
		TotalAmount:      total,
		OpenAmount:       open,
		DueDate:          dueDate,
		Side:             side,
	}, nil
}

// toOpenItemResponse converts a domain open item to an API response.
func toOpenItemResponse(item ledger.OpenItem) dto.OpenItemResponse {
	return dto.OpenItemResponse{
		ID:               item.ID,
		DocumentNumber:   item.DocumentNumber,
		CounterpartyID:   item.CounterpartyID,
		CounterpartyName: item.CounterpartyName,
		TotalAmount:      item.TotalAmount.StringFixed(2),
		OpenAmount:       item.OpenAmount.StringFixed(2),
		DueDate:          item.DueDate.Format("2006-01-02"),
		Side:             string(item.Side),
	}
}
