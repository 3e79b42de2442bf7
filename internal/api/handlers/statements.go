package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearledger/bankrecon-backend/internal/api/dto"
	"github.com/clearledger/bankrecon-backend/internal/application/service"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// StatementsHandler handles statement import and retrieval requests.
type StatementsHandler struct {
	*Base
	importService *service.ImportService
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(repo storage.Repository, importService *service.ImportService) *StatementsHandler {
	return &StatementsHandler{
		Base:          NewBase(repo),
		importService: importService,
	}
}

// Import handles POST /api/statements - imports a raw statement file.
func (h *StatementsHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req dto.ImportStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	format := statement.Format(req.Format)
	switch format {
	case statement.FormatCAMT, statement.FormatMT940, statement.FormatCSV:
	default:
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("format must be camt053, mt940 or csv"))
		return
	}
	if req.AccountID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("account_id is required"))
		return
	}

	raw := []byte(req.Content)
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError("content_base64 is not valid base64"))
			return
		}
		raw = decoded
	}
	if len(raw) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("content or content_base64 is required"))
		return
	}

	rec, err := h.importService.Import(r.Context(), format, raw, req.AccountID)
	if err != nil {
		var formatErr *statement.FormatError
		if errors.As(err, &formatErr) {
			h.WriteError(w, http.StatusUnprocessableEntity, dto.ValidationError(formatErr.Error()))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, toStatementResponse(rec, true))
}

// List handles GET /api/statements - returns a paginated list without lines.
func (h *StatementsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 50)
	offset := ParseIntParam(r, "offset", 0)

	records, total, err := h.repo.ListStatements(r.Context(), limit, offset)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.StatementListResponse{
		Statements: make([]dto.StatementResponse, 0, len(records)),
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}
	for _, rec := range records {
		response.Statements = append(response.Statements, toStatementResponse(rec, false))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/statements/{id} - returns one statement with lines.
func (h *StatementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("statement ID is required"))
		return
	}

	rec, err := h.repo.GetStatement(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("statement"))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toStatementResponse(rec, true))
}

// toStatementResponse converts a storage record to an API response.
func toStatementResponse(rec *storage.StatementRecord, withLines bool) dto.StatementResponse {
	response := dto.StatementResponse{
		ID:             rec.ID,
		AccountID:      rec.AccountID,
		Format:         string(rec.Format),
		AccountIBAN:    rec.AccountIBAN,
		Currency:       rec.Currency,
		OpeningBalance: rec.OpeningBalance.StringFixed(2),
		ClosingBalance: rec.ClosingBalance.StringFixed(2),
		ImportedAt:     rec.ImportedAt.UTC().Format(time.RFC3339),
		LineCount:      len(rec.Lines),
	}

	for _, pe := range rec.ParseErrors {
		response.ParseErrors = append(response.ParseErrors, dto.ParseErrorItem{
			Line:   pe.Line,
			Reason: pe.Reason,
		})
	}

	if withLines {
		response.Lines = make([]dto.LineResponse, 0, len(rec.Lines))
		for _, line := range rec.Lines {
			response.Lines = append(response.Lines, toLineResponse(line))
		}
	}

	return response
}

// toLineResponse converts a persisted line to an API response.
func toLineResponse(line storage.LineRecord) dto.LineResponse {
	resp := dto.LineResponse{
		ID:                line.ID,
		LineNumber:        line.LineNumber,
		BookingDate:       line.BookingDate.Format("2006-01-02"),
		Amount:            line.Amount.StringFixed(2),
		Currency:          line.Currency,
		Reference:         line.Reference,
		RemittanceInfo:    line.RemittanceInfo,
		CounterpartyName:  line.CounterpartyName,
		CounterpartyIBAN:  line.CounterpartyIBAN,
		Status:            string(line.Status),
		MatchedOpenItemID: line.MatchedOpenItemID,
		Flags:             line.Flags,
	}
	if !line.ValueDate.IsZero() {
		resp.ValueDate = line.ValueDate.Format("2006-01-02")
	}
	return resp
}
