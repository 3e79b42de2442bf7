package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearledger/bankrecon-backend/internal/api/dto"
	"github.com/clearledger/bankrecon-backend/internal/application/service"
	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// MatchingHandler handles matching run, manual match and reversal requests.
type MatchingHandler struct {
	*Base
	matchService *service.MatchService
}

// NewMatchingHandler creates a new matching handler.
func NewMatchingHandler(repo storage.Repository, matchService *service.MatchService) *MatchingHandler {
	return &MatchingHandler{
		Base:         NewBase(repo),
		matchService: matchService,
	}
}

// Run handles POST /api/statements/{id}/match - runs the rule engine over
// the statement's unmatched lines.
func (h *MatchingHandler) Run(w http.ResponseWriter, r *http.Request) {
	statementID := chi.URLParam(r, "id")
	if statementID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("statement ID is required"))
		return
	}

	var req dto.MatchStatementRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
			return
		}
	}

	if _, err := h.repo.GetStatement(r.Context(), statementID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("statement"))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	results, err := h.matchService.RunMatching(r.Context(), service.MatchRequest{
		StatementID:   statementID,
		Tenant:        req.Tenant,
		AutoApply:     req.AutoApply,
		MinConfidence: req.MinConfidence,
	})
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.MatchRunResponse{
		StatementID: statementID,
		Evaluated:   len(results),
		Results:     make([]dto.MatchResultResponse, 0, len(results)),
	}
	for _, result := range results {
		if result.AutoMatched {
			response.AutoApplied++
		}
		response.Results = append(response.Results, toMatchResultResponse(result))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Apply handles POST /api/lines/{id}/match - confirms a manual match.
func (h *MatchingHandler) Apply(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "id")
	if lineID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("line ID is required"))
		return
	}

	var req dto.ManualMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.OpenItemID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("open_item_id is required"))
		return
	}

	result, err := h.matchService.ApplyManual(r.Context(), lineID, req.OpenItemID)
	if err != nil {
		h.writeMatchError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toMatchResultResponse(*result))
}

// Reverse handles POST /api/lines/{id}/reverse - undoes a match.
func (h *MatchingHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "id")
	if lineID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("line ID is required"))
		return
	}

	if err := h.matchService.Reverse(r.Context(), lineID); err != nil {
		h.writeMatchError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeMatchError maps domain errors from match operations to HTTP codes.
func (h *MatchingHandler) writeMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("resource"))
	case errors.Is(err, storage.ErrLineAlreadyMatched):
		h.WriteError(w, http.StatusConflict, dto.ConflictError("line is already matched"))
	case errors.Is(err, ledger.ErrSettlementConflict):
		h.WriteError(w, http.StatusConflict, dto.ConflictError("open item cannot absorb the settlement"))
	default:
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// toMatchResultResponse converts a domain match result to an API response.
func toMatchResultResponse(result matching.Result) dto.MatchResultResponse {
	resp := dto.MatchResultResponse{
		LineID:           result.LineID,
		ChosenOpenItemID: result.ChosenOpenItemID,
		Matched:          result.Matched,
		Confidence:       result.Confidence,
		AutoMatched:      result.AutoMatched,
		MatchedBy:        result.MatchedBy,
		Suggestions:      make([]dto.SuggestionResponse, 0, len(result.Suggestions)),
	}
	for _, s := range result.Suggestions {
		resp.Suggestions = append(resp.Suggestions, dto.SuggestionResponse{
			OpenItemID:         s.OpenItemID,
			Confidence:         s.Confidence,
			RuleType:           string(s.RuleType),
			RuleName:           s.RuleName,
			Reason:             s.Reason,
			AmountDifference:   s.AmountDifference.StringFixed(2),
			DateDifferenceDays: s.DateDifferenceDays,
		})
	}
	return resp
}
