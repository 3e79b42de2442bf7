package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/clearledger/bankrecon-backend/internal/api/dto"
	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// RulesHandler handles matching rule configuration requests.
type RulesHandler struct {
	*Base
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(repo storage.Repository) *RulesHandler {
	return &RulesHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/rules - returns rules sorted by priority.
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := ParseBoolParam(r, "active_only", false)

	rules, err := h.repo.ListRules(r.Context(), activeOnly)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := make([]dto.RuleResponse, 0, len(rules))
	for _, rule := range rules {
		response = append(response, toRuleResponse(rule))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Save handles POST /api/rules - creates or updates a rule, keyed by name.
func (h *RulesHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req dto.RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.Name == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("name is required"))
		return
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("confidence_threshold must be between 0 and 1"))
		return
	}

	params, err := matching.UnmarshalParams(matching.RuleType(req.Type), req.Params)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	rule := matching.Rule{
		ID:                  uuid.New().String(),
		Name:                req.Name,
		Priority:            req.Priority,
		Type:                matching.RuleType(req.Type),
		Params:              params,
		ConfidenceThreshold: req.ConfidenceThreshold,
		AutoApply:           req.AutoApply,
		Active:              req.Active,
	}

	if err := h.repo.SaveRule(r.Context(), &rule); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, toRuleResponse(rule))
}

// toRuleResponse converts a domain rule to an API response.
func toRuleResponse(rule matching.Rule) dto.RuleResponse {
	return dto.RuleResponse{
		ID:                  rule.ID,
		Name:                rule.Name,
		Priority:            rule.Priority,
		Type:                string(rule.Type),
		Params:              rule.Params,
		ConfidenceThreshold: rule.ConfidenceThreshold,
		AutoApply:           rule.AutoApply,
		Active:              rule.Active,
	}
}
