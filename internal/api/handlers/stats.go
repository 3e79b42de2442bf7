package handlers

import (
	"net/http"

	"github.com/clearledger/bankrecon-backend/internal/api/dto"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// StatsHandler handles statistics requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns import and matching aggregates.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.StatsResponse{
		StatementCount:   stats.StatementCount,
		LineCount:        stats.LineCount,
		MatchedLineCount: stats.MatchedLineCount,
		OpenItemCount:    stats.OpenItemCount,
		AutoMatchedCount: stats.AutoMatchedCount,
		TotalMatched:     stats.TotalMatched,
	})
}
