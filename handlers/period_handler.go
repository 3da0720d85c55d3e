package handlers

import (
	"net/http"

	"github.com/Dosada05/studio-leaderboards/middleware"
	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/Dosada05/studio-leaderboards/services"
	"github.com/go-chi/chi/v5"
)

type PeriodHandler struct {
	leaderboardService services.LeaderboardService
	finalizer          services.FinalizerService
}

func NewPeriodHandler(ls services.LeaderboardService, fs services.FinalizerService) *PeriodHandler {
	return &PeriodHandler{leaderboardService: ls, finalizer: fs}
}

type finalizeRequest struct {
	Status *models.PeriodStatus `json:"status"`
}

func (h *PeriodHandler) GetStandings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "periodID")

	standings, err := h.leaderboardService.GetStandings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, standings, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Finalize закрывает период. Тело необязательно: {"status": "ARCHIVED"}.
func (h *PeriodHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "periodID")
	actor, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var req finalizeRequest
	if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	res, err := h.finalizer.Finalize(r.Context(), id, actor, services.FinalizeOptions{Status: req.Status})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
