package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/studio-leaderboards/middleware"
	"github.com/Dosada05/studio-leaderboards/services"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPeriodsLimit = 20
	maxPeriodsLimit     = 100
)

type LeaderboardHandler struct {
	leaderboardService services.LeaderboardService
	periodService      services.PeriodService
	now                func() time.Time
}

func NewLeaderboardHandler(ls services.LeaderboardService, ps services.PeriodService, now func() time.Time) *LeaderboardHandler {
	if now == nil {
		now = time.Now
	}
	return &LeaderboardHandler{leaderboardService: ls, periodService: ps, now: now}
}

func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "leaderboardID")

	lb, err := h.leaderboardService.GetLeaderboard(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": lb}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LeaderboardHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "leaderboardID")
	limit, err := queryLimit(r, defaultPeriodsLimit, maxPeriodsLimit)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	list, err := h.periodService.ListPeriods(r.Context(), id, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"periods": list}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// EnsureCurrentPeriod создаёт ACTIVE период для текущего окна, если его нет.
func (h *LeaderboardHandler) EnsureCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "leaderboardID")

	res, err := h.periodService.EnsureCurrentPeriod(r.Context(), id, h.now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	if err := writeJSON(w, status, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LeaderboardHandler) Rollover(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "leaderboardID")
	actor, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	res, err := h.periodService.Rollover(r.Context(), id, actor, h.now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
