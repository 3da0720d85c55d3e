package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/studio-leaderboards/realtime"
	"github.com/Dosada05/studio-leaderboards/services"
	"github.com/go-chi/chi/v5"
)

type WebSocketHandler struct {
	hub                *realtime.Hub
	leaderboardService services.LeaderboardService
}

func NewWebSocketHandler(hub *realtime.Hub, ls services.LeaderboardService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, leaderboardService: ls}
}

// ServeWs подключает клиента к комнате доски: /ws/leaderboards/{leaderboardID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "leaderboardID")

	// Комнаты создаются только для существующих досок.
	if _, err := h.leaderboardService.GetLeaderboard(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := h.hub.ServeWS(w, r, realtime.LeaderboardRoom(id)); err != nil {
		slog.Default().Warn("websocket connection rejected",
			slog.String("leaderboard_id", id),
			slog.Any("error", err))
	}
}
