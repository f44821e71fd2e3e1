package handler

import (
	"net/http"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/middleware"
	"WardWatchAPI/internal/websocket"
)

type WsHandler struct {
	hub       *websocket.Hub
	snapshots websocket.SnapshotSource
	queueSize int
	log       *logger.Logger
}

func NewWsHandler(hub *websocket.Hub, snapshots websocket.SnapshotSource, queueSize int, log *logger.Logger) *WsHandler {
	return &WsHandler{
		hub:       hub,
		snapshots: snapshots,
		queueSize: queueSize,
		log:       log,
	}
}

// Serve upgrades an authenticated request; it must run behind middleware.Auth.
func (h *WsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	websocket.ServeWs(h.hub, h.snapshots, id, h.queueSize, w, r, h.log)
}
