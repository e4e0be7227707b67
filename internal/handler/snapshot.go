package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/snapshot"
	"github.com/dukerupert/laskutin/internal/store"
	"github.com/dukerupert/laskutin/internal/websocket"
)

const snapshotListLimit = 50

type SnapshotHandler struct {
	manager *snapshot.Manager
	records *store.SnapshotStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewSnapshotHandler(manager *snapshot.Manager, records *store.SnapshotStore, hub *websocket.Hub, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{manager: manager, records: records, hub: hub, logger: logger}
}

func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	sn, err := h.manager.Take(r.Context())
	switch {
	case errors.Is(err, snapshot.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, snapshot.ErrInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeError(w, h.logger, "snapshot failed", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.NewEvent("snapshot", "completed", sn.ID))
	}
	writeJSON(w, http.StatusCreated, sn)
}

func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.records.List(r.Context(), snapshotListLimit)
	if err != nil {
		writeError(w, h.logger, "failed to list snapshots", err)
		return
	}
	if snapshots == nil {
		snapshots = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// Download streams the encrypted snapshot as stored in the bucket.
func (h *SnapshotHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, "failed to download snapshot", err)
		return
	}

	body, sn, err := h.manager.Download(r.Context(), id)
	if errors.Is(err, snapshot.ErrDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeError(w, h.logger, "failed to download snapshot", err)
		return
	}
	if body == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshot not found"})
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sn.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(sn.SizeBytes, 10))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("snapshot download interrupted", "id", id, "error", err)
	}
}
