package handler

import (
	"log/slog"
	"net/http"

	"github.com/larderapp/larder/internal/auth"
	"github.com/larderapp/larder/internal/syncer"
)

type SyncHandler struct {
	syncer *syncer.Syncer // nil when the directory is disabled
	logger *slog.Logger
}

func NewSyncHandler(sy *syncer.Syncer, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{syncer: sy, logger: logger}
}

// Run pulls the caller's households and memberships from the directory.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}

	res, err := h.syncer.SyncUserHouseholds(r.Context(), auth.UserUID(r.Context()))
	if err != nil {
		h.logger.Error("sync", "error", err)
		writeError(w, http.StatusBadGateway, "directory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
