package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/larderapp/larder/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(manager *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, logger: logger}
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.manager.List(50)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	id, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"backup_id": id})
}

func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, size, err := h.manager.Download(r.Context(), id)
	if err != nil {
		h.logger.Error("download backup", "error", err)
		writeError(w, http.StatusNotFound, "backup not available")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}
	io.Copy(w, body)
}
