package handler

import (
	"log/slog"
	"net/http"

	"github.com/larderapp/larder/internal/auth"
	"github.com/larderapp/larder/internal/push"
	"github.com/larderapp/larder/internal/store"
)

type PushHandler struct {
	pushes     *store.PushStore
	households *store.HouseholdStore
	service    *push.Service
	logger     *slog.Logger
}

func NewPushHandler(pushes *store.PushStore, households *store.HouseholdStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushes: pushes, households: households, service: svc, logger: logger}
}

// VAPIDKey returns the public key clients need to subscribe.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

type subscribeRequest struct {
	HouseholdID int64  `json:"household_id"`
	Endpoint    string `json:"endpoint"`
	P256dhKey   string `json:"p256dh_key"`
	AuthKey     string `json:"auth_key"`
	DeviceName  string `json:"device_name,omitempty"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Endpoint == "" || req.P256dhKey == "" || req.AuthKey == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	uid := auth.UserUID(r.Context())
	m, err := h.households.GetMember(req.HouseholdID, uid)
	if err != nil {
		h.logger.Error("membership lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if m == nil {
		writeError(w, http.StatusForbidden, "not a member of this household")
		return
	}

	sub, err := h.pushes.Subscribe(uid, req.HouseholdID, req.Endpoint, req.P256dhKey, req.AuthKey, req.DeviceName)
	if err != nil {
		h.logger.Error("subscribe", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.pushes.DeleteByEndpoint(req.Endpoint); err != nil {
		h.logger.Error("unsubscribe", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
