package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/larderapp/larder/internal/auth"
	"github.com/larderapp/larder/internal/household"
	"github.com/larderapp/larder/internal/model"
	"github.com/larderapp/larder/internal/store"
)

type HouseholdHandler struct {
	svc        *household.Service
	households *store.HouseholdStore
	logger     *slog.Logger
}

func NewHouseholdHandler(svc *household.Service, households *store.HouseholdStore, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{svc: svc, households: households, logger: logger}
}

// requireMember loads the caller's membership in the household, writing
// the error response when it is absent.
func (h *HouseholdHandler) requireMember(w http.ResponseWriter, r *http.Request, householdID int64) *model.HouseholdMember {
	m, err := h.households.GetMember(householdID, auth.UserUID(r.Context()))
	if err != nil {
		h.logger.Error("membership lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if m == nil {
		writeError(w, http.StatusForbidden, "not a member of this household")
		return nil
	}
	return m
}

func canManageMembers(role string) bool {
	return role == model.RoleOwner || role == model.RoleAdmin
}

type createHouseholdRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHouseholdRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	hh, err := h.svc.Create(r.Context(), ac.UserUID, ac.UserName, req.Name, req.IsPrivate)
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, hh)
}

func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	households, err := h.svc.ListForUser(auth.UserUID(r.Context()))
	if err != nil {
		h.logger.Error("list households", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if households == nil {
		households = []model.Household{}
	}
	writeJSON(w, http.StatusOK, households)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.requireMember(w, r, id) == nil {
		return
	}

	hh, err := h.svc.Get(id)
	if err != nil {
		h.logger.Error("get household", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if hh == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := h.requireMember(w, r, id)
	if caller == nil {
		return
	}
	if !canManageMembers(caller.Role) {
		writeError(w, http.StatusForbidden, "only owners and admins can edit the household")
		return
	}

	var req createHouseholdRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	hh, err := h.svc.Update(r.Context(), id, req.Name, req.IsPrivate)
	if err != nil {
		h.logger.Error("update household", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := h.requireMember(w, r, id)
	if caller == nil {
		return
	}
	if caller.Role != model.RoleOwner {
		writeError(w, http.StatusForbidden, "only the owner can delete a household")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete household", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseholdHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.requireMember(w, r, id) == nil {
		return
	}

	members, err := h.svc.Members(id)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if members == nil {
		members = []model.HouseholdMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (h *HouseholdHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	memberID, err := pathID(r, "member_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := h.requireMember(w, r, id)
	if caller == nil {
		return
	}
	if !canManageMembers(caller.Role) {
		writeError(w, http.StatusForbidden, "only owners and admins can change roles")
		return
	}

	target, err := h.households.GetMemberByID(memberID)
	if err != nil {
		h.logger.Error("member lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if target == nil || target.HouseholdID != id {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	var req updateRoleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateMemberRole(r.Context(), memberID, req.Role); err != nil {
		h.logger.Error("update member role", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseholdHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	memberID, err := pathID(r, "member_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := h.requireMember(w, r, id)
	if caller == nil {
		return
	}

	target, err := h.households.GetMemberByID(memberID)
	if err != nil {
		h.logger.Error("member lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if target == nil || target.HouseholdID != id {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	// Members may leave on their own; removing someone else needs a
	// manager role.
	if target.UserID != caller.UserID && !canManageMembers(caller.Role) {
		writeError(w, http.StatusForbidden, "only owners and admins can remove members")
		return
	}

	if err := h.svc.RemoveMember(memberID); err != nil {
		h.logger.Error("remove member", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	Email string `json:"email,omitempty"`
}

func (h *HouseholdHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := h.requireMember(w, r, id)
	if caller == nil {
		return
	}
	if caller.Role == model.RoleReadonly {
		writeError(w, http.StatusForbidden, "readonly members cannot invite")
		return
	}

	var req inviteRequest
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	inv, err := h.svc.GenerateInviteCode(r.Context(), id, caller.UserID, strings.TrimSpace(req.Email))
	if err != nil {
		h.logger.Error("generate invite", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

type joinRequest struct {
	Code string `json:"code"`
}

type joinResponse struct {
	Household *model.Household `json:"household"`
	Joined    bool             `json:"joined"`
}

func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	hh, created, err := h.svc.JoinByCode(r.Context(), req.Code, ac.UserUID, ac.UserName)
	if err != nil {
		h.logger.Error("join by code", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if hh == nil {
		writeError(w, http.StatusNotFound, "invitation code not recognized")
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Household: hh, Joined: created})
}
