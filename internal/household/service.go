// Package household implements household lifecycle: creation, invitation
// codes, joining, and member management. Local SQLite is the source of
// truth; the remote directory is mirrored best-effort so other devices
// can discover the household.
package household

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/larderapp/larder/internal/model"
	"github.com/larderapp/larder/internal/remote"
	"github.com/larderapp/larder/internal/store"
	"github.com/larderapp/larder/internal/websocket"
)

// InviteTTL is how long generated invitation codes remain valid.
const InviteTTL = 7 * 24 * time.Hour

// Mailer sends invitation codes by email. The Postmark client implements it.
type Mailer interface {
	SendInvitation(ctx context.Context, to, code, householdName string) error
}

// Service coordinates the local household store with the remote directory.
// dir, mailer, and hub may each be nil when the corresponding feature is
// disabled; the local store is always required.
type Service struct {
	households *store.HouseholdStore
	dir        remote.Directory
	mailer     Mailer
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewService(households *store.HouseholdStore, dir remote.Directory, mailer Mailer, hub *websocket.Hub, logger *slog.Logger) *Service {
	return &Service{
		households: households,
		dir:        dir,
		mailer:     mailer,
		hub:        hub,
		logger:     logger,
	}
}

// Create inserts the household locally with the caller as owner, then
// mirrors it to the directory. Mirror failures are logged and swallowed:
// the household exists either way and a later sync can reconcile.
func (s *Service) Create(ctx context.Context, userID, userName, name string, isPrivate bool) (*model.Household, error) {
	h, err := s.households.CreateWithOwner(name, isPrivate, userID, userName)
	if err != nil {
		return nil, fmt.Errorf("create household: %w", err)
	}

	if s.dir != nil {
		s.mirrorNewHousehold(ctx, h, userID, userName)
	}

	s.broadcast("household", "created", h.ID)
	return h, nil
}

func (s *Service) mirrorNewHousehold(ctx context.Context, h *model.Household, userID, userName string) {
	docID, err := s.dir.CreateHousehold(ctx, remote.Household{
		Name:      h.Name,
		CreatedBy: userID,
		IsPrivate: h.IsPrivate,
		CreatedAt: h.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("household not mirrored to directory", "household_id", h.ID, "error", err)
		return
	}

	if err := s.dir.PutMember(ctx, docID, remote.Member{
		UserID:   userID,
		UserName: userName,
		Role:     model.RoleOwner,
		JoinedAt: h.CreatedAt,
	}); err != nil {
		s.logger.Warn("owner membership not mirrored", "household_id", h.ID, "error", err)
	}
	if err := s.dir.PutMembershipIndex(ctx, userID, docID, model.RoleOwner); err != nil {
		s.logger.Warn("membership index not mirrored", "household_id", h.ID, "error", err)
	}

	if err := s.households.SetRemoteID(h.ID, docID); err != nil {
		s.logger.Error("remote id not recorded", "household_id", h.ID, "error", err)
		return
	}
	h.RemoteID = docID
	h.Synced = true
}

// GenerateInviteCode creates a short shareable code for the household.
// The code is stored locally and mirrored to the directory when the
// household has been synced; optionally it is emailed to a recipient.
func (s *Service) GenerateInviteCode(ctx context.Context, householdID int64, userID, emailTo string) (*model.Invitation, error) {
	h, err := s.households.GetByID(householdID)
	if err != nil {
		return nil, fmt.Errorf("load household: %w", err)
	}
	if h == nil {
		return nil, fmt.Errorf("household %d not found", householdID)
	}

	code := newInviteCode()
	expiresAt := time.Now().UTC().Add(InviteTTL)
	inv, err := s.households.CreateInvitation(code, householdID, userID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	if s.dir != nil && h.RemoteID != "" {
		if err := s.dir.PutInvitation(ctx, remote.Invitation{
			Code:        code,
			HouseholdID: h.RemoteID,
			CreatedBy:   userID,
			CreatedAt:   inv.CreatedAt,
			ExpiresAt:   expiresAt,
			Active:      true,
		}); err != nil {
			s.logger.Warn("invitation not mirrored to directory", "code", code, "error", err)
		}
	}

	if s.mailer != nil && emailTo != "" {
		if err := s.mailer.SendInvitation(ctx, emailTo, code, h.Name); err != nil {
			s.logger.Warn("invitation email not sent", "to", emailTo, "error", err)
		}
	}

	return inv, nil
}

// newInviteCode derives an 8-character uppercase code from a fresh UUID.
func newInviteCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}

// JoinByCode redeems an invitation code for the calling user. The code is
// looked up locally first, then in the remote directory; a remote match
// creates a local stub household keyed by its directory ID. Returns the
// joined household and whether a new membership was created. An unknown
// code returns (nil, false, nil).
func (s *Service) JoinByCode(ctx context.Context, code, userID, userName string) (*model.Household, bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, false, nil
	}

	h, err := s.resolveInvitation(ctx, code)
	if err != nil {
		return nil, false, err
	}
	if h == nil {
		return nil, false, nil
	}

	_, created, err := s.households.UpsertMember(h.ID, userID, userName, model.RoleMember)
	if err != nil {
		return nil, false, fmt.Errorf("add member: %w", err)
	}

	if created {
		s.mirrorJoin(ctx, h, code, userID, userName)
		s.broadcast("member", "joined", h.ID)
	}
	return h, created, nil
}

// resolveInvitation maps a code to a local household row, consulting the
// directory when the code is not known locally.
func (s *Service) resolveInvitation(ctx context.Context, code string) (*model.Household, error) {
	inv, err := s.households.GetInvitation(code)
	if err != nil {
		return nil, fmt.Errorf("lookup invitation: %w", err)
	}
	if inv != nil {
		h, err := s.households.GetByID(inv.HouseholdID)
		if err != nil {
			return nil, fmt.Errorf("load invited household: %w", err)
		}
		return h, nil
	}

	if s.dir == nil {
		return nil, nil
	}

	rinv, err := s.dir.GetInvitation(ctx, code)
	if err != nil {
		if remote.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup remote invitation: %w", err)
	}
	if !rinv.Active {
		return nil, nil
	}

	rh, err := s.dir.GetHousehold(ctx, rinv.HouseholdID)
	if err != nil {
		if remote.IsNotFound(err) {
			s.logger.Warn("invitation points at missing household", "code", code, "household_doc", rinv.HouseholdID)
			return nil, nil
		}
		return nil, fmt.Errorf("load remote household: %w", err)
	}

	h, err := s.households.UpsertByRemoteID(&model.Household{
		RemoteID:  rh.ID,
		Name:      rh.Name,
		CreatedBy: rh.CreatedBy,
		IsPrivate: rh.IsPrivate,
		CreatedAt: rh.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("materialize remote household: %w", err)
	}
	return h, nil
}

func (s *Service) mirrorJoin(ctx context.Context, h *model.Household, code, userID, userName string) {
	if s.dir == nil || h.RemoteID == "" {
		return
	}
	if err := s.dir.PutMember(ctx, h.RemoteID, remote.Member{
		UserID:   userID,
		UserName: userName,
		Role:     model.RoleMember,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("joined membership not mirrored", "household_id", h.ID, "error", err)
	}
	if err := s.dir.PutMembershipIndex(ctx, userID, h.RemoteID, model.RoleMember); err != nil {
		s.logger.Warn("membership index not mirrored", "household_id", h.ID, "error", err)
	}
	if err := s.dir.DeactivateInvitation(ctx, code); err != nil {
		s.logger.Warn("invitation not deactivated in directory", "code", code, "error", err)
	}
}

// UpdateMemberRole normalizes and applies a role change, mirroring it to
// the directory when the household is synced.
func (s *Service) UpdateMemberRole(ctx context.Context, memberID int64, role string) error {
	normalized := model.ParseRole(role)

	m, err := s.households.GetMemberByID(memberID)
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	if m == nil {
		return fmt.Errorf("member %d not found", memberID)
	}

	if _, err := s.households.UpdateMemberRole(memberID, normalized); err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	if s.dir != nil {
		h, err := s.households.GetByID(m.HouseholdID)
		if err == nil && h != nil && h.RemoteID != "" {
			if err := s.dir.PutMember(ctx, h.RemoteID, remote.Member{
				UserID:   m.UserID,
				UserName: m.UserName,
				Role:     normalized,
				JoinedAt: m.JoinedAt,
			}); err != nil {
				s.logger.Warn("role change not mirrored", "member_id", memberID, "error", err)
			}
		}
	}

	s.broadcast("member", "updated", m.HouseholdID)
	return nil
}

// RemoveMember deletes a membership row. The directory copy is left in
// place; removal propagation is a sync concern.
func (s *Service) RemoveMember(memberID int64) error {
	m, err := s.households.GetMemberByID(memberID)
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	if m == nil {
		return nil
	}
	if err := s.households.RemoveMember(memberID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.broadcast("member", "removed", m.HouseholdID)
	return nil
}

// Update renames a household and sets its privacy flag. The change is
// local only; the directory copy follows on the next mirror of any
// member write, so no remote call happens here.
func (s *Service) Update(ctx context.Context, householdID int64, name string, isPrivate bool) (*model.Household, error) {
	h, err := s.households.Update(householdID, name, isPrivate)
	if err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	s.broadcast("household", "updated", householdID)
	return h, nil
}

// Delete removes a household with all its memberships, invitations and
// products. The directory copy is left in place, matching RemoveMember.
func (s *Service) Delete(ctx context.Context, householdID int64) error {
	if err := s.households.Delete(householdID); err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	s.broadcast("household", "deleted", householdID)
	return nil
}

// Get returns a household by local ID, nil when absent.
func (s *Service) Get(id int64) (*model.Household, error) {
	return s.households.GetByID(id)
}

// ListForUser returns the households the user belongs to, sorted by name.
func (s *Service) ListForUser(userID string) ([]model.Household, error) {
	return s.households.ListHouseholdsForUser(userID)
}

// Members returns the household's membership roster in join order.
func (s *Service) Members(householdID int64) ([]model.HouseholdMember, error) {
	return s.households.ListMembers(householdID)
}

func (s *Service) broadcast(entity, action string, id int64) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(websocket.NewMessage(entity, action, id, nil))
}
