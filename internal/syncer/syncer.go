// Package syncer pulls a user's households and memberships from the
// remote directory into the local store. Sync is pull-only and additive:
// rows are created or updated, never deleted, so a partial sync can
// always be retried.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/larderapp/larder/internal/model"
	"github.com/larderapp/larder/internal/remote"
	"github.com/larderapp/larder/internal/store"
)

// Result summarizes one sync pass. Errors holds per-item failures that
// did not abort the pass.
type Result struct {
	Households int      `json:"households"`
	Members    int      `json:"members"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// Syncer mirrors directory state into the local household store.
type Syncer struct {
	households *store.HouseholdStore
	dir        remote.Directory
	logger     *slog.Logger
}

func New(households *store.HouseholdStore, dir remote.Directory, logger *slog.Logger) *Syncer {
	return &Syncer{households: households, dir: dir, logger: logger}
}

// SyncUserHouseholds fetches every household the user belongs to and
// upserts it, then reconciles each household's member roster. A household
// that fails to materialize is skipped and recorded in Result.Errors; the
// pass continues with the rest.
func (s *Syncer) SyncUserHouseholds(ctx context.Context, userID string) (*Result, error) {
	remoteHouseholds, err := s.dir.ListUserHouseholds(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list remote households: %w", err)
	}

	res := &Result{}
	for _, rh := range remoteHouseholds {
		h, err := s.households.UpsertByRemoteID(&model.Household{
			RemoteID:  rh.ID,
			Name:      rh.Name,
			CreatedBy: rh.CreatedBy,
			IsPrivate: rh.IsPrivate,
			CreatedAt: rh.CreatedAt,
		})
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("household %s: %v", rh.ID, err))
			s.logger.Warn("household skipped during sync", "household_doc", rh.ID, "error", err)
			continue
		}
		res.Households++

		n, err := s.syncMembers(ctx, h, rh.ID)
		res.Members += n
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("members of %s: %v", rh.ID, err))
			s.logger.Warn("member sync incomplete", "household_doc", rh.ID, "error", err)
		}
	}

	s.logger.Info("sync pass complete", "user_id", userID,
		"households", res.Households, "members", res.Members, "skipped", res.Skipped)
	return res, nil
}

// syncMembers upserts the directory roster into the local membership
// table. Roles are free text in the directory, so each one is normalized
// before it touches the database.
func (s *Syncer) syncMembers(ctx context.Context, h *model.Household, docID string) (int, error) {
	members, err := s.dir.ListMembers(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}

	synced := 0
	for _, rm := range members {
		if rm.UserID == "" {
			continue
		}
		role := model.ParseRole(rm.Role)
		if _, err := s.households.RefreshMember(h.ID, rm.UserID, rm.UserName, role); err != nil {
			return synced, fmt.Errorf("refresh member %s: %w", rm.UserID, err)
		}
		synced++
	}
	return synced, nil
}
