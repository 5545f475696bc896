package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/larderapp/larder/internal/database"
	"github.com/larderapp/larder/internal/model"
	"github.com/larderapp/larder/internal/remote"
	"github.com/larderapp/larder/internal/store"
)

// fakeDirectory serves canned households and rosters.
type fakeDirectory struct {
	households []remote.Household
	members    map[string][]remote.Member
	listErr    error
	memberErr  map[string]error
}

func (f *fakeDirectory) ListUserHouseholds(context.Context, string) ([]remote.Household, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.households, nil
}

func (f *fakeDirectory) ListMembers(_ context.Context, docID string) ([]remote.Member, error) {
	if err := f.memberErr[docID]; err != nil {
		return nil, err
	}
	return f.members[docID], nil
}

func (f *fakeDirectory) CreateHousehold(context.Context, remote.Household) (string, error) {
	return "", nil
}
func (f *fakeDirectory) GetHousehold(context.Context, string) (*remote.Household, error) {
	return nil, remote.ErrNotFound
}
func (f *fakeDirectory) PutMember(context.Context, string, remote.Member) error  { return nil }
func (f *fakeDirectory) PutProduct(context.Context, string, remote.Product) error { return nil }
func (f *fakeDirectory) PutInvitation(context.Context, remote.Invitation) error  { return nil }
func (f *fakeDirectory) GetInvitation(context.Context, string) (*remote.Invitation, error) {
	return nil, remote.ErrNotFound
}
func (f *fakeDirectory) DeactivateInvitation(context.Context, string) error         { return nil }
func (f *fakeDirectory) PutMembershipIndex(context.Context, string, string, string) error { return nil }

func setupSyncer(t *testing.T, dir remote.Directory) (*Syncer, *store.HouseholdStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hs := store.NewHouseholdStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(hs, dir, logger), hs
}

func TestSyncCreatesHouseholdsAndMembers(t *testing.T) {
	dir := &fakeDirectory{
		households: []remote.Household{
			{ID: "doc-1", Name: "Home", CreatedBy: "u1", CreatedAt: time.Now().UTC()},
			{ID: "doc-2", Name: "Cabin", CreatedBy: "u1", IsPrivate: true},
		},
		members: map[string][]remote.Member{
			"doc-1": {
				{UserID: "u1", UserName: "Alice", Role: "owner"},
				{UserID: "u2", UserName: "Bob", Role: "member"},
			},
			"doc-2": {
				{UserID: "u1", UserName: "Alice", Role: "owner"},
			},
		},
	}
	sy, hs := setupSyncer(t, dir)

	res, err := sy.SyncUserHouseholds(context.Background(), "u1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Households != 2 || res.Members != 3 || res.Skipped != 0 {
		t.Errorf("result = %+v", res)
	}

	h, err := hs.GetByRemoteID("doc-1")
	if err != nil || h == nil {
		t.Fatalf("synced household missing: %v", err)
	}
	members, _ := hs.ListMembers(h.ID)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	list, _ := hs.ListHouseholdsForUser("u1")
	if len(list) != 2 {
		t.Errorf("expected u1 in 2 households, got %d", len(list))
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	dir := &fakeDirectory{
		households: []remote.Household{{ID: "doc-1", Name: "Home", CreatedBy: "u1"}},
		members: map[string][]remote.Member{
			"doc-1": {{UserID: "u1", UserName: "Alice", Role: "owner"}},
		},
	}
	sy, hs := setupSyncer(t, dir)

	for i := 0; i < 3; i++ {
		if _, err := sy.SyncUserHouseholds(context.Background(), "u1"); err != nil {
			t.Fatalf("sync %d: %v", i, err)
		}
	}

	h, _ := hs.GetByRemoteID("doc-1")
	members, _ := hs.ListMembers(h.ID)
	if len(members) != 1 {
		t.Errorf("expected 1 member after repeated sync, got %d", len(members))
	}
}

func TestSyncAppliesRemoteRoleChange(t *testing.T) {
	dir := &fakeDirectory{
		households: []remote.Household{{ID: "doc-1", Name: "Home", CreatedBy: "u1"}},
		members: map[string][]remote.Member{
			"doc-1": {
				{UserID: "u1", UserName: "Alice", Role: "owner"},
				{UserID: "u2", UserName: "Bob", Role: "member"},
			},
		},
	}
	sy, hs := setupSyncer(t, dir)

	if _, err := sy.SyncUserHouseholds(context.Background(), "u1"); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Another device promotes Bob and renames him in the directory.
	dir.members["doc-1"][1] = remote.Member{UserID: "u2", UserName: "Robert", Role: "admin"}

	if _, err := sy.SyncUserHouseholds(context.Background(), "u1"); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	h, _ := hs.GetByRemoteID("doc-1")
	bob, _ := hs.GetMember(h.ID, "u2")
	if bob.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q after re-sync", bob.Role, model.RoleAdmin)
	}
	if bob.UserName != "Robert" {
		t.Errorf("user_name = %q, want %q after re-sync", bob.UserName, "Robert")
	}
	members, _ := hs.ListMembers(h.ID)
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}
}

func TestSyncNormalizesUnknownRoles(t *testing.T) {
	dir := &fakeDirectory{
		households: []remote.Household{{ID: "doc-1", Name: "Home", CreatedBy: "u1"}},
		members: map[string][]remote.Member{
			"doc-1": {
				{UserID: "u1", UserName: "Alice", Role: "OWNER"},
				{UserID: "u2", UserName: "Bob", Role: "chief vibes officer"},
			},
		},
	}
	sy, hs := setupSyncer(t, dir)

	if _, err := sy.SyncUserHouseholds(context.Background(), "u1"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	h, _ := hs.GetByRemoteID("doc-1")
	alice, _ := hs.GetMember(h.ID, "u1")
	if alice.Role != model.RoleOwner {
		t.Errorf("uppercase role should normalize, got %q", alice.Role)
	}
	bob, _ := hs.GetMember(h.ID, "u2")
	if bob.Role != model.RoleMember {
		t.Errorf("unknown role should fall back to member, got %q", bob.Role)
	}
}

func TestSyncSkipsMembersWithoutUserID(t *testing.T) {
	dir := &fakeDirectory{
		households: []remote.Household{{ID: "doc-1", Name: "Home", CreatedBy: "u1"}},
		members: map[string][]remote.Member{
			"doc-1": {
				{UserID: "", UserName: "Ghost"},
				{UserID: "u1", UserName: "Alice", Role: "owner"},
			},
		},
	}
	sy, hs := setupSyncer(t, dir)

	res, err := sy.SyncUserHouseholds(context.Background(), "u1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Members != 1 {
		t.Errorf("members = %d, want 1", res.Members)
	}

	h, _ := hs.GetByRemoteID("doc-1")
	members, _ := hs.ListMembers(h.ID)
	if len(members) != 1 {
		t.Errorf("expected 1 member, got %d", len(members))
	}
}

func TestSyncContinuesPastMemberFailure(t *testing.T) {
	dir := &fakeDirectory{
		households: []remote.Household{
			{ID: "doc-1", Name: "Home", CreatedBy: "u1"},
			{ID: "doc-2", Name: "Cabin", CreatedBy: "u1"},
		},
		members: map[string][]remote.Member{
			"doc-2": {{UserID: "u1", UserName: "Alice", Role: "owner"}},
		},
		memberErr: map[string]error{"doc-1": fmt.Errorf("deadline exceeded")},
	}
	sy, hs := setupSyncer(t, dir)

	res, err := sy.SyncUserHouseholds(context.Background(), "u1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Households != 2 {
		t.Errorf("households = %d, want 2", res.Households)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v, want 1 entry", res.Errors)
	}

	// The failing household still exists locally; only its roster lagged.
	if h, _ := hs.GetByRemoteID("doc-1"); h == nil {
		t.Error("doc-1 should exist despite roster failure")
	}
}

func TestSyncListFailureAborts(t *testing.T) {
	dir := &fakeDirectory{listErr: fmt.Errorf("unauthenticated")}
	sy, _ := setupSyncer(t, dir)

	if _, err := sy.SyncUserHouseholds(context.Background(), "u1"); err == nil {
		t.Fatal("expected error when directory listing fails")
	}
}
