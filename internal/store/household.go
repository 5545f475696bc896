package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/larderapp/larder/internal/model"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.RemoteID, &h.Name, &h.CreatedBy, &h.IsPrivate, &h.Synced, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.HouseholdMember, error) {
	var m model.HouseholdMember
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.UserName, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.Invitation, error) {
	var inv model.Invitation
	err := scanner.Scan(&inv.Code, &inv.HouseholdID, &inv.CreatedBy, &inv.CreatedAt, &inv.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

const householdCols = `id, remote_id, name, created_by, is_private, synced, created_at, updated_at`
const memberCols = `id, household_id, user_id, user_name, role, joined_at`
const invitationCols = `code, household_id, created_by, created_at, expires_at`

// CreateWithOwner inserts a household and its owner membership in a single
// transaction, so a crash cannot leave a household with no owner.
func (s *HouseholdStore) CreateWithOwner(name string, isPrivate bool, userID, userName string) (*model.Household, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO households (name, created_by, is_private) VALUES (?, ?, ?)`,
		name, userID, isPrivate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO household_members (household_id, user_id, user_name, role) VALUES (?, ?, ?, ?)`,
		id, userID, userName, model.RoleOwner,
	); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) GetByRemoteID(remoteID string) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE remote_id = ?`, remoteID)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by remote id: %w", err)
	}
	return h, nil
}

// SetRemoteID records the directory document ID after a successful mirror
// and marks the household synced.
func (s *HouseholdStore) SetRemoteID(id int64, remoteID string) error {
	_, err := s.db.Exec(
		`UPDATE households SET remote_id = ?, synced = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		remoteID, id,
	)
	if err != nil {
		return fmt.Errorf("set remote id: %w", err)
	}
	return nil
}

// UpsertByRemoteID inserts a household pulled from the directory if no row
// with that remote ID exists yet. It returns the local household either way.
func (s *HouseholdStore) UpsertByRemoteID(h *model.Household) (*model.Household, error) {
	if h.RemoteID == "" {
		return nil, fmt.Errorf("upsert household: empty remote id")
	}
	existing, err := s.GetByRemoteID(h.RemoteID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	// The conflict target must repeat the partial index predicate or
	// SQLite rejects the statement.
	result, err := s.db.Exec(
		`INSERT INTO households (remote_id, name, created_by, is_private, synced, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)
		 ON CONFLICT (remote_id) WHERE remote_id != '' DO NOTHING`,
		h.RemoteID, h.Name, h.CreatedBy, h.IsPrivate, h.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert household: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Lost a race with a concurrent sync; the row exists now.
		return s.GetByRemoteID(h.RemoteID)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) Update(id int64, name string, isPrivate bool) (*model.Household, error) {
	_, err := s.db.Exec(
		`UPDATE households SET name = ?, is_private = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, isPrivate, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a household; memberships, invitations and products cascade.
func (s *HouseholdStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM households WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return nil
}

func (s *HouseholdStore) AddMember(householdID int64, userID, userName, role string) (*model.HouseholdMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO household_members (household_id, user_id, user_name, role) VALUES (?, ?, ?, ?)`,
		householdID, userID, userName, role,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM household_members WHERE id = ?`, id)
	return scanMember(row)
}

// UpsertMember inserts a membership unless one already exists for the
// (household, user) pair. The UNIQUE constraint makes concurrent duplicate
// joins converge on a single row. Returns the membership and whether a new
// row was created.
func (s *HouseholdStore) UpsertMember(householdID int64, userID, userName, role string) (*model.HouseholdMember, bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO household_members (household_id, user_id, user_name, role) VALUES (?, ?, ?, ?)
		 ON CONFLICT (household_id, user_id) DO NOTHING`,
		householdID, userID, userName, role,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	m, err := s.GetMember(householdID, userID)
	if err != nil {
		return nil, false, err
	}
	return m, n > 0, nil
}

// RefreshMember inserts a membership or, when the (household, user) pair
// already exists, overwrites its role and name with the given values. The
// sync path uses this so directory-side role changes land locally; the
// join path keeps UpsertMember, which never rewrites an existing row.
func (s *HouseholdStore) RefreshMember(householdID int64, userID, userName, role string) (*model.HouseholdMember, error) {
	_, err := s.db.Exec(
		`INSERT INTO household_members (household_id, user_id, user_name, role) VALUES (?, ?, ?, ?)
		 ON CONFLICT (household_id, user_id) DO UPDATE SET user_name = excluded.user_name, role = excluded.role`,
		householdID, userID, userName, role,
	)
	if err != nil {
		return nil, fmt.Errorf("refresh member: %w", err)
	}
	return s.GetMember(householdID, userID)
}

func (s *HouseholdStore) GetMember(householdID int64, userID string) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`SELECT `+memberCols+` FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) GetMemberByID(id int64) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM household_members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member by id: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) ListMembers(householdID int64) ([]model.HouseholdMember, error) {
	rows, err := s.db.Query(
		`SELECT `+memberCols+` FROM household_members WHERE household_id = ? ORDER BY joined_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.HouseholdMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *HouseholdStore) ListHouseholdsForUser(userID string) ([]model.Household, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.remote_id, h.name, h.created_by, h.is_private, h.synced, h.created_at, h.updated_at
		 FROM households h
		 JOIN household_members hm ON h.id = hm.household_id
		 WHERE hm.user_id = ?
		 ORDER BY h.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list households for user: %w", err)
	}
	defer rows.Close()

	var households []model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, *h)
	}
	return households, rows.Err()
}

func (s *HouseholdStore) UpdateMemberRole(memberID int64, role string) (*model.HouseholdMember, error) {
	_, err := s.db.Exec(
		`UPDATE household_members SET role = ? WHERE id = ?`,
		role, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	return s.GetMemberByID(memberID)
}

func (s *HouseholdStore) RemoveMember(memberID int64) error {
	_, err := s.db.Exec(`DELETE FROM household_members WHERE id = ?`, memberID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *HouseholdStore) CreateInvitation(code string, householdID int64, createdBy string, expiresAt time.Time) (*model.Invitation, error) {
	_, err := s.db.Exec(
		`INSERT INTO invitations (code, household_id, created_by, expires_at) VALUES (?, ?, ?, ?)`,
		code, householdID, createdBy, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	return s.GetInvitation(code)
}

func (s *HouseholdStore) GetInvitation(code string) (*model.Invitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE code = ?`, code)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}
