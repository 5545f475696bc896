package model

import (
	"strings"
	"time"
)

// Membership roles, most to least privileged.
const (
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
	RoleMember   = "member"
	RoleReadonly = "readonly"
)

// ParseRole normalizes a free-text role string. Unknown values fall back to
// member so a malformed remote document never blocks a sync.
func ParseRole(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	case RoleReadonly:
		return RoleReadonly
	default:
		return RoleMember
	}
}

type Household struct {
	ID        int64     `json:"id"`
	RemoteID  string    `json:"remote_id"` // directory document ID, empty until first mirror
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	IsPrivate bool      `json:"is_private"`
	Synced    bool      `json:"synced"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HouseholdMember binds a user to a household. UserID is the string UID so
// members known only from the remote directory can be stored before they
// ever sign in on this device.
type HouseholdMember struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

type Invitation struct {
	Code        string    `json:"code"`
	HouseholdID int64     `json:"household_id"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
