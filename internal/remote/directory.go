// Package remote talks to the cloud household directory: a Firestore
// document tree used for cross-device visibility. Documents are schemaless
// maps written by multiple app versions, so all reads go through tolerant
// field coercion and never trust types.
//
// Layout:
//
//	households/{docID}                     household document
//	households/{docID}/members/{userID}    membership subcollection
//	households/{docID}/products/{productID}
//	users/{userID}/memberships/{docID}     index of a user's households
//	invitations/{code}
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("remote: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type Household struct {
	ID        string // directory document ID
	Name      string
	CreatedBy string
	IsPrivate bool
	CreatedAt time.Time
}

type Member struct {
	UserID   string
	UserName string
	Role     string // free text; callers normalize
	JoinedAt time.Time
}

type Product struct {
	ProductID  string
	CreatedBy  string
	Name       string
	Brand      string
	Barcode    string
	Quantity   string
	BestBefore time.Time
	EnteredAt  time.Time
	ImageURL   string
}

type Invitation struct {
	Code        string
	HouseholdID string // directory document ID of the target household
	CreatedBy   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Active      bool
}

// Directory is the remote household directory contract. The Firestore
// implementation is the only production one; tests use fakes.
type Directory interface {
	CreateHousehold(ctx context.Context, h Household) (string, error)
	GetHousehold(ctx context.Context, docID string) (*Household, error)
	PutMember(ctx context.Context, householdDocID string, m Member) error
	ListMembers(ctx context.Context, householdDocID string) ([]Member, error)
	PutProduct(ctx context.Context, householdDocID string, p Product) error
	PutInvitation(ctx context.Context, inv Invitation) error
	GetInvitation(ctx context.Context, code string) (*Invitation, error)
	DeactivateInvitation(ctx context.Context, code string) error
	PutMembershipIndex(ctx context.Context, userID, householdDocID, role string) error
	ListUserHouseholds(ctx context.Context, userID string) ([]Household, error)
}
