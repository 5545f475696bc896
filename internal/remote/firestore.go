package remote

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	householdsCollection  = "households"
	membersCollection     = "members"
	productsCollection    = "products"
	usersCollection       = "users"
	membershipsCollection = "memberships"
	invitationsCollection = "invitations"
)

// FirestoreDirectory implements Directory on a Firestore project.
type FirestoreDirectory struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewFirestoreDirectory connects to the Firestore project. credentialsFile
// may be empty, in which case Application Default Credentials are used.
func NewFirestoreDirectory(ctx context.Context, projectID, credentialsFile string, logger *slog.Logger) (*FirestoreDirectory, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreDirectory{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (d *FirestoreDirectory) Close() error {
	return d.client.Close()
}

func (d *FirestoreDirectory) CreateHousehold(ctx context.Context, h Household) (string, error) {
	docRef := d.client.Collection(householdsCollection).NewDoc()
	if _, err := docRef.Create(ctx, householdDoc(h)); err != nil {
		return "", fmt.Errorf("create household doc: %w", err)
	}
	return docRef.ID, nil
}

func (d *FirestoreDirectory) GetHousehold(ctx context.Context, docID string) (*Household, error) {
	snap, err := d.client.Collection(householdsCollection).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("household %q: %w", docID, ErrNotFound)
		}
		return nil, fmt.Errorf("get household %q: %w", docID, err)
	}
	h := householdFromDoc(snap.Ref.ID, snap.Data())
	return &h, nil
}

// PutMember writes a membership into the household's subcollection, keyed
// by user ID so repeated writes are idempotent.
func (d *FirestoreDirectory) PutMember(ctx context.Context, householdDocID string, m Member) error {
	_, err := d.client.Collection(householdsCollection).Doc(householdDocID).
		Collection(membersCollection).Doc(m.UserID).Set(ctx, memberDoc(m))
	if err != nil {
		return fmt.Errorf("put member %q in household %q: %w", m.UserID, householdDocID, err)
	}
	return nil
}

func (d *FirestoreDirectory) ListMembers(ctx context.Context, householdDocID string) ([]Member, error) {
	iter := d.client.Collection(householdsCollection).Doc(householdDocID).
		Collection(membersCollection).Documents(ctx)
	defer iter.Stop()

	var members []Member
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate members of %q: %w", householdDocID, err)
		}
		members = append(members, memberFromDoc(doc.Data()))
	}
	return members, nil
}

func (d *FirestoreDirectory) PutProduct(ctx context.Context, householdDocID string, p Product) error {
	_, err := d.client.Collection(householdsCollection).Doc(householdDocID).
		Collection(productsCollection).Doc(p.ProductID).Set(ctx, productDoc(p))
	if err != nil {
		return fmt.Errorf("put product %q in household %q: %w", p.ProductID, householdDocID, err)
	}
	return nil
}

func (d *FirestoreDirectory) PutInvitation(ctx context.Context, inv Invitation) error {
	_, err := d.client.Collection(invitationsCollection).Doc(inv.Code).Set(ctx, invitationDoc(inv))
	if err != nil {
		return fmt.Errorf("put invitation %q: %w", inv.Code, err)
	}
	return nil
}

func (d *FirestoreDirectory) GetInvitation(ctx context.Context, code string) (*Invitation, error) {
	snap, err := d.client.Collection(invitationsCollection).Doc(code).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("invitation %q: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("get invitation %q: %w", code, err)
	}
	inv := invitationFromDoc(snap.Ref.ID, snap.Data())
	return &inv, nil
}

func (d *FirestoreDirectory) DeactivateInvitation(ctx context.Context, code string) error {
	_, err := d.client.Collection(invitationsCollection).Doc(code).
		Set(ctx, map[string]any{"active": false}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("deactivate invitation %q: %w", code, err)
	}
	return nil
}

// PutMembershipIndex records a household under users/{userID}/memberships
// so ListUserHouseholds can find it without a collection-group query.
func (d *FirestoreDirectory) PutMembershipIndex(ctx context.Context, userID, householdDocID, role string) error {
	_, err := d.client.Collection(usersCollection).Doc(userID).
		Collection(membershipsCollection).Doc(householdDocID).
		Set(ctx, map[string]any{"householdId": householdDocID, "role": role})
	if err != nil {
		return fmt.Errorf("put membership index %s/%s: %w", userID, householdDocID, err)
	}
	return nil
}

// ListUserHouseholds walks the user's membership index and resolves each
// entry to its household document. Index entries pointing at deleted
// households are skipped.
func (d *FirestoreDirectory) ListUserHouseholds(ctx context.Context, userID string) ([]Household, error) {
	iter := d.client.Collection(usersCollection).Doc(userID).
		Collection(membershipsCollection).Documents(ctx)
	defer iter.Stop()

	var households []Household
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate memberships of %q: %w", userID, err)
		}

		h, err := d.GetHousehold(ctx, doc.Ref.ID)
		if err != nil {
			d.logger.Warn("skipping unresolvable membership index entry",
				"user_id", userID, "household_doc", doc.Ref.ID, "error", err)
			continue
		}
		households = append(households, *h)
	}
	return households, nil
}
