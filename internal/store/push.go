package store

import (
	"database/sql"
	"fmt"

	"github.com/larderapp/larder/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.HouseholdID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

const subscriptionCols = `id, user_id, household_id, endpoint, p256dh_key, auth_key, device_name, created_at`

// Subscribe registers a push subscription, replacing any existing row for
// the same endpoint (a browser re-subscribe rotates keys).
func (s *PushStore) Subscribe(userID string, householdID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	result, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, household_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			household_id = excluded.household_id,
			p256dh_key = excluded.p256dh_key,
			auth_key = excluded.auth_key,
			device_name = excluded.device_name`,
		userID, householdID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		// Upsert hit the update path; look up by endpoint instead.
		row = s.db.QueryRow(`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
		return scanSubscription(row)
	}
	return sub, err
}

func (s *PushStore) ListByHousehold(householdID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE household_id = ?`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) ListByUser(userID string) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by user: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete subscription by endpoint: %w", err)
	}
	return nil
}

// WasSent reports whether a notification with the given reference was
// already recorded for the household.
func (s *PushStore) WasSent(householdID int64, notifType, refID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications_sent WHERE household_id = ? AND notification_type = ? AND reference_id = ?`,
		householdID, notifType, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent: %w", err)
	}
	return count > 0, nil
}

func (s *PushStore) RecordSent(householdID int64, notifType, refID string) error {
	_, err := s.db.Exec(
		`INSERT INTO notifications_sent (household_id, notification_type, reference_id) VALUES (?, ?, ?)
		 ON CONFLICT (household_id, notification_type, reference_id) DO NOTHING`,
		householdID, notifType, refID,
	)
	if err != nil {
		return fmt.Errorf("record sent: %w", err)
	}
	return nil
}
