package model

import "time"

type Product struct {
	ID                int64     `json:"id"`
	HouseholdID       int64     `json:"household_id"`
	RemoteHouseholdID string    `json:"remote_household_id"`
	ProductID         string    `json:"product_id"` // stable UUID, shared with the remote directory
	CreatedBy         string    `json:"created_by"`
	Name              string    `json:"name"`
	Brand             string    `json:"brand"`
	Barcode           string    `json:"barcode"` // empty for manual entries
	Quantity          string    `json:"quantity"`
	BestBefore        time.Time `json:"best_before"`
	EnteredAt         time.Time `json:"entered_at"`
	Image             []byte    `json:"-"`
	ImageURL          string    `json:"image_url"`
	Synced            bool      `json:"synced"`
}
