package types

import "time"

// Favorite is a user-specific bookmark of a pharmacy entry.
type Favorite struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"user_id" db:"user_id"`
	PharmacyID int       `json:"pharmacy_id" db:"pharmacy_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
