package types

import "time"

// Pharmacy represents a single entry in the shared pharmacy directory.
// Any authenticated user may create, update, or delete entries; the ID is
// the stable reference favorites point at.
type Pharmacy struct {
	// ID is the unique identifier of the pharmacy.
	ID int `json:"id" db:"id"`

	// Name is the pharmacy's display name.
	Name string `json:"name" db:"name"`

	// Address is the street address.
	Address string `json:"address" db:"address"`

	// City is the city the pharmacy operates in.
	City string `json:"city" db:"city"`

	// Phone is the contact phone number.
	Phone string `json:"phone" db:"phone"`

	// Schedule is the free-form opening-hours text.
	Schedule string `json:"schedule" db:"schedule"`

	// Guard indicates on-duty status for emergency pharmacy rotations.
	Guard bool `json:"guard" db:"guard"`

	// Delivery indicates whether the pharmacy offers home delivery.
	Delivery bool `json:"delivery" db:"delivery"`

	// Status is a free-form availability label (e.g., "open", "closed").
	Status string `json:"status" db:"status"`

	// Image is either an external image URL or the object-storage key of
	// an uploaded photo (see PharmacyService.StoreImage).
	Image string `json:"image" db:"image"`

	// CreatedAt is the timestamp at which the entry was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the entry.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
