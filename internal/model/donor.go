package model

import "time"

// Donor is a registered donor. Token is the opaque identifier donors present
// at check-in (a hashed phone number upstream); it also keys the donor's
// point-to-point realtime channel and push subscriptions.
type Donor struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Token     string    `gorm:"uniqueIndex;size:128;not null" json:"-"`
	Name      string    `gorm:"size:256" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
