package model

import "time"

// StationType distinguishes the two kinds of physical station.
type StationType string

const (
	StationScreening StationType = "SCREENING"
	StationDonation  StationType = "DONATION"
)

// Station represents a physical bay (screening) or bed (donation).
// At most one appointment occupies a station's slot at any moment.
type Station struct {
	ID        string      `gorm:"primaryKey;size:36" json:"id"`
	EventID   string      `gorm:"size:36;index;not null" json:"eventId"`
	Type      StationType `gorm:"size:16;not null" json:"type"`
	IsActive  bool        `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	// Associations
	Event Event `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
