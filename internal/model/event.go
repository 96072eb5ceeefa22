package model

import "time"

// Event represents a single blood-drive event.
type Event struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Name        string     `gorm:"size:256;not null" json:"name"`
	TargetUnits int        `gorm:"not null" json:"targetUnits"`
	StartAt     time.Time  `gorm:"not null;index" json:"startAt"`
	EndAt       *time.Time `json:"endAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Associations
	Stations     []Station     `gorm:"foreignKey:EventID" json:"-"`
	Appointments []Appointment `gorm:"foreignKey:EventID" json:"-"`
}
