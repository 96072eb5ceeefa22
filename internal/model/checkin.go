package model

import "time"

// Checkin records the first (or most recent) check-in for an appointment.
// One row per appointment; re-checking in refreshes the timestamp.
type Checkin struct {
	AppointmentID string    `gorm:"primaryKey;size:36" json:"appointmentId"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`
}
