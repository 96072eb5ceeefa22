package model

import "time"

// AppointmentStatus is the pipeline position of an appointment. Transitions
// move forward only; NO_SHOW is the forced side-exit from BOOKED/CHECKED_IN.
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "BOOKED"
	StatusCheckedIn AppointmentStatus = "CHECKED_IN"
	StatusScreening AppointmentStatus = "SCREENING"
	StatusDonating  AppointmentStatus = "DONATING"
	StatusDone      AppointmentStatus = "DONE"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// Terminal reports whether the status ends the pipeline.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusDone || s == StatusNoShow
}

// Appointment tracks one donor's slot at one event. StationID is set while
// the appointment is queued for or occupying a station and cleared when the
// donor leaves the bay/bed.
type Appointment struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	EventID   string            `gorm:"size:36;index;not null" json:"eventId"`
	DonorID   string            `gorm:"size:36;index;not null" json:"donorId"`
	StationID *string           `gorm:"size:36;index" json:"stationId"`
	Status    AppointmentStatus `gorm:"size:16;index;not null" json:"status"`
	SlotTime  time.Time         `gorm:"not null;index" json:"slotTime"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`

	// Associations
	Event   Event    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Donor   Donor    `json:"-"`
	Checkin *Checkin `gorm:"foreignKey:AppointmentID" json:"-"`
}
