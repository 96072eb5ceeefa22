package model

import "time"

// PushSubscription holds a browser push subscription registered by a donor.
type PushSubscription struct {
	Endpoint   string    `gorm:"primaryKey"`
	P256DH     string    `gorm:"column:p256dh;not null"`
	Auth       string    `gorm:"not null"`
	DonorToken string    `gorm:"index;size:128;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}
