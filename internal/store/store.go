package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"blooddrive-queue-backend/internal/model"
)

// Sentinel errors returned by store operations. Callers distinguish the
// not-found family (bad reference), conflicts (optimistic update lost a race)
// and the empty-queue outcome of an advance.
var (
	ErrEventNotFound       = errors.New("event not found")
	ErrStationNotFound     = errors.New("station not found")
	ErrDonorNotFound       = errors.New("donor not recognized")
	ErrAppointmentNotFound = errors.New("no active appointment for donor")
	ErrNoDonorsWaiting     = errors.New("no donors waiting")
	ErrConflict            = errors.New("appointment changed concurrently")
)

// AdvanceResult describes a completed station transition.
type AdvanceResult struct {
	Appointment    model.Appointment
	PreviousStatus model.AppointmentStatus
	NextStatus     model.AppointmentStatus
	DonorToken     string
	// Called is true when a waiting donor was pulled into the station's
	// slot, as opposed to an occupant being released onward.
	Called bool
}

// SweepResult reports a completed no-show sweep.
type SweepResult struct {
	Updated  int64
	EventIDs []string
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)

	CreateStation(ctx context.Context, station *model.Station) error
	GetStation(ctx context.Context, id string) (*model.Station, error)
	ListStations(ctx context.Context, eventID string) ([]model.Station, error)
	SetStationActive(ctx context.Context, id string, active bool) (*model.Station, error)

	CreateDonor(ctx context.Context, donor *model.Donor) error
	FindOrCreateDonor(ctx context.Context, token, name string) (*model.Donor, error)
	CreateAppointment(ctx context.Context, appt *model.Appointment) error
	ListAppointments(ctx context.Context, eventID string, statuses []model.AppointmentStatus) ([]model.Appointment, error)
	CountByStatus(ctx context.Context, eventID string) (map[model.AppointmentStatus]int64, error)

	CheckIn(ctx context.Context, eventID, donorToken string, now time.Time) (*model.Appointment, error)
	Advance(ctx context.Context, stationID string, now time.Time) (*AdvanceResult, error)
	SweepNoShows(ctx context.Context, now time.Time, grace time.Duration) (*SweepResult, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsByToken(ctx context.Context, donorToken string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for wiring (worker pool, migrations).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// transition applies a conditional status update: the row is written only if
// it still holds the expected status. A zero row count means another
// transaction won the slot and the caller must treat the advance as lost.
func transition(tx *gorm.DB, appt *model.Appointment, from, to model.AppointmentStatus, stationID *string, now time.Time) error {
	res := tx.Model(&model.Appointment{}).
		Where("id = ? AND status = ?", appt.ID, from).
		Updates(map[string]any{
			"status":     to,
			"station_id": stationID,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	appt.Status = to
	appt.StationID = stationID
	appt.UpdatedAt = now
	return nil
}
