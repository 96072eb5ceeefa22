package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blooddrive-queue-backend/internal/model"
)

func (s *gormStore) CreateEvent(ctx context.Context, event *model.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *gormStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	err := s.db.WithContext(ctx).Order("start_at ASC, id ASC").Find(&events).Error
	return events, err
}

func (s *gormStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *gormStore) CreateStation(ctx context.Context, station *model.Station) error {
	if station.ID == "" {
		station.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(station).Error
}

func (s *gormStore) GetStation(ctx context.Context, id string) (*model.Station, error) {
	var station model.Station
	if err := s.db.WithContext(ctx).First(&station, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStationNotFound
		}
		return nil, err
	}
	return &station, nil
}

// ListStations returns the event's stations in stable creation order.
func (s *gormStore) ListStations(ctx context.Context, eventID string) ([]model.Station, error) {
	var stations []model.Station
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC, id ASC").
		Find(&stations).Error
	return stations, err
}

// SetStationActive toggles the active flag. Donors already assigned stay
// assigned; an inactive station only leaves the assignment candidate pool.
func (s *gormStore) SetStationActive(ctx context.Context, id string, active bool) (*model.Station, error) {
	res := s.db.WithContext(ctx).Model(&model.Station{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStationNotFound
	}
	return s.GetStation(ctx, id)
}

func (s *gormStore) CreateDonor(ctx context.Context, donor *model.Donor) error {
	if donor.ID == "" {
		donor.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(donor).Error
}

// FindOrCreateDonor resolves a donor by token, registering a new record for
// first-time walk-ins.
func (s *gormStore) FindOrCreateDonor(ctx context.Context, token, name string) (*model.Donor, error) {
	var donor model.Donor
	err := s.db.WithContext(ctx).First(&donor, "token = ?", token).Error
	if err == nil {
		return &donor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	donor = model.Donor{ID: uuid.NewString(), Token: token, Name: name}
	if err := s.db.WithContext(ctx).Create(&donor).Error; err != nil {
		return nil, err
	}
	return &donor, nil
}

func (s *gormStore) CreateAppointment(ctx context.Context, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = model.StatusBooked
	}
	return s.db.WithContext(ctx).Create(appt).Error
}

// ListAppointments returns the event's appointments in the given statuses,
// ordered by scheduled slot with the id as a deterministic tiebreak. The
// check-in record is preloaded for projection timestamps.
func (s *gormStore) ListAppointments(ctx context.Context, eventID string, statuses []model.AppointmentStatus) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := s.db.WithContext(ctx).
		Preload("Checkin").
		Where("event_id = ? AND status IN ?", eventID, statuses).
		Order("slot_time ASC, id ASC").
		Find(&appts).Error
	return appts, err
}

// CountByStatus aggregates appointment counts per raw status across the
// whole event, terminal states included.
func (s *gormStore) CountByStatus(ctx context.Context, eventID string) (map[model.AppointmentStatus]int64, error) {
	type aggRow struct {
		Status model.AppointmentStatus
		Total  int64
	}
	var aggs []aggRow
	if err := s.db.WithContext(ctx).Model(&model.Appointment{}).
		Select("status as status, COUNT(*) as total").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&aggs).Error; err != nil {
		return nil, err
	}

	counts := make(map[model.AppointmentStatus]int64, len(aggs))
	for _, a := range aggs {
		counts[a.Status] = a.Total
	}
	return counts, nil
}
