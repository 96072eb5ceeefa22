package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blooddrive-queue-backend/internal/model"
)

// CheckIn locates the donor's active appointment for the event, assigns a
// screening station on first check-in and upserts the check-in timestamp.
// The whole sequence runs in one transaction so two simultaneous check-ins
// for the same donor cannot double-book a station slot.
func (s *gormStore) CheckIn(ctx context.Context, eventID, donorToken string, now time.Time) (*model.Appointment, error) {
	var appt model.Appointment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event model.Event
		if err := tx.Select("id").First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		var donor model.Donor
		if err := tx.First(&donor, "token = ?", donorToken).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDonorNotFound
			}
			return err
		}

		err := tx.Where("event_id = ? AND donor_id = ? AND status IN ?",
			eventID, donor.ID, []model.AppointmentStatus{model.StatusBooked, model.StatusCheckedIn}).
			Order("slot_time ASC, id ASC").
			First(&appt).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}

		stationID := appt.StationID
		if stationID == nil {
			station, err := leastLoadedStation(tx, eventID, model.StationScreening)
			if err != nil {
				return err
			}
			if station != nil {
				stationID = &station.ID
			}
		}

		if appt.Status == model.StatusBooked {
			if err := transition(tx, &appt, model.StatusBooked, model.StatusCheckedIn, stationID, now); err != nil {
				return err
			}
		} else if appt.StationID == nil && stationID != nil {
			// Re-check-in after a station came online; attach without a
			// status change.
			if err := transition(tx, &appt, model.StatusCheckedIn, model.StatusCheckedIn, stationID, now); err != nil {
				return err
			}
		}

		checkin := model.Checkin{AppointmentID: appt.ID, Timestamp: now}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "appointment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
		}).Create(&checkin).Error
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// Advance moves the station's pipeline forward by one step: release the
// current occupant onward if the slot is held, otherwise pull the earliest
// waiting candidate into the slot. All reads and the conditional write share
// one transaction so concurrent advances on the same station cannot both
// claim a donor.
func (s *gormStore) Advance(ctx context.Context, stationID string, now time.Time) (*AdvanceResult, error) {
	var result AdvanceResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var station model.Station
		if err := tx.First(&station, "id = ?", stationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStationNotFound
			}
			return err
		}

		switch station.Type {
		case model.StationScreening:
			return advanceScreening(tx, &station, now, &result)
		case model.StationDonation:
			return advanceDonation(tx, &station, now, &result)
		default:
			return fmt.Errorf("station %s has unknown type %q", station.ID, station.Type)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := s.attachDonorToken(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// advanceScreening releases the donor occupying the bay to the donation
// stage (station cleared, they queue for a bed), or seats the earliest
// checked-in candidate assigned to this station, falling back to unassigned
// walk-ins.
func advanceScreening(tx *gorm.DB, station *model.Station, now time.Time, result *AdvanceResult) error {
	var occupant model.Appointment
	err := tx.Where("station_id = ? AND status = ?", station.ID, model.StatusScreening).
		Order("slot_time ASC, id ASC").
		First(&occupant).Error
	if err == nil {
		if err := transition(tx, &occupant, model.StatusScreening, model.StatusDonating, nil, now); err != nil {
			return err
		}
		*result = AdvanceResult{
			Appointment:    occupant,
			PreviousStatus: model.StatusScreening,
			NextStatus:     model.StatusDonating,
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	candidate, err := nextCandidate(tx, station, model.StatusCheckedIn, true)
	if err != nil {
		return err
	}
	if candidate == nil {
		return ErrNoDonorsWaiting
	}
	if err := transition(tx, candidate, model.StatusCheckedIn, model.StatusScreening, &station.ID, now); err != nil {
		return err
	}
	*result = AdvanceResult{
		Appointment:    *candidate,
		PreviousStatus: model.StatusCheckedIn,
		NextStatus:     model.StatusScreening,
		Called:         true,
	}
	return nil
}

// advanceDonation completes the donor occupying the bed, or seats the
// earliest donor who has cleared screening and waits unassigned for a bed
// (status stays DONATING, the station reference marks occupancy).
func advanceDonation(tx *gorm.DB, station *model.Station, now time.Time, result *AdvanceResult) error {
	var occupant model.Appointment
	err := tx.Where("station_id = ? AND status = ?", station.ID, model.StatusDonating).
		Order("slot_time ASC, id ASC").
		First(&occupant).Error
	if err == nil {
		if err := transition(tx, &occupant, model.StatusDonating, model.StatusDone, nil, now); err != nil {
			return err
		}
		*result = AdvanceResult{
			Appointment:    occupant,
			PreviousStatus: model.StatusDonating,
			NextStatus:     model.StatusDone,
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	candidate, err := nextCandidate(tx, station, model.StatusDonating, false)
	if err != nil {
		return err
	}
	if candidate == nil {
		return ErrNoDonorsWaiting
	}
	// Guard on the station still being unset so two beds pulling at once
	// cannot both seat the same donor.
	res := tx.Model(&model.Appointment{}).
		Where("id = ? AND status = ? AND station_id IS NULL", candidate.ID, model.StatusDonating).
		Updates(map[string]any{"station_id": station.ID, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	candidate.StationID = &station.ID
	candidate.UpdatedAt = now
	*result = AdvanceResult{
		Appointment:    *candidate,
		PreviousStatus: model.StatusDonating,
		NextStatus:     model.StatusDonating,
		Called:         true,
	}
	return nil
}

// nextCandidate finds the earliest-scheduled appointment in the given status
// waiting for this station. Screening stations prefer appointments assigned
// to them and fall back to unassigned walk-ins; donation stations only pull
// from the unassigned pool. Paused stations keep serving donors already
// assigned to them but stay out of the unassigned pool.
func nextCandidate(tx *gorm.DB, station *model.Station, status model.AppointmentStatus, preferAssigned bool) (*model.Appointment, error) {
	var appt model.Appointment
	if preferAssigned {
		err := tx.Where("event_id = ? AND status = ? AND station_id = ?", station.EventID, status, station.ID).
			Order("slot_time ASC, id ASC").
			First(&appt).Error
		if err == nil {
			return &appt, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if !station.IsActive {
		return nil, nil
	}

	err := tx.Where("event_id = ? AND status = ? AND station_id IS NULL", station.EventID, status).
		Order("slot_time ASC, id ASC").
		First(&appt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appt, nil
}

// leastLoadedStation picks the active station of the given type with the
// fewest in-flight appointments; ties go to the earliest-created station.
// Returns nil when no active station of that type exists.
func leastLoadedStation(tx *gorm.DB, eventID string, stationType model.StationType) (*model.Station, error) {
	var stations []model.Station
	if err := tx.Where("event_id = ? AND type = ? AND is_active = ?", eventID, stationType, true).
		Order("created_at ASC, id ASC").
		Find(&stations).Error; err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, nil
	}

	inFlight := []model.AppointmentStatus{model.StatusCheckedIn, model.StatusScreening}
	if stationType == model.StationDonation {
		inFlight = []model.AppointmentStatus{model.StatusDonating}
	}

	type aggRow struct {
		StationID string
		Total     int64
	}
	var aggs []aggRow
	if err := tx.Model(&model.Appointment{}).
		Select("station_id as station_id, COUNT(*) as total").
		Where("event_id = ? AND station_id IS NOT NULL AND status IN ?", eventID, inFlight).
		Group("station_id").
		Scan(&aggs).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(aggs))
	for _, a := range aggs {
		counts[a.StationID] = a.Total
	}

	best := &stations[0]
	for i := 1; i < len(stations); i++ {
		if counts[stations[i].ID] < counts[best.ID] {
			best = &stations[i]
		}
	}
	return best, nil
}

// attachDonorToken loads the token of the advanced appointment's donor so
// the caller can address the donor's realtime channel.
func (s *gormStore) attachDonorToken(ctx context.Context, result *AdvanceResult) error {
	var donor model.Donor
	if err := s.db.WithContext(ctx).
		Select("token").
		First(&donor, "id = ?", result.Appointment.DonorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	result.DonorToken = donor.Token
	return nil
}
