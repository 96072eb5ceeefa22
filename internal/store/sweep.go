package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"blooddrive-queue-backend/internal/model"
)

// SweepNoShows transitions overdue appointments to NO_SHOW in one bulk
// transaction: BOOKED rows whose slot passed the grace cutoff, and
// CHECKED_IN rows whose check-in timestamp did. Station assignments are
// cleared so abandoned slots free up. A non-positive grace disables the
// sweep entirely.
func (s *gormStore) SweepNoShows(ctx context.Context, now time.Time, grace time.Duration) (*SweepResult, error) {
	result := &SweepResult{}
	if grace <= 0 {
		return result, nil
	}
	cutoff := now.Add(-grace)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var overdue []model.Appointment
		if err := tx.Where("status = ? AND slot_time < ?", model.StatusBooked, cutoff).
			Order("slot_time ASC, id ASC").
			Find(&overdue).Error; err != nil {
			return err
		}

		var stale []model.Appointment
		if err := tx.Joins("JOIN checkins ON checkins.appointment_id = appointments.id").
			Where("appointments.status = ? AND checkins.timestamp < ?", model.StatusCheckedIn, cutoff).
			Order("appointments.slot_time ASC, appointments.id ASC").
			Find(&stale).Error; err != nil {
			return err
		}

		events := make(map[string]struct{})
		for _, appt := range append(overdue, stale...) {
			res := tx.Model(&model.Appointment{}).
				Where("id = ? AND status IN ?", appt.ID,
					[]model.AppointmentStatus{model.StatusBooked, model.StatusCheckedIn}).
				Updates(map[string]any{
					"status":     model.StatusNoShow,
					"station_id": nil,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			// Zero rows means the donor advanced between the read and the
			// write; skip rather than drag them backwards.
			if res.RowsAffected == 0 {
				continue
			}
			result.Updated++
			events[appt.EventID] = struct{}{}
		}

		result.EventIDs = result.EventIDs[:0]
		for id := range events {
			result.EventIDs = append(result.EventIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
