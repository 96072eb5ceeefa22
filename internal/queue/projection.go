package queue

import (
	"context"
	"fmt"
	"time"

	"blooddrive-queue-backend/internal/model"
	"blooddrive-queue-backend/internal/store"
)

// Appointment is the projection's view of one appointment.
type Appointment struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	SlotTime  time.Time  `json:"slotTime"`
	StationID *string    `json:"stationId"`
	CheckinAt *time.Time `json:"checkinAt"`
}

// StationCounts breaks down the in-flight appointments pinned to a station.
type StationCounts struct {
	Waiting   int `json:"waiting"`
	Screening int `json:"screening"`
	Donating  int `json:"donating"`
}

// StationInfo is the projection's view of one station.
type StationInfo struct {
	ID       string            `json:"id"`
	Type     model.StationType `json:"type"`
	IsActive bool              `json:"isActive"`
	Counts   StationCounts     `json:"counts"`
}

// EventInfo carries the event header fields KPI and UI consumers need.
type EventInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	StartAt     time.Time  `json:"startAt"`
	EndAt       *time.Time `json:"endAt"`
	TargetUnits int        `json:"targetUnits"`
}

// Stats counts the projection's four buckets.
type Stats struct {
	Waiting   int `json:"waiting"`
	Screening int `json:"screening"`
	Donating  int `json:"donating"`
	Done      int `json:"done"`
}

// Projection is the derived, read-optimized snapshot of an event's queue
// state. It is recomputed from appointments and stations on every build and
// never stored; two builds with no intervening writes are identical.
type Projection struct {
	Event        EventInfo        `json:"event"`
	Waiting      []Appointment    `json:"waiting"`
	Screening    []Appointment    `json:"screening"`
	Donating     []Appointment    `json:"donating"`
	Done         []Appointment    `json:"done"`
	Stations     []StationInfo    `json:"stations"`
	Stats        Stats            `json:"stats"`
	StatusCounts map[string]int64 `json:"statusCounts"`
}

// Builder derives Projections from the store.
type Builder struct {
	store store.Store
}

// NewBuilder creates a projection builder over the given store.
func NewBuilder(s store.Store) *Builder {
	return &Builder{store: s}
}

// Build assembles the projection for one event. It is a pure read; ordering
// within each list is by slot time ascending with id as tiebreak.
func (b *Builder) Build(ctx context.Context, eventID string) (*Projection, error) {
	event, err := b.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	appts, err := b.store.ListAppointments(ctx, eventID, []model.AppointmentStatus{
		model.StatusCheckedIn, model.StatusScreening, model.StatusDonating, model.StatusDone,
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	stations, err := b.store.ListStations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	statusCounts, err := b.store.CountByStatus(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	p := &Projection{
		Event: EventInfo{
			ID:          event.ID,
			Name:        event.Name,
			StartAt:     event.StartAt,
			EndAt:       event.EndAt,
			TargetUnits: event.TargetUnits,
		},
		Waiting:      []Appointment{},
		Screening:    []Appointment{},
		Donating:     []Appointment{},
		Done:         []Appointment{},
		StatusCounts: make(map[string]int64, len(statusCounts)),
	}
	for status, n := range statusCounts {
		p.StatusCounts[string(status)] = n
	}

	stationCounts := make(map[string]*StationCounts, len(stations))

	for _, appt := range appts {
		entry := Appointment{
			ID:        appt.ID,
			Status:    string(appt.Status),
			SlotTime:  appt.SlotTime,
			StationID: appt.StationID,
		}
		if appt.Checkin != nil {
			ts := appt.Checkin.Timestamp
			entry.CheckinAt = &ts
		}

		switch appt.Status {
		case model.StatusCheckedIn:
			p.Waiting = append(p.Waiting, entry)
		case model.StatusScreening:
			p.Screening = append(p.Screening, entry)
		case model.StatusDonating:
			p.Donating = append(p.Donating, entry)
		case model.StatusDone:
			p.Done = append(p.Done, entry)
		}

		if appt.StationID != nil && appt.Status != model.StatusDone {
			counts := stationCounts[*appt.StationID]
			if counts == nil {
				counts = &StationCounts{}
				stationCounts[*appt.StationID] = counts
			}
			switch appt.Status {
			case model.StatusCheckedIn:
				counts.Waiting++
			case model.StatusScreening:
				counts.Screening++
			case model.StatusDonating:
				counts.Donating++
			}
		}
	}

	p.Stations = make([]StationInfo, 0, len(stations))
	for _, station := range stations {
		info := StationInfo{
			ID:       station.ID,
			Type:     station.Type,
			IsActive: station.IsActive,
		}
		if counts := stationCounts[station.ID]; counts != nil {
			info.Counts = *counts
		}
		p.Stations = append(p.Stations, info)
	}

	p.Stats = Stats{
		Waiting:   len(p.Waiting),
		Screening: len(p.Screening),
		Donating:  len(p.Donating),
		Done:      len(p.Done),
	}
	return p, nil
}
