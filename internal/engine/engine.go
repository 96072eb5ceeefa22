package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"blooddrive-queue-backend/internal/model"
	"blooddrive-queue-backend/internal/queue"
	"blooddrive-queue-backend/internal/realtime"
	"blooddrive-queue-backend/internal/store"
	"blooddrive-queue-backend/internal/telemetry"
)

// Notifier delivers a point-to-point push to a donor. Best-effort; the
// engine never waits on delivery.
type Notifier interface {
	Notify(donorToken, message string)
}

// Engine coordinates the station queue: transactional transitions through
// the store, projection rebuilds, and fan-out to realtime subscribers. The
// hub and notifier may be nil; correctness only depends on projections being
// recomputable on the next pull.
type Engine struct {
	store       store.Store
	projections *queue.Builder
	hub         *realtime.Hub
	notifier    Notifier
	telemetry   *telemetry.Emitter
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithHub attaches the realtime hub.
func WithHub(hub *realtime.Hub) Option {
	return func(e *Engine) { e.hub = hub }
}

// WithNotifier attaches the donor push notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithTelemetry attaches the telemetry emitter.
func WithTelemetry(t *telemetry.Emitter) Option {
	return func(e *Engine) { e.telemetry = t }
}

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given store.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       s,
		projections: queue.NewBuilder(s),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StationRef identifies the station printed on a donor's ticket.
type StationRef struct {
	ID   string            `json:"id"`
	Type model.StationType `json:"type"`
}

// Ticket is the donor-facing check-in receipt.
type Ticket struct {
	AppointmentID string                  `json:"appointmentId"`
	Status        model.AppointmentStatus `json:"status"`
	QueueNumber   int                     `json:"queueNumber"`
	PeopleAhead   int                     `json:"peopleAhead"`
	EtaMinutes    int                     `json:"etaMinutes"`
	Station       *StationRef             `json:"station"`
}

// CheckIn transitions the donor's appointment to CHECKED_IN, assigns the
// least-loaded screening station on first check-in and returns the ticket.
// Idempotent: repeating the call yields the same appointment and station.
func (e *Engine) CheckIn(ctx context.Context, eventID, donorToken string) (*Ticket, error) {
	now := e.now()
	appt, err := e.store.CheckIn(ctx, eventID, donorToken, now)
	if err != nil {
		return nil, err
	}

	projection, err := e.projections.Build(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("rebuild projection after check-in: %w", err)
	}

	ticket := buildTicket(appt, projection)

	e.telemetry.Emit(telemetry.Event{
		Name:      "donor:checked_in",
		ActorRole: "donor",
		Context: map[string]any{
			"event_id":       eventID,
			"appointment_id": appt.ID,
			"queue_number":   ticket.QueueNumber,
		},
	})
	e.publish(eventID, projection)
	return ticket, nil
}

// buildTicket derives queue position and ETA for the checked-in appointment
// from the waiting list. ETA spreads the people ahead across active
// screening stations at the fixed per-stage service time.
func buildTicket(appt *model.Appointment, p *queue.Projection) *Ticket {
	queueNumber, peopleAhead := 0, 0
	for i, entry := range p.Waiting {
		if entry.ID == appt.ID {
			queueNumber = i + 1
			peopleAhead = i
			break
		}
	}

	activeScreening := 0
	for _, station := range p.Stations {
		if station.Type == model.StationScreening && station.IsActive {
			activeScreening++
		}
	}
	eta := peopleAhead * queue.AverageStageMinutes
	if activeScreening > 0 {
		eta = int(math.Ceil(float64(peopleAhead)/float64(activeScreening))) * queue.AverageStageMinutes
	}

	ticket := &Ticket{
		AppointmentID: appt.ID,
		Status:        appt.Status,
		QueueNumber:   queueNumber,
		PeopleAhead:   peopleAhead,
		EtaMinutes:    eta,
	}
	if appt.StationID != nil {
		for _, station := range p.Stations {
			if station.ID == *appt.StationID {
				ticket.Station = &StationRef{ID: station.ID, Type: station.Type}
				break
			}
		}
	}
	return ticket
}

// Advance moves the station one step forward and fans the new state out.
// Returns store.ErrNoDonorsWaiting untouched so callers can distinguish the
// empty queue from hard failures.
func (e *Engine) Advance(ctx context.Context, stationID string) (*store.AdvanceResult, error) {
	result, err := e.store.Advance(ctx, stationID, e.now())
	if err != nil {
		return nil, err
	}

	e.telemetry.Emit(telemetry.Event{
		Name:      "appointment:advanced",
		ActorRole: "volunteer",
		Context: map[string]any{
			"station_id":     stationID,
			"appointment_id": result.Appointment.ID,
			"from":           result.PreviousStatus,
			"to":             result.NextStatus,
		},
	})

	if result.Called && result.DonorToken != "" {
		message := "You're up! Please proceed to your screening station."
		if result.NextStatus == model.StatusDonating {
			message = "A donation bed is ready for you."
		}
		e.hub.Publish(realtime.DonorChannel(result.DonorToken), map[string]any{
			"appointmentId": result.Appointment.ID,
			"status":        result.NextStatus,
			"stationId":     result.Appointment.StationID,
			"message":       message,
		})
		if e.notifier != nil {
			e.notifier.Notify(result.DonorToken, message)
		}
	}

	e.broadcast(ctx, result.Appointment.EventID)
	return result, nil
}

// ToggleStation flips the station's active flag. Occupants are not evicted;
// the station only leaves the assignment pools.
func (e *Engine) ToggleStation(ctx context.Context, stationID string, active bool) (*model.Station, error) {
	station, err := e.store.SetStationActive(ctx, stationID, active)
	if err != nil {
		return nil, err
	}

	e.telemetry.Emit(telemetry.Event{
		Name:      "station:updated",
		ActorRole: "organizer",
		Context: map[string]any{
			"station_id": station.ID,
			"is_active":  station.IsActive,
		},
	})
	e.broadcast(ctx, station.EventID)
	return station, nil
}

// Projection rebuilds the event's queue snapshot on demand.
func (e *Engine) Projection(ctx context.Context, eventID string) (*queue.Projection, error) {
	return e.projections.Build(ctx, eventID)
}

// Kpis rebuilds the projection and derives the KPI snapshot from it.
func (e *Engine) Kpis(ctx context.Context, eventID string) (*queue.KpiSnapshot, error) {
	projection, err := e.projections.Build(ctx, eventID)
	if err != nil {
		return nil, err
	}
	snapshot := queue.CalculateKpis(projection, e.now())
	return &snapshot, nil
}

// SweepNoShows times out overdue BOOKED/CHECKED_IN appointments and fans out
// fresh state for every affected event.
func (e *Engine) SweepNoShows(ctx context.Context, grace time.Duration) (int64, error) {
	result, err := e.store.SweepNoShows(ctx, e.now(), grace)
	if err != nil {
		return 0, err
	}
	if result.Updated == 0 {
		return 0, nil
	}

	e.telemetry.Emit(telemetry.Event{
		Name:      "noshow:swept",
		ActorRole: "system",
		Context: map[string]any{
			"updated_count": result.Updated,
			"event_count":   len(result.EventIDs),
		},
	})
	for _, eventID := range result.EventIDs {
		e.broadcast(ctx, eventID)
	}
	return result.Updated, nil
}

// broadcast rebuilds the projection and pushes it with its KPI snapshot to
// the event's channels. Failures are swallowed: fan-out is best-effort and
// the projection stays available via pull.
func (e *Engine) broadcast(ctx context.Context, eventID string) {
	if e.hub == nil {
		return
	}
	projection, err := e.projections.Build(ctx, eventID)
	if err != nil {
		return
	}
	e.publish(eventID, projection)
}

func (e *Engine) publish(eventID string, projection *queue.Projection) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(realtime.QueueChannel(eventID), projection)
	snapshot := queue.CalculateKpis(projection, e.now())
	e.hub.Publish(realtime.KpiChannel(eventID), snapshot)
}
