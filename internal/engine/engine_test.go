package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"blooddrive-queue-backend/internal/db"
	"blooddrive-queue-backend/internal/model"
	"blooddrive-queue-backend/internal/realtime"
	"blooddrive-queue-backend/internal/store"
)

var baseTime = time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	return store.NewGormStore(gormDB)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, store.Store) {
	t.Helper()
	s := newTestStore(t)
	opts = append(opts, WithClock(func() time.Time { return baseTime }))
	return New(s, opts...), s
}

func seedEvent(t *testing.T, s store.Store, targetUnits int) *model.Event {
	t.Helper()
	event := &model.Event{
		Name:        "City Hall Drive",
		TargetUnits: targetUnits,
		StartAt:     baseTime.Add(-time.Hour),
	}
	require.NoError(t, s.CreateEvent(context.Background(), event))
	return event
}

func seedStation(t *testing.T, s store.Store, eventID string, stationType model.StationType, active bool) *model.Station {
	t.Helper()
	station := &model.Station{EventID: eventID, Type: stationType, IsActive: active}
	require.NoError(t, s.CreateStation(context.Background(), station))
	return station
}

func seedDonor(t *testing.T, s store.Store, token string) *model.Donor {
	t.Helper()
	donor := &model.Donor{Token: token, Name: "Donor " + token}
	require.NoError(t, s.CreateDonor(context.Background(), donor))
	return donor
}

func seedAppointment(t *testing.T, s store.Store, eventID, donorID string, status model.AppointmentStatus, slot time.Time) *model.Appointment {
	t.Helper()
	appt := &model.Appointment{
		EventID:  eventID,
		DonorID:  donorID,
		Status:   status,
		SlotTime: slot,
	}
	require.NoError(t, s.CreateAppointment(context.Background(), appt))
	return appt
}

func TestCheckInAssignsStationAndNumbersQueue(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 200)
	screening := seedStation(t, s, event.ID, model.StationScreening, true)

	donorA := seedDonor(t, s, "tok-a")
	donorB := seedDonor(t, s, "tok-b")
	seedAppointment(t, s, event.ID, donorA.ID, model.StatusBooked, baseTime)
	seedAppointment(t, s, event.ID, donorB.ID, model.StatusBooked, baseTime.Add(10*time.Minute))

	ticketA, err := e.CheckIn(ctx, event.ID, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedIn, ticketA.Status)
	assert.Equal(t, 1, ticketA.QueueNumber)
	assert.Equal(t, 0, ticketA.PeopleAhead)
	assert.Equal(t, 0, ticketA.EtaMinutes)
	require.NotNil(t, ticketA.Station)
	assert.Equal(t, screening.ID, ticketA.Station.ID)

	ticketB, err := e.CheckIn(ctx, event.ID, "tok-b")
	require.NoError(t, err)
	assert.Equal(t, 2, ticketB.QueueNumber)
	assert.Equal(t, 1, ticketB.PeopleAhead)
	assert.Equal(t, 12, ticketB.EtaMinutes)
}

func TestCheckInIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	seedStation(t, s, event.ID, model.StationScreening, true)

	donor := seedDonor(t, s, "tok-a")
	seedAppointment(t, s, event.ID, donor.ID, model.StatusBooked, baseTime)

	first, err := e.CheckIn(ctx, event.ID, "tok-a")
	require.NoError(t, err)
	second, err := e.CheckIn(ctx, event.ID, "tok-a")
	require.NoError(t, err)

	assert.Equal(t, first.AppointmentID, second.AppointmentID)
	require.NotNil(t, second.Station)
	assert.Equal(t, first.Station.ID, second.Station.ID)
	assert.Equal(t, first.QueueNumber, second.QueueNumber)

	var checkins int64
	require.NoError(t, s.DB().Model(&model.Checkin{}).Count(&checkins).Error)
	assert.Equal(t, int64(1), checkins)
}

func TestCheckInErrors(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	seedDonor(t, s, "tok-known")

	_, err := e.CheckIn(ctx, "missing-event", "tok-known")
	assert.ErrorIs(t, err, store.ErrEventNotFound)

	_, err = e.CheckIn(ctx, event.ID, "tok-unknown")
	assert.ErrorIs(t, err, store.ErrDonorNotFound)

	_, err = e.CheckIn(ctx, event.ID, "tok-known")
	assert.ErrorIs(t, err, store.ErrAppointmentNotFound)
}

func TestCheckInWithoutActiveStationLeavesUnassigned(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	seedStation(t, s, event.ID, model.StationScreening, false)

	donor := seedDonor(t, s, "tok-a")
	seedAppointment(t, s, event.ID, donor.ID, model.StatusBooked, baseTime)

	ticket, err := e.CheckIn(ctx, event.ID, "tok-a")
	require.NoError(t, err)
	assert.Nil(t, ticket.Station)
	assert.Equal(t, model.StatusCheckedIn, ticket.Status)
}

func TestCheckInPicksLeastLoadedStation(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	busy := seedStation(t, s, event.ID, model.StationScreening, true)
	quiet := seedStation(t, s, event.ID, model.StationScreening, true)

	// Load the first station with two checked-in donors.
	for i, token := range []string{"tok-1", "tok-2"} {
		donor := seedDonor(t, s, token)
		appt := seedAppointment(t, s, event.ID, donor.ID, model.StatusCheckedIn, baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.DB().Model(&model.Appointment{}).
			Where("id = ?", appt.ID).
			Update("station_id", busy.ID).Error)
	}

	donor := seedDonor(t, s, "tok-new")
	seedAppointment(t, s, event.ID, donor.ID, model.StatusBooked, baseTime.Add(time.Hour))

	ticket, err := e.CheckIn(ctx, event.ID, "tok-new")
	require.NoError(t, err)
	require.NotNil(t, ticket.Station)
	assert.Equal(t, quiet.ID, ticket.Station.ID)
}

func TestAdvanceScreeningOccupyThenRelease(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	screening := seedStation(t, s, event.ID, model.StationScreening, true)

	donorA := seedDonor(t, s, "tok-a")
	donorB := seedDonor(t, s, "tok-b")
	seedAppointment(t, s, event.ID, donorA.ID, model.StatusBooked, baseTime)
	seedAppointment(t, s, event.ID, donorB.ID, model.StatusBooked, baseTime.Add(10*time.Minute))

	_, err := e.CheckIn(ctx, event.ID, "tok-a")
	require.NoError(t, err)
	_, err = e.CheckIn(ctx, event.ID, "tok-b")
	require.NoError(t, err)

	// First advance seats A in the bay.
	result, err := e.Advance(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedIn, result.PreviousStatus)
	assert.Equal(t, model.StatusScreening, result.NextStatus)
	require.NotNil(t, result.Appointment.StationID)
	assert.Equal(t, screening.ID, *result.Appointment.StationID)
	assert.Equal(t, "tok-a", result.DonorToken)
	assert.True(t, result.Called)

	// Second advance releases A to the donation queue, station cleared.
	result, err = e.Advance(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScreening, result.PreviousStatus)
	assert.Equal(t, model.StatusDonating, result.NextStatus)
	assert.Nil(t, result.Appointment.StationID)
	assert.False(t, result.Called)

	// Third advance seats B.
	result, err = e.Advance(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScreening, result.NextStatus)
	assert.Equal(t, "tok-b", result.DonorToken)
}

func TestAdvanceDonationSeatsThenCompletes(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	bed := seedStation(t, s, event.ID, model.StationDonation, true)

	donor := seedDonor(t, s, "tok-a")
	seedAppointment(t, s, event.ID, donor.ID, model.StatusDonating, baseTime)

	// First advance seats the unassigned donor; status stays DONATING.
	result, err := e.Advance(ctx, bed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDonating, result.PreviousStatus)
	assert.Equal(t, model.StatusDonating, result.NextStatus)
	require.NotNil(t, result.Appointment.StationID)
	assert.Equal(t, bed.ID, *result.Appointment.StationID)
	assert.True(t, result.Called)

	// Second advance completes the donation and frees the bed.
	result, err = e.Advance(ctx, bed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDonating, result.PreviousStatus)
	assert.Equal(t, model.StatusDone, result.NextStatus)
	assert.Nil(t, result.Appointment.StationID)

	// Nothing left.
	_, err = e.Advance(ctx, bed.ID)
	assert.ErrorIs(t, err, store.ErrNoDonorsWaiting)
}

func TestAdvanceEmptyStationAndUnknownStation(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	screening := seedStation(t, s, event.ID, model.StationScreening, true)

	_, err := e.Advance(ctx, screening.ID)
	assert.ErrorIs(t, err, store.ErrNoDonorsWaiting)

	_, err = e.Advance(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrStationNotFound)
}

func TestAdvanceScreeningFallsBackToWalkIns(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	screening := seedStation(t, s, event.ID, model.StationScreening, true)

	// Checked in but never assigned (no station was active at check-in).
	donor := seedDonor(t, s, "tok-walkin")
	seedAppointment(t, s, event.ID, donor.ID, model.StatusCheckedIn, baseTime)

	result, err := e.Advance(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScreening, result.NextStatus)
	require.NotNil(t, result.Appointment.StationID)
	assert.Equal(t, screening.ID, *result.Appointment.StationID)
}

func TestPausedStationDoesNotPullWalkIns(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	screening := seedStation(t, s, event.ID, model.StationScreening, true)

	donorA := seedDonor(t, s, "tok-a")
	apptA := seedAppointment(t, s, event.ID, donorA.ID, model.StatusCheckedIn, baseTime)
	require.NoError(t, s.DB().Model(&model.Appointment{}).
		Where("id = ?", apptA.ID).
		Update("station_id", screening.ID).Error)

	donorB := seedDonor(t, s, "tok-b")
	seedAppointment(t, s, event.ID, donorB.ID, model.StatusCheckedIn, baseTime.Add(time.Minute))

	_, err := e.ToggleStation(ctx, screening.ID, false)
	require.NoError(t, err)

	// The assigned donor still advances through the paused station.
	result, err := e.Advance(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, apptA.ID, result.Appointment.ID)

	result, err = e.Advance(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDonating, result.NextStatus)

	// But the unassigned walk-in is not pulled in.
	_, err = e.Advance(ctx, screening.ID)
	assert.ErrorIs(t, err, store.ErrNoDonorsWaiting)
}

func TestToggleStationUnknown(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	_, err := e.ToggleStation(ctx, "missing", true)
	assert.ErrorIs(t, err, store.ErrStationNotFound)
}

func TestSweepNoShows(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	screening := seedStation(t, s, event.ID, model.StationScreening, true)

	// Overdue booking, slot two hours in the past.
	lateBooker := seedDonor(t, s, "tok-late")
	lateAppt := seedAppointment(t, s, event.ID, lateBooker.ID, model.StatusBooked, baseTime.Add(-2*time.Hour))

	// Checked in two hours ago and never advanced; still holds a station.
	staleDonor := seedDonor(t, s, "tok-stale")
	staleAppt := seedAppointment(t, s, event.ID, staleDonor.ID, model.StatusCheckedIn, baseTime.Add(-2*time.Hour))
	require.NoError(t, s.DB().Model(&model.Appointment{}).
		Where("id = ?", staleAppt.ID).
		Update("station_id", screening.ID).Error)
	require.NoError(t, s.DB().Create(&model.Checkin{
		AppointmentID: staleAppt.ID,
		Timestamp:     baseTime.Add(-2 * time.Hour),
	}).Error)

	// Fresh booking within grace.
	freshDonor := seedDonor(t, s, "tok-fresh")
	freshAppt := seedAppointment(t, s, event.ID, freshDonor.ID, model.StatusBooked, baseTime.Add(time.Hour))

	// Zero grace disables the sweep entirely.
	updated, err := e.SweepNoShows(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, updated)

	updated, err = e.SweepNoShows(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	var swept model.Appointment
	require.NoError(t, s.DB().First(&swept, "id = ?", lateAppt.ID).Error)
	assert.Equal(t, model.StatusNoShow, swept.Status)

	swept = model.Appointment{}
	require.NoError(t, s.DB().First(&swept, "id = ?", staleAppt.ID).Error)
	assert.Equal(t, model.StatusNoShow, swept.Status)
	assert.Nil(t, swept.StationID)

	swept = model.Appointment{}
	require.NoError(t, s.DB().First(&swept, "id = ?", freshAppt.ID).Error)
	assert.Equal(t, model.StatusBooked, swept.Status)

	// Re-running finds nothing new.
	updated, err = e.SweepNoShows(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestCheckInAfterDoneFindsNoActiveAppointment(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	event := seedEvent(t, s, 100)
	donor := seedDonor(t, s, "tok-a")
	seedAppointment(t, s, event.ID, donor.ID, model.StatusDone, baseTime)

	_, err := e.CheckIn(ctx, event.ID, "tok-a")
	assert.ErrorIs(t, err, store.ErrAppointmentNotFound)
}

func TestCheckInBroadcastsProjectionAndKpis(t *testing.T) {
	ctx := context.Background()
	hub := realtime.NewHub()
	s := newTestStore(t)
	e := New(s, WithHub(hub), WithClock(func() time.Time { return baseTime }))

	event := seedEvent(t, s, 100)
	seedStation(t, s, event.ID, model.StationScreening, true)
	donor := seedDonor(t, s, "tok-a")
	seedAppointment(t, s, event.ID, donor.ID, model.StatusBooked, baseTime)

	queueMsgs, cancelQueue := hub.Subscribe(realtime.QueueChannel(event.ID))
	defer cancelQueue()
	kpiMsgs, cancelKpi := hub.Subscribe(realtime.KpiChannel(event.ID))
	defer cancelKpi()

	_, err := e.CheckIn(ctx, event.ID, "tok-a")
	require.NoError(t, err)

	select {
	case msg := <-queueMsgs:
		assert.Contains(t, string(msg), `"waiting"`)
	default:
		t.Fatal("expected a queue broadcast after check-in")
	}
	select {
	case msg := <-kpiMsgs:
		assert.Contains(t, string(msg), `"checkInRate"`)
	default:
		t.Fatal("expected a KPI broadcast after check-in")
	}
}

func TestAdvanceNotifiesCalledDonor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var gotToken, gotMessage string
	notifier := notifierFunc(func(token, message string) {
		gotToken, gotMessage = token, message
	})
	e := New(s, WithNotifier(notifier), WithClock(func() time.Time { return baseTime }))

	event := seedEvent(t, s, 100)
	screening := seedStation(t, s, event.ID, model.StationScreening, true)
	donor := seedDonor(t, s, "tok-a")
	appt := seedAppointment(t, s, event.ID, donor.ID, model.StatusCheckedIn, baseTime)
	require.NoError(t, s.DB().Model(&model.Appointment{}).
		Where("id = ?", appt.ID).
		Update("station_id", screening.ID).Error)

	_, err := e.Advance(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-a", gotToken)
	assert.NotEmpty(t, gotMessage)

	// Releasing the occupant is not a call-up; no push goes out.
	gotToken = ""
	_, err = e.Advance(ctx, screening.ID)
	require.NoError(t, err)
	assert.Empty(t, gotToken)
}

type notifierFunc func(token, message string)

func (f notifierFunc) Notify(token, message string) { f(token, message) }
