package queue

import (
	"math"
	"time"

	"blooddrive-queue-backend/internal/model"
)

// AverageStageMinutes is the assumed per-stage service time used for wait
// estimates. A fixed constant, not a measured average.
const AverageStageMinutes = 12

// minElapsedHours floors the elapsed-time divisor so throughput does not
// blow up in the first minutes of an event.
const minElapsedHours = 0.1

// KpiSnapshot is the derived metrics bundle for one event at one instant.
// Ratios are not clamped; targetProgress may exceed 1 when the drive beats
// its target.
type KpiSnapshot struct {
	CheckInRate        float64   `json:"checkInRate"`
	AttendanceRate     float64   `json:"attendanceRate"`
	AverageWaitMinutes int       `json:"averageWaitMinutes"`
	ThroughputPerHour  float64   `json:"throughputPerHour"`
	TargetProgress     float64   `json:"targetProgress"`
	WaitingCount       int       `json:"waitingCount"`
	ScreeningCount     int       `json:"screeningCount"`
	DonatingCount      int       `json:"donatingCount"`
	DoneCount          int       `json:"doneCount"`
	TotalAppointments  int64     `json:"totalAppointments"`
	Timestamp          time.Time `json:"timestamp"`
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return numerator / denominator
}

// CalculateKpis derives the KPI snapshot from a projection. Pure: the only
// inputs are the projection and the clock reading.
func CalculateKpis(p *Projection, now time.Time) KpiSnapshot {
	var total int64
	for _, n := range p.StatusCounts {
		total += n
	}

	count := func(status model.AppointmentStatus) int64 {
		return p.StatusCounts[string(status)]
	}

	checkedInTotal := count(model.StatusCheckedIn) + count(model.StatusScreening) +
		count(model.StatusDonating) + count(model.StatusDone)
	attendanceTotal := count(model.StatusScreening) + count(model.StatusDonating) +
		count(model.StatusDone)

	activeScreening := 0
	for _, station := range p.Stations {
		if station.Type == model.StationScreening && station.IsActive {
			activeScreening++
		}
	}

	averageWait := p.Stats.Waiting * AverageStageMinutes
	if activeScreening > 0 {
		averageWait = int(math.Ceil(float64(p.Stats.Waiting)/float64(activeScreening))) * AverageStageMinutes
	}

	elapsedHours := math.Max(now.Sub(p.Event.StartAt).Hours(), minElapsedHours)

	return KpiSnapshot{
		CheckInRate:        safeDivide(float64(checkedInTotal), float64(total)),
		AttendanceRate:     safeDivide(float64(attendanceTotal), float64(total)),
		AverageWaitMinutes: averageWait,
		ThroughputPerHour:  float64(p.Stats.Done) / elapsedHours,
		TargetProgress:     safeDivide(float64(p.Stats.Done), float64(p.Event.TargetUnits)),
		WaitingCount:       p.Stats.Waiting,
		ScreeningCount:     p.Stats.Screening,
		DonatingCount:      p.Stats.Donating,
		DoneCount:          p.Stats.Done,
		TotalAppointments:  total,
		Timestamp:          now,
	}
}
