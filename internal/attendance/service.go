package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"attendbot/internal/geo"
	"attendbot/internal/schedule"
)

// Store is the persistence surface the engine needs. *Repository satisfies
// it; tests substitute an in-memory implementation.
type Store interface {
	CheckIn(ctx context.Context, rec Record) error
	CheckOut(ctx context.Context, userID int64, date string, t time.Time, lat, lon float64) (time.Time, float64, error)
	TodayStatus(ctx context.Context, userID int64, date string) (*Record, error)
}

// CheckInStatus is the terminal outcome of a check-in request.
type CheckInStatus int

const (
	CheckInAccepted CheckInStatus = iota
	CheckInAlreadyCheckedIn
	CheckInAlreadyCheckedOut
	CheckInInvalidLocation
	CheckInTooFar
)

// CheckInResult carries the outcome plus the numeric parameters the
// rendering layer needs. The engine never formats user-facing text.
type CheckInResult struct {
	Status   CheckInStatus
	Time     time.Time // accepted: check-in time; already checked in: the prior time
	Distance float64
	Radius   int

	Late           bool
	MinutesLate    int
	Classification schedule.Status
}

// CheckOutStatus is the terminal outcome of a check-out request.
type CheckOutStatus int

const (
	CheckOutAccepted CheckOutStatus = iota
	CheckOutNotCheckedIn
	CheckOutAlreadyCheckedOut
	CheckOutInvalidLocation
	CheckOutTooFar
)

// CheckOutResult carries the check-out outcome and its parameters.
type CheckOutResult struct {
	Status       CheckOutStatus
	CheckInTime  time.Time
	CheckOutTime time.Time
	TotalHours   float64
	Distance     float64
	Radius       int
}

var (
	checkinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendbot_checkins_total",
		Help: "Check-in requests by terminal outcome.",
	}, []string{"outcome"})
	checkoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendbot_checkouts_total",
		Help: "Check-out requests by terminal outcome.",
	}, []string{"outcome"})
)

// Service is the attendance decision engine: it combines the geofence
// check, the schedule classifier and the store into the per-user-per-day
// state machine NONE -> CHECKED_IN -> CHECKED_OUT. It holds no per-request
// state of its own.
type Service struct {
	store      Store
	classifier *schedule.Classifier
	center     geo.Point
	radius     int
	loc        *time.Location
}

// NewService builds the engine.
func NewService(store Store, classifier *schedule.Classifier, center geo.Point, radiusMeters int, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, classifier: classifier, center: center, radius: radiusMeters, loc: loc}
}

// RequestCheckIn runs the check-in state machine for one location event.
// State conflicts and geofence rejections come back as typed outcomes; only
// storage failures surface as errors.
func (s *Service) RequestCheckIn(ctx context.Context, userID int64, now time.Time, point geo.Point) (CheckInResult, error) {
	now = now.In(s.loc)
	date := DateOf(now)

	current, err := s.store.TodayStatus(ctx, userID, date)
	if err != nil {
		return CheckInResult{}, err
	}
	if current != nil {
		return s.rejectExisting(current), nil
	}

	within, dist, err := geo.WithinRadius(point, s.center, s.radius)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			checkinsTotal.WithLabelValues("invalid_location").Inc()
			return CheckInResult{Status: CheckInInvalidLocation}, nil
		}
		return CheckInResult{}, err
	}
	if !within {
		checkinsTotal.WithLabelValues("too_far").Inc()
		return CheckInResult{Status: CheckInTooFar, Distance: dist, Radius: s.radius}, nil
	}

	late, minutes := s.classifier.Lateness(now)
	classification := s.classifier.Classify(now)

	rec := Record{
		UserID:         userID,
		Date:           date,
		CheckIn:        now,
		CheckInLat:     point.Lat,
		CheckInLon:     point.Lon,
		Status:         "checked_in",
		LateMinutes:    minutes,
		Classification: classification,
	}
	if err := s.store.CheckIn(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateCheckIn) {
			// Lost a race with a concurrent request from the same user.
			// Same outcome as finding the record up front.
			current, lookupErr := s.store.TodayStatus(ctx, userID, date)
			if lookupErr != nil || current == nil {
				checkinsTotal.WithLabelValues("duplicate").Inc()
				return CheckInResult{Status: CheckInAlreadyCheckedIn, Radius: s.radius}, nil
			}
			return s.rejectExisting(current), nil
		}
		return CheckInResult{}, err
	}

	checkinsTotal.WithLabelValues(string(classification)).Inc()
	return CheckInResult{
		Status:         CheckInAccepted,
		Time:           now,
		Distance:       dist,
		Radius:         s.radius,
		Late:           late,
		MinutesLate:    minutes,
		Classification: classification,
	}, nil
}

func (s *Service) rejectExisting(current *Record) CheckInResult {
	if current.CheckOut != nil {
		checkinsTotal.WithLabelValues("already_checked_out").Inc()
		return CheckInResult{Status: CheckInAlreadyCheckedOut, Radius: s.radius}
	}
	checkinsTotal.WithLabelValues("already_checked_in").Inc()
	return CheckInResult{Status: CheckInAlreadyCheckedIn, Time: current.CheckIn.In(s.loc), Radius: s.radius}
}

// RequestCheckOut runs the check-out state machine for one location event.
func (s *Service) RequestCheckOut(ctx context.Context, userID int64, now time.Time, point geo.Point) (CheckOutResult, error) {
	now = now.In(s.loc)
	date := DateOf(now)

	current, err := s.store.TodayStatus(ctx, userID, date)
	if err != nil {
		return CheckOutResult{}, err
	}
	if current == nil {
		checkoutsTotal.WithLabelValues("not_checked_in").Inc()
		return CheckOutResult{Status: CheckOutNotCheckedIn, Radius: s.radius}, nil
	}
	if current.CheckOut != nil {
		checkoutsTotal.WithLabelValues("already_checked_out").Inc()
		return CheckOutResult{Status: CheckOutAlreadyCheckedOut, Radius: s.radius}, nil
	}

	within, dist, err := geo.WithinRadius(point, s.center, s.radius)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			checkoutsTotal.WithLabelValues("invalid_location").Inc()
			return CheckOutResult{Status: CheckOutInvalidLocation}, nil
		}
		return CheckOutResult{}, err
	}
	if !within {
		checkoutsTotal.WithLabelValues("too_far").Inc()
		return CheckOutResult{Status: CheckOutTooFar, Distance: dist, Radius: s.radius}, nil
	}

	checkInTime, totalHours, err := s.store.CheckOut(ctx, userID, date, now, point.Lat, point.Lon)
	if err != nil {
		if errors.Is(err, ErrNoOpenCheckIn) {
			// Closed between the status read and the update.
			checkoutsTotal.WithLabelValues("already_checked_out").Inc()
			return CheckOutResult{Status: CheckOutAlreadyCheckedOut, Radius: s.radius}, nil
		}
		return CheckOutResult{}, err
	}

	checkoutsTotal.WithLabelValues("accepted").Inc()
	return CheckOutResult{
		Status:       CheckOutAccepted,
		CheckInTime:  checkInTime.In(s.loc),
		CheckOutTime: now,
		TotalHours:   totalHours,
		Distance:     dist,
		Radius:       s.radius,
	}, nil
}
