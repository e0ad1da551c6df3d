// Package schedule classifies check-in times against the configured work
// schedule and derives the reminder trigger times.
package schedule

import (
	"fmt"
	"time"

	"attendbot/internal/config"
)

// Status classifies how a check-in relates to the work start time.
type Status string

const (
	OnTime   Status = "on_time"
	Late     Status = "late"
	VeryLate Status = "very_late"
)

// Late check-ins past this many minutes are classified VeryLate.
const veryLateThreshold = 30

// ReminderKind names one of the four scheduled reminders.
type ReminderKind string

const (
	MorningReminder   ReminderKind = "morning_reminder"
	LateWarning       ReminderKind = "late_warning"
	CheckoutReminder  ReminderKind = "checkout_reminder"
	ForgottenCheckout ReminderKind = "forgotten_checkout"
)

// Kinds lists every reminder in dispatch order.
var Kinds = []ReminderKind{MorningReminder, LateWarning, CheckoutReminder, ForgottenCheckout}

// ClockTime is a wall-clock time of day with minute precision.
type ClockTime int

// Minutes returns the minute-of-day value.
func (c ClockTime) Minutes() int { return int(c) }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Times holds the derived trigger time for each reminder kind.
type Times struct {
	Morning           ClockTime
	LateWarning       ClockTime
	CheckoutReminder  ClockTime
	ForgottenCheckout ClockTime
}

// For returns the trigger time for a kind; ok is false for unknown kinds.
func (t Times) For(kind ReminderKind) (ClockTime, bool) {
	switch kind {
	case MorningReminder:
		return t.Morning, true
	case LateWarning:
		return t.LateWarning, true
	case CheckoutReminder:
		return t.CheckoutReminder, true
	case ForgottenCheckout:
		return t.ForgottenCheckout, true
	}
	return 0, false
}

// Classifier answers schedule questions for a fixed configuration. It holds
// no mutable state; every method is a pure function of config and input.
type Classifier struct {
	cfg config.Schedule
}

// NewClassifier builds a classifier for the given schedule.
func NewClassifier(cfg config.Schedule) *Classifier {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Classifier{cfg: cfg}
}

// ISOWeekday returns the weekday number with Monday=1 and Sunday=7.
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

// IsWorkingDay reports whether t falls on a configured work day.
func (c *Classifier) IsWorkingDay(t time.Time) bool {
	day := ISOWeekday(t.In(c.cfg.Location))
	for _, d := range c.cfg.WorkDays {
		if d == day {
			return true
		}
	}
	return false
}

// Lateness reports whether a check-in is late and by how many whole
// minutes. Minutes are measured from the end of the grace window, not from
// the nominal start time, and floored to whole minutes.
func (c *Classifier) Lateness(checkin time.Time) (bool, int) {
	local := checkin.In(c.cfg.Location)
	scheduledStart := time.Date(local.Year(), local.Month(), local.Day(),
		c.cfg.StartMinute/60, c.cfg.StartMinute%60, 0, 0, c.cfg.Location)
	graceDeadline := scheduledStart.Add(time.Duration(c.cfg.GraceMinutes) * time.Minute)

	if !local.After(graceDeadline) {
		return false, 0
	}
	minutesLate := int(local.Sub(graceDeadline).Seconds()) / 60
	return true, minutesLate
}

// Classify buckets a check-in time as OnTime, Late (up to 30 minutes past
// the grace deadline, inclusive) or VeryLate.
func (c *Classifier) Classify(checkin time.Time) Status {
	late, minutes := c.Lateness(checkin)
	switch {
	case !late:
		return OnTime
	case minutes <= veryLateThreshold:
		return Late
	default:
		return VeryLate
	}
}

// NotificationTimes derives the four reminder trigger times from the work
// schedule. Minute arithmetic wraps across midnight (mod 1440); a start
// near midnight yields a previous-day clock time rather than a negative one.
func (c *Classifier) NotificationTimes() Times {
	return Times{
		Morning:           wrap(c.cfg.StartMinute - c.cfg.MorningBeforeMin),
		LateWarning:       wrap(c.cfg.StartMinute + c.cfg.LateAfterMin),
		CheckoutReminder:  wrap(c.cfg.EndMinute - c.cfg.CheckoutBeforeMin),
		ForgottenCheckout: wrap(c.cfg.EndMinute + c.cfg.ForgottenAfterMin),
	}
}

func wrap(minutes int) ClockTime {
	const day = 24 * 60
	m := minutes % day
	if m < 0 {
		m += day
	}
	return ClockTime(m)
}

// IsWithinWorkHours reports whether t is on a work day and between the work
// start and end times, both ends inclusive.
func (c *Classifier) IsWithinWorkHours(t time.Time) bool {
	if !c.IsWorkingDay(t) {
		return false
	}
	local := t.In(c.cfg.Location)
	minute := local.Hour()*60 + local.Minute()
	return minute >= c.cfg.StartMinute && minute <= c.cfg.EndMinute
}

// ShouldFire reports whether the given reminder is due at t. The external
// driver polls roughly once per minute, so the match window is ±1 minute
// rather than an exact instant.
func (c *Classifier) ShouldFire(t time.Time, kind ReminderKind) bool {
	if !c.IsWorkingDay(t) {
		return false
	}
	target, ok := c.NotificationTimes().For(kind)
	if !ok {
		return false
	}
	local := t.In(c.cfg.Location)
	minute := local.Hour()*60 + local.Minute()
	diff := minute - target.Minutes()
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

// StartTime returns the configured work start as a clock time.
func (c *Classifier) StartTime() ClockTime { return ClockTime(c.cfg.StartMinute) }

// EndTime returns the configured work end as a clock time.
func (c *Classifier) EndTime() ClockTime { return ClockTime(c.cfg.EndMinute) }

// GraceDeadline returns the latest on-time clock time.
func (c *Classifier) GraceDeadline() ClockTime {
	return wrap(c.cfg.StartMinute + c.cfg.GraceMinutes)
}

// WorkDays returns the configured ISO work-day numbers.
func (c *Classifier) WorkDays() []int { return c.cfg.WorkDays }
