package schedule

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"attendbot/internal/config"
)

func testSchedule() config.Schedule {
	return config.Schedule{
		StartMinute:       8 * 60,
		EndMinute:         17 * 60,
		GraceMinutes:      15,
		WorkDays:          []int{1, 2, 3, 4, 5},
		MorningBeforeMin:  15,
		LateAfterMin:      15,
		CheckoutBeforeMin: 15,
		ForgottenAfterMin: 30,
		Location:          time.UTC,
	}
}

// 2024-01-01 is a Monday.
func monday(hour, min, sec int) time.Time {
	return time.Date(2024, 1, 1, hour, min, sec, 0, time.UTC)
}

func TestISOWeekday(t *testing.T) {
	tests := []struct {
		day  int // of January 2024; the 1st is a Monday
		want int
	}{
		{1, 1},
		{5, 5},
		{6, 6},
		{7, 7},
		{8, 1},
	}
	for _, tt := range tests {
		d := time.Date(2024, 1, tt.day, 12, 0, 0, 0, time.UTC)
		if got := ISOWeekday(d); got != tt.want {
			t.Errorf("ISOWeekday(Jan %d) = %d, want %d", tt.day, got, tt.want)
		}
	}
}

func TestIsWorkingDay(t *testing.T) {
	c := NewClassifier(testSchedule())

	if !c.IsWorkingDay(monday(12, 0, 0)) {
		t.Error("Monday should be a working day")
	}
	saturday := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	if c.IsWorkingDay(saturday) {
		t.Error("Saturday should not be a working day")
	}
	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)
	if c.IsWorkingDay(sunday) {
		t.Error("Sunday should not be a working day")
	}
}

func TestLateness(t *testing.T) {
	c := NewClassifier(testSchedule())

	tests := []struct {
		name    string
		checkin time.Time
		late    bool
		minutes int
	}{
		{"well before start", monday(7, 30, 0), false, 0},
		{"exactly at start", monday(8, 0, 0), false, 0},
		{"inside grace window", monday(8, 10, 0), false, 0},
		{"last on-time second", monday(8, 15, 0), false, 0},
		{"one second past grace", monday(8, 15, 1), true, 0},
		{"one minute past grace", monday(8, 16, 0), true, 1},
		{"thirty minutes past grace", monday(8, 45, 0), true, 30},
		{"thirty minutes and a second", monday(8, 45, 1), true, 30},
		{"thirty-one minutes past grace", monday(8, 46, 0), true, 31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			late, minutes := c.Lateness(tt.checkin)
			if late != tt.late || minutes != tt.minutes {
				t.Fatalf("Lateness(%s) = (%v, %d), want (%v, %d)",
					tt.checkin.Format("15:04:05"), late, minutes, tt.late, tt.minutes)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(testSchedule())

	tests := []struct {
		checkin time.Time
		want    Status
	}{
		{monday(8, 15, 0), OnTime},
		{monday(8, 15, 1), Late},
		{monday(8, 45, 0), Late},
		{monday(8, 45, 59), Late},
		{monday(8, 46, 0), VeryLate},
		{monday(11, 0, 0), VeryLate},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.checkin); got != tt.want {
			t.Errorf("Classify(%s) = %q, want %q",
				tt.checkin.Format("15:04:05"), got, tt.want)
		}
	}
}

func TestLatenessConvertsZone(t *testing.T) {
	cfg := testSchedule()
	cfg.Location = time.FixedZone("UTC+5", 5*3600)
	c := NewClassifier(cfg)

	// 03:20 UTC is 08:20 local, five minutes past the grace deadline.
	late, minutes := c.Lateness(time.Date(2024, 1, 1, 3, 20, 0, 0, time.UTC))
	if !late || minutes != 5 {
		t.Fatalf("Lateness = (%v, %d), want (true, 5)", late, minutes)
	}
}

func TestNotificationTimes(t *testing.T) {
	c := NewClassifier(testSchedule())

	got := c.NotificationTimes()
	want := Times{
		Morning:           ClockTime(7*60 + 45),
		LateWarning:       ClockTime(8*60 + 15),
		CheckoutReminder:  ClockTime(16*60 + 45),
		ForgottenCheckout: ClockTime(17*60 + 30),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NotificationTimes mismatch (-want +got):\n%s", diff)
	}
}

func TestNotificationTimesWrapMidnight(t *testing.T) {
	cfg := testSchedule()
	cfg.StartMinute = 10 // 00:10
	cfg.MorningBeforeMin = 30
	c := NewClassifier(cfg)

	got := c.NotificationTimes().Morning
	if want := ClockTime(23*60 + 40); got != want {
		t.Fatalf("Morning = %s, want %s", got, want)
	}

	cfg = testSchedule()
	cfg.EndMinute = 23*60 + 45 // 23:45
	cfg.ForgottenAfterMin = 30
	c = NewClassifier(cfg)

	got = c.NotificationTimes().ForgottenCheckout
	if want := ClockTime(15); got != want {
		t.Fatalf("ForgottenCheckout = %s, want %s", got, want)
	}
}

func TestIsWithinWorkHours(t *testing.T) {
	c := NewClassifier(testSchedule())

	tests := []struct {
		at   time.Time
		want bool
	}{
		{monday(7, 59, 0), false},
		{monday(8, 0, 0), true},
		{monday(12, 30, 0), true},
		{monday(17, 0, 0), true},
		{monday(17, 1, 0), false},
		{time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC), false}, // Saturday noon
	}
	for _, tt := range tests {
		if got := c.IsWithinWorkHours(tt.at); got != tt.want {
			t.Errorf("IsWithinWorkHours(%s) = %v, want %v",
				tt.at.Format("Mon 15:04"), got, tt.want)
		}
	}
}

func TestShouldFire(t *testing.T) {
	c := NewClassifier(testSchedule())

	// Morning reminder triggers at 07:45; the poll window is one minute
	// either side.
	tests := []struct {
		at   time.Time
		kind ReminderKind
		want bool
	}{
		{monday(7, 44, 0), MorningReminder, true},
		{monday(7, 45, 0), MorningReminder, true},
		{monday(7, 45, 59), MorningReminder, true},
		{monday(7, 46, 0), MorningReminder, true},
		{monday(7, 47, 0), MorningReminder, false},
		{monday(7, 43, 0), MorningReminder, false},
		{monday(8, 15, 0), LateWarning, true},
		{monday(16, 45, 0), CheckoutReminder, true},
		{monday(17, 30, 0), ForgottenCheckout, true},
		{monday(7, 45, 0), ReminderKind("bogus"), false},
		// Saturday at the trigger time.
		{time.Date(2024, 1, 6, 7, 45, 0, 0, time.UTC), MorningReminder, false},
	}
	for _, tt := range tests {
		if got := c.ShouldFire(tt.at, tt.kind); got != tt.want {
			t.Errorf("ShouldFire(%s, %s) = %v, want %v",
				tt.at.Format("Mon 15:04:05"), tt.kind, got, tt.want)
		}
	}
}

func TestClockTimeString(t *testing.T) {
	tests := []struct {
		ct   ClockTime
		want string
	}{
		{0, "00:00"},
		{480, "08:00"},
		{495, "08:15"},
		{23*60 + 40, "23:40"},
	}
	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.want {
			t.Errorf("ClockTime(%d).String() = %q, want %q", int(tt.ct), got, tt.want)
		}
	}
}

func TestGraceDeadline(t *testing.T) {
	c := NewClassifier(testSchedule())
	if got := c.GraceDeadline(); got != ClockTime(495) {
		t.Fatalf("GraceDeadline = %s, want 08:15", got)
	}
}
