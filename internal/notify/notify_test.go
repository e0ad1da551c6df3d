package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"attendbot/internal/attendance"
	"attendbot/internal/config"
	"attendbot/internal/locale"
	"attendbot/internal/queue"
	"attendbot/internal/schedule"
)

type fakeDirectory struct {
	teachers []attendance.Teacher
	status   map[int64]*attendance.Record

	mu   sync.Mutex
	logs []loggedNotification
}

type loggedNotification struct {
	UserID    int64
	Kind      string
	Delivered bool
	Err       string
}

func (d *fakeDirectory) ListActive(ctx context.Context) ([]attendance.Teacher, error) {
	return d.teachers, nil
}

func (d *fakeDirectory) TodayStatus(ctx context.Context, userID int64, date string) (*attendance.Record, error) {
	return d.status[userID], nil
}

func (d *fakeDirectory) LogNotification(ctx context.Context, userID int64, kind string, delivered bool, errMsg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logs = append(d.logs, loggedNotification{UserID: userID, Kind: kind, Delivered: delivered, Err: errMsg})
	return nil
}

// recordQueue captures published messages without a consumer.
type recordQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (q *recordQueue) Publish(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordQueue) Consume(ctx context.Context) (<-chan queue.Message, error) {
	ch := make(chan queue.Message)
	close(ch)
	return ch, nil
}

// recordSender records sends and fails for the configured chat ids.
type recordSender struct {
	failFor map[int64]bool

	mu    sync.Mutex
	sends map[int64]string
}

func newRecordSender(failFor ...int64) *recordSender {
	s := &recordSender{failFor: make(map[int64]bool), sends: make(map[int64]string)}
	for _, id := range failFor {
		s.failFor[id] = true
	}
	return s
}

func (s *recordSender) Send(ctx context.Context, chatID int64, text string) error {
	if s.failFor[chatID] {
		return errors.New("blocked by user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends[chatID] = text
	return nil
}

func testClassifier() *schedule.Classifier {
	return schedule.NewClassifier(config.Schedule{
		StartMinute:       8 * 60,
		EndMinute:         17 * 60,
		GraceMinutes:      15,
		WorkDays:          []int{1, 2, 3, 4, 5},
		MorningBeforeMin:  15,
		LateAfterMin:      15,
		CheckoutBeforeMin: 15,
		ForgottenAfterMin: 30,
		Location:          time.UTC,
	})
}

func teacher(id int64, lang string) attendance.Teacher {
	return attendance.Teacher{
		UserID:               id,
		Language:             lang,
		IsActive:             true,
		NotificationsEnabled: true,
	}
}

func checkedIn(at time.Time) *attendance.Record {
	return &attendance.Record{CheckIn: at, Status: "checked_in"}
}

func checkedOut(in, out time.Time) *attendance.Record {
	return &attendance.Record{CheckIn: in, CheckOut: &out, Status: "checked_out"}
}

// 2024-01-01 is a Monday.
func monday(hour, min int) time.Time {
	return time.Date(2024, 1, 1, hour, min, 0, 0, time.UTC)
}

func TestTickMorningSkipsCheckedIn(t *testing.T) {
	noNotif := teacher(3, "uz")
	noNotif.NotificationsEnabled = false

	dir := &fakeDirectory{
		teachers: []attendance.Teacher{teacher(1, "en"), teacher(2, "ru"), noNotif, teacher(4, "uz")},
		status: map[int64]*attendance.Record{
			2: checkedIn(monday(7, 40)), // already in, no morning nag
		},
	}
	q := &recordQueue{}
	d := NewDispatcher(testClassifier(), dir, q, newRecordSender(), locale.New("uz"), time.UTC)

	d.Tick(context.Background(), monday(7, 45))

	want := []queue.Message{
		{Kind: "morning_reminder", UserID: 1, Lang: "en"},
		{Kind: "morning_reminder", UserID: 4, Lang: "uz"},
	}
	if diff := cmp.Diff(want, q.msgs); diff != "" {
		t.Fatalf("enqueued messages mismatch (-want +got):\n%s", diff)
	}
}

func TestTickCheckoutSkipsClosedAndAbsent(t *testing.T) {
	dir := &fakeDirectory{
		teachers: []attendance.Teacher{teacher(1, "en"), teacher(2, "en"), teacher(3, "en")},
		status: map[int64]*attendance.Record{
			1: checkedIn(monday(8, 5)),                 // open, gets the reminder
			2: checkedOut(monday(8, 0), monday(16, 0)), // already left
			// 3 never checked in today
		},
	}
	q := &recordQueue{}
	d := NewDispatcher(testClassifier(), dir, q, newRecordSender(), locale.New("uz"), time.UTC)

	d.Tick(context.Background(), monday(16, 45))

	want := []queue.Message{{Kind: "checkout_reminder", UserID: 1, Lang: "en"}}
	if diff := cmp.Diff(want, q.msgs); diff != "" {
		t.Fatalf("enqueued messages mismatch (-want +got):\n%s", diff)
	}
}

func TestTickQuietOffSchedule(t *testing.T) {
	dir := &fakeDirectory{teachers: []attendance.Teacher{teacher(1, "en")}}
	q := &recordQueue{}
	d := NewDispatcher(testClassifier(), dir, q, newRecordSender(), locale.New("uz"), time.UTC)

	d.Tick(context.Background(), monday(12, 0))
	if len(q.msgs) != 0 {
		t.Fatalf("nothing is due at noon, got %d message(s)", len(q.msgs))
	}

	// Trigger time on a Saturday.
	d.Tick(context.Background(), time.Date(2024, 1, 6, 7, 45, 0, 0, time.UTC))
	if len(q.msgs) != 0 {
		t.Fatalf("nothing fires on a Saturday, got %d message(s)", len(q.msgs))
	}
}

func TestDeliverIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{}
	sender := newRecordSender(2) // delivery to user 2 fails
	d := NewDispatcher(testClassifier(), dir, &recordQueue{}, sender, locale.New("uz"), time.UTC)

	for _, id := range []int64{1, 2, 3} {
		d.deliver(ctx, queue.Message{Kind: "morning_reminder", UserID: id, Lang: "en"})
	}

	if len(sender.sends) != 2 {
		t.Fatalf("delivered = %d, want 2", len(sender.sends))
	}
	for _, id := range []int64{1, 3} {
		if _, ok := sender.sends[id]; !ok {
			t.Errorf("user %d did not receive the reminder", id)
		}
	}

	want := []loggedNotification{
		{UserID: 1, Kind: "morning_reminder", Delivered: true},
		{UserID: 2, Kind: "morning_reminder", Delivered: false, Err: "blocked by user"},
		{UserID: 3, Kind: "morning_reminder", Delivered: true},
	}
	if diff := cmp.Diff(want, dir.logs); diff != "" {
		t.Fatalf("notification log mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderPerKindAndLanguage(t *testing.T) {
	d := NewDispatcher(testClassifier(), &fakeDirectory{}, &recordQueue{}, newRecordSender(), locale.New("uz"), time.UTC)

	tests := []struct {
		kind     string
		lang     string
		contains string
	}{
		{"morning_reminder", "en", "08:00"},
		{"late_warning", "en", "08:00"},
		{"checkout_reminder", "en", "17:00"},
		{"forgotten_checkout", "en", "17:00"},
		{"morning_reminder", "ru", "08:00"},
		{"morning_reminder", "uz", "08:00"},
	}
	for _, tt := range tests {
		got := d.render(queue.Message{Kind: tt.kind, Lang: tt.lang})
		if !strings.Contains(got, tt.contains) {
			t.Errorf("render(%s, %s) = %q, want it to mention %s", tt.kind, tt.lang, got, tt.contains)
		}
	}
}

func TestRunDrainsQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := &fakeDirectory{}
	sender := newRecordSender()
	q := queue.NewInMemory(8)
	d := NewDispatcher(testClassifier(), dir, q, sender, locale.New("uz"), time.UTC)

	for i := int64(1); i <= 3; i++ {
		if err := q.Publish(ctx, queue.Message{Kind: "morning_reminder", UserID: i, Lang: "en"}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		sender.mu.Lock()
		n := len(sender.sends)
		sender.mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("delivered %d of 3 before timeout", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	for i := int64(1); i <= 3; i++ {
		if _, ok := sender.sends[i]; !ok {
			t.Errorf("user %d did not receive the reminder", i)
		}
	}
}
