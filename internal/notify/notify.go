// Package notify drives the four scheduled reminders: a minute-resolution
// tick decides what is due, and a dispatcher delivers one message per
// recipient without letting one failure abort the rest.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"attendbot/internal/attendance"
	"attendbot/internal/locale"
	"attendbot/internal/queue"
	"attendbot/internal/schedule"
)

// Sender delivers one rendered message to one chat. The Telegram client
// satisfies it; tests substitute a recorder.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Directory is the user/attendance lookup surface the dispatcher needs.
type Directory interface {
	ListActive(ctx context.Context) ([]attendance.Teacher, error)
	TodayStatus(ctx context.Context, userID int64, date string) (*attendance.Record, error)
	LogNotification(ctx context.Context, userID int64, kind string, delivered bool, errMsg string) error
}

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendbot_notifications_total",
	Help: "Reminder messages by kind and delivery result.",
}, []string{"kind", "result"})

// Dispatcher evaluates reminder schedules and delivers the due ones.
type Dispatcher struct {
	classifier *schedule.Classifier
	dir        Directory
	q          queue.Queue
	sender     Sender
	messages   *locale.Catalog
	loc        *time.Location
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(classifier *schedule.Classifier, dir Directory, q queue.Queue, sender Sender, messages *locale.Catalog, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{classifier: classifier, dir: dir, q: q, sender: sender, messages: messages, loc: loc}
}

// Tick checks every reminder kind against now and enqueues one message per
// applicable recipient. Users already checked in are skipped for morning
// and late reminders; users already checked out are skipped for checkout
// and forgotten-checkout reminders.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) {
	now = now.In(d.loc)
	for _, kind := range schedule.Kinds {
		if !d.classifier.ShouldFire(now, kind) {
			continue
		}
		d.enqueueKind(ctx, kind, now)
	}
}

func (d *Dispatcher) enqueueKind(ctx context.Context, kind schedule.ReminderKind, now time.Time) {
	teachers, err := d.dir.ListActive(ctx)
	if err != nil {
		log.Printf("reminder %s: listing users failed: %v", kind, err)
		return
	}
	date := attendance.DateOf(now)
	enqueued := 0
	for _, t := range teachers {
		if !t.NotificationsEnabled {
			continue
		}
		applicable, err := d.applies(ctx, kind, t.UserID, date)
		if err != nil {
			log.Printf("reminder %s: status lookup for user %d failed: %v", kind, t.UserID, err)
			continue
		}
		if !applicable {
			continue
		}
		msg := queue.Message{Kind: string(kind), UserID: t.UserID, Lang: t.Language}
		if err := d.q.Publish(ctx, msg); err != nil {
			log.Printf("reminder %s: enqueue for user %d failed: %v", kind, t.UserID, err)
			continue
		}
		enqueued++
	}
	log.Printf("reminder %s due at %s: %d recipient(s) enqueued", kind, now.Format("15:04"), enqueued)
}

func (d *Dispatcher) applies(ctx context.Context, kind schedule.ReminderKind, userID int64, date string) (bool, error) {
	rec, err := d.dir.TodayStatus(ctx, userID, date)
	if err != nil {
		return false, err
	}
	switch kind {
	case schedule.MorningReminder, schedule.LateWarning:
		// Only users who have not checked in yet.
		return rec == nil, nil
	case schedule.CheckoutReminder, schedule.ForgottenCheckout:
		// Only users with an open check-in.
		return rec != nil && rec.CheckOut == nil, nil
	}
	return false, nil
}

// Run consumes the queue and delivers each reminder. Every send is an
// independent unit of work: failures are logged and recorded, never
// propagated. Blocks until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	messages, err := d.q.Consume(ctx)
	if err != nil {
		return err
	}
	log.Println("reminder dispatcher started")
	for msg := range messages {
		d.deliver(ctx, msg)
	}
	log.Println("reminder dispatcher stopped")
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg queue.Message) {
	text := d.render(msg)
	if err := d.sender.Send(ctx, msg.UserID, text); err != nil {
		log.Printf("reminder %s to user %d failed: %v", msg.Kind, msg.UserID, err)
		notificationsTotal.WithLabelValues(msg.Kind, "failed").Inc()
		if logErr := d.dir.LogNotification(ctx, msg.UserID, msg.Kind, false, err.Error()); logErr != nil {
			log.Printf("recording failed delivery for user %d: %v", msg.UserID, logErr)
		}
		return
	}
	notificationsTotal.WithLabelValues(msg.Kind, "delivered").Inc()
	if err := d.dir.LogNotification(ctx, msg.UserID, msg.Kind, true, ""); err != nil {
		log.Printf("recording delivery for user %d: %v", msg.UserID, err)
	}
}

func (d *Dispatcher) render(msg queue.Message) string {
	switch schedule.ReminderKind(msg.Kind) {
	case schedule.MorningReminder:
		return d.messages.T(msg.Lang, "notif_morning", d.classifier.StartTime().String())
	case schedule.LateWarning:
		return d.messages.T(msg.Lang, "notif_late", d.classifier.StartTime().String())
	case schedule.CheckoutReminder:
		return d.messages.T(msg.Lang, "notif_checkout", d.classifier.EndTime().String())
	case schedule.ForgottenCheckout:
		return d.messages.T(msg.Lang, "notif_forgotten", d.classifier.EndTime().String())
	}
	return d.messages.T(msg.Lang, "error_general")
}
