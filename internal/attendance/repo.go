package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"attendbot/internal/schedule"
)

// ErrDuplicateCheckIn reports a check-in attempt for a (user, date) pair
// that already has a record. The uniqueness constraint in Postgres raises
// it even under racing requests.
var ErrDuplicateCheckIn = errors.New("attendance: already checked in today")

// ErrNoOpenCheckIn reports a check-out attempt with no open check-in for
// today: either no record exists or it is already closed.
var ErrNoOpenCheckIn = errors.New("attendance: no open check-in for today")

// Record is one user's attendance for one calendar date.
type Record struct {
	ID         string
	UserID     int64
	Date       string // calendar date in the site timezone, YYYY-MM-DD
	CheckIn    time.Time
	CheckInLat float64
	CheckInLon float64

	CheckOut    *time.Time
	CheckOutLat *float64
	CheckOutLon *float64
	TotalHours  *float64

	Status         string // checked_in | checked_out
	LateMinutes    int
	Classification schedule.Status
	CreatedAt      time.Time
}

// Teacher is a registered bot user.
type Teacher struct {
	UserID               int64
	Username             *string
	FirstName            string
	LastName             *string
	Language             string
	IsAdmin              bool
	IsActive             bool
	NotificationsEnabled bool
	CreatedAt            time.Time
}

// DateOf returns the calendar-date key for a timestamp in its location.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CheckIn inserts the record for (user, date). The insert is a single
// atomic statement; when the unique (user_id, date) constraint swallows it,
// ErrDuplicateCheckIn is returned and no row is written.
func (r *Repository) CheckIn(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = "checked_in"
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (
			id, user_id, date, check_in_time,
			check_in_latitude, check_in_longitude,
			status, late_minutes, checkin_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (user_id, date) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.Date, rec.CheckIn, rec.CheckInLat, rec.CheckInLon,
		rec.Status, rec.LateMinutes, string(rec.Classification))
	var createdAt time.Time
	if err := row.Scan(&createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicateCheckIn
		}
		return err
	}
	return nil
}

// CheckOut closes today's open record in one conditional update, computing
// total hours in SQL from the stored check-in time. ErrNoOpenCheckIn is
// returned when no row matches, which covers both "never checked in" and
// "already checked out".
func (r *Repository) CheckOut(ctx context.Context, userID int64, date string, t time.Time, lat, lon float64) (time.Time, float64, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance SET
			check_out_time = $3,
			check_out_latitude = $4,
			check_out_longitude = $5,
			total_hours = EXTRACT(EPOCH FROM ($3::timestamptz - check_in_time)) / 3600.0,
			status = 'checked_out',
			updated_at = NOW()
		WHERE user_id = $1 AND date = $2 AND check_out_time IS NULL
		RETURNING check_in_time, total_hours
	`, userID, date, t, lat, lon)
	var checkIn time.Time
	var totalHours float64
	if err := row.Scan(&checkIn, &totalHours); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, 0, ErrNoOpenCheckIn
		}
		return time.Time{}, 0, err
	}
	return checkIn, totalHours, nil
}

const recordColumns = `
	id, user_id, to_char(date, 'YYYY-MM-DD'), check_in_time,
	check_in_latitude, check_in_longitude,
	check_out_time, check_out_latitude, check_out_longitude,
	total_hours, status, late_minutes, checkin_status, created_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var classification string
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Date, &rec.CheckIn,
		&rec.CheckInLat, &rec.CheckInLon,
		&rec.CheckOut, &rec.CheckOutLat, &rec.CheckOutLon,
		&rec.TotalHours, &rec.Status, &rec.LateMinutes, &classification, &rec.CreatedAt)
	rec.Classification = schedule.Status(classification)
	return rec, err
}

// TodayStatus returns the record for (user, date), or nil when none exists.
func (r *Repository) TodayStatus(ctx context.Context, userID int64, date string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE user_id = $1 AND date = $2
	`, userID, date)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// History returns the user's most recent records, newest date first.
func (r *Repository) History(ctx context.Context, userID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ReportRow is an attendance record joined with the teacher's name for
// the admin report.
type ReportRow struct {
	Record
	Username  *string
	FirstName string
	LastName  *string
}

// DailyReport returns every record for a date ordered by check-in time.
func (r *Repository) DailyReport(ctx context.Context, date string) ([]ReportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			a.id, a.user_id, to_char(a.date, 'YYYY-MM-DD'), a.check_in_time,
			a.check_in_latitude, a.check_in_longitude,
			a.check_out_time, a.check_out_latitude, a.check_out_longitude,
			a.total_hours, a.status, a.late_minutes, a.checkin_status, a.created_at,
			t.username, t.first_name, t.last_name
		FROM attendance a
		JOIN teachers t ON a.user_id = t.user_id
		WHERE a.date = $1
		ORDER BY a.check_in_time
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReportRow
	for rows.Next() {
		var row ReportRow
		var classification string
		if err := rows.Scan(&row.ID, &row.UserID, &row.Date, &row.CheckIn,
			&row.CheckInLat, &row.CheckInLon,
			&row.CheckOut, &row.CheckOutLat, &row.CheckOutLon,
			&row.TotalHours, &row.Status, &row.LateMinutes, &classification, &row.CreatedAt,
			&row.Username, &row.FirstName, &row.LastName); err != nil {
			return nil, err
		}
		row.Classification = schedule.Status(classification)
		res = append(res, row)
	}
	return res, rows.Err()
}

// UpsertTeacher creates or refreshes a teacher profile. /start calls this
// on every interaction, so the insert is idempotent on user_id.
func (r *Repository) UpsertTeacher(ctx context.Context, t Teacher) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teachers (user_id, username, first_name, last_name, language, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_admin = EXCLUDED.is_admin,
			updated_at = NOW()
	`, t.UserID, t.Username, t.FirstName, t.LastName, t.Language, t.IsAdmin)
	return err
}

// GetTeacher returns a teacher by id, or nil when unregistered.
func (r *Repository) GetTeacher(ctx context.Context, userID int64) (*Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, first_name, last_name, language,
		       is_admin, is_active, notification_enabled, created_at
		FROM teachers WHERE user_id = $1
	`, userID)
	var t Teacher
	if err := row.Scan(&t.UserID, &t.Username, &t.FirstName, &t.LastName, &t.Language,
		&t.IsAdmin, &t.IsActive, &t.NotificationsEnabled, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// SetLanguage records the user's preferred language.
func (r *Repository) SetLanguage(ctx context.Context, userID int64, language string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE teachers SET language = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, language)
	return err
}

// SetNotificationsEnabled toggles reminder delivery for a user.
func (r *Repository) SetNotificationsEnabled(ctx context.Context, userID int64, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE teachers SET notification_enabled = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, enabled)
	return err
}

// ListActive returns all active teachers.
func (r *Repository) ListActive(ctx context.Context) ([]Teacher, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, username, first_name, last_name, language,
		       is_admin, is_active, notification_enabled, created_at
		FROM teachers WHERE is_active ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Teacher
	for rows.Next() {
		var t Teacher
		if err := rows.Scan(&t.UserID, &t.Username, &t.FirstName, &t.LastName, &t.Language,
			&t.IsAdmin, &t.IsActive, &t.NotificationsEnabled, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// LogNotification records one reminder delivery attempt.
func (r *Repository) LogNotification(ctx context.Context, userID int64, kind string, delivered bool, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications_log (user_id, notification_type, was_delivered, error_message)
		VALUES ($1, $2, $3, $4)
	`, userID, kind, delivered, msg)
	return err
}

// DeliveryStats summarizes reminder delivery over a trailing window.
type DeliveryStats struct {
	TotalSent int            `json:"total_sent"`
	Delivered int            `json:"delivered"`
	Failed    int            `json:"failed"`
	ByType    map[string]int `json:"by_type"`
}

// NotificationStats aggregates the notification log for the last N days.
func (r *Repository) NotificationStats(ctx context.Context, days int) (DeliveryStats, error) {
	if days <= 0 {
		days = 7
	}
	stats := DeliveryStats{ByType: map[string]int{}}
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE was_delivered)
		FROM notifications_log
		WHERE sent_at >= NOW() - ($1 * interval '1 day')
	`, days)
	if err := row.Scan(&stats.TotalSent, &stats.Delivered); err != nil {
		return stats, err
	}
	stats.Failed = stats.TotalSent - stats.Delivered

	rows, err := r.db.QueryContext(ctx, `
		SELECT notification_type, COUNT(*)
		FROM notifications_log
		WHERE sent_at >= NOW() - ($1 * interval '1 day')
		GROUP BY notification_type
	`, days)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return stats, err
		}
		stats.ByType[kind] = count
	}
	return stats, rows.Err()
}

// LogAdminAction records an audited admin operation.
func (r *Repository) LogAdminAction(ctx context.Context, adminID int64, action string, targetID *int64, details string) error {
	var d *string
	if details != "" {
		d = &details
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_logs (admin_user_id, action, target_user_id, details)
		VALUES ($1, $2, $3, $4)
	`, adminID, action, targetID, d)
	return err
}
