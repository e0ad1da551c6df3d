// Package bot routes Telegram updates through guards into the attendance
// engine and renders outcomes into localized replies. Every update yields
// exactly one response; no failure leaves the user without a message.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"attendbot/internal/attendance"
	"attendbot/internal/config"
	"attendbot/internal/geo"
	"attendbot/internal/locale"
	"attendbot/internal/ratelimit"
	"attendbot/internal/schedule"
	"attendbot/internal/session"
)

// Handler wires the Telegram client to the attendance engine.
type Handler struct {
	api        *tgbotapi.BotAPI
	cfg        config.App
	repo       *attendance.Repository
	engine     *attendance.Service
	classifier *schedule.Classifier
	sessions   session.Store
	messages   *locale.Catalog
	cooldown   *ratelimit.Cooldown
}

// New creates a handler.
func New(api *tgbotapi.BotAPI, cfg config.App, repo *attendance.Repository, engine *attendance.Service,
	classifier *schedule.Classifier, sessions session.Store, messages *locale.Catalog, cooldown *ratelimit.Cooldown) *Handler {
	return &Handler{
		api:        api,
		cfg:        cfg,
		repo:       repo,
		engine:     engine,
		classifier: classifier,
		sessions:   sessions,
		messages:   messages,
		cooldown:   cooldown,
	}
}

// Run long-polls updates until the context is cancelled.
func (h *Handler) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := h.api.GetUpdatesChan(u)
	log.Printf("bot started as @%s", h.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			h.api.StopReceivingUpdates()
			log.Println("bot stopped")
			return
		case update := <-updates:
			h.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one update.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID
	lang := h.langOf(ctx, userID)

	if msg.Location != nil {
		h.handleLocation(ctx, userID, lang, msg.Location)
		return
	}
	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.reply(userID, h.messages.T(lang, "help"))
	case "checkin":
		h.handleCheckInCommand(ctx, userID, lang)
	case "checkout":
		h.handleCheckOutCommand(ctx, userID, lang)
	case "cancel":
		if err := h.sessions.Clear(ctx, userID); err != nil {
			log.Printf("clearing session for user %d: %v", userID, err)
		}
		h.send(userID, h.messages.T(lang, "cancel_done"), menuKeyboard(h.cfg.IsAdmin(userID)))
	case "status":
		h.handleStatus(ctx, userID, lang)
	case "history":
		h.handleHistory(ctx, userID, lang)
	case "language":
		h.sendMarkup(userID, h.messages.T(lang, "language_choose"), languageKeyboard())
	case "notifications":
		h.handleNotificationsToggle(ctx, userID, lang)
	case "report":
		h.handleReport(ctx, userID, lang)
	case "schedule":
		h.handleSchedule(ctx, userID, lang)
	default:
		h.reply(userID, h.messages.T(lang, "help"))
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	var username, lastName *string
	if from.UserName != "" {
		username = &from.UserName
	}
	if from.LastName != "" {
		lastName = &from.LastName
	}
	teacher := attendance.Teacher{
		UserID:    from.ID,
		Username:  username,
		FirstName: from.FirstName,
		LastName:  lastName,
		Language:  h.messages.DefaultLang(),
		IsAdmin:   h.cfg.IsAdmin(from.ID),
	}
	if err := h.repo.UpsertTeacher(ctx, teacher); err != nil {
		log.Printf("registering user %d: %v", from.ID, err)
		h.reply(from.ID, h.messages.T(h.messages.DefaultLang(), "error_general"))
		return
	}
	lang := h.langOf(ctx, from.ID)
	h.send(from.ID, h.messages.T(lang, "start_welcome", from.FirstName), menuKeyboard(teacher.IsAdmin))
}

func (h *Handler) handleCheckInCommand(ctx context.Context, userID int64, lang string) {
	if !h.pass(ctx, userID, lang, h.cooldownGuard, h.workingDayGuard, h.registeredGuard) {
		return
	}
	current, err := h.repo.TodayStatus(ctx, userID, attendance.DateOf(h.cfg.Now()))
	if err != nil {
		log.Printf("today status for user %d: %v", userID, err)
		h.reply(userID, h.messages.T(lang, "error_general"))
		return
	}
	if current != nil {
		if current.CheckOut != nil {
			h.reply(userID, h.messages.T(lang, "already_checked_out"))
		} else {
			h.reply(userID, h.messages.T(lang, "already_checked_in", current.CheckIn.In(h.cfg.Schedule.Location).Format("15:04:05")))
		}
		return
	}
	if err := h.sessions.Set(ctx, userID, session.CheckIn); err != nil {
		log.Printf("setting session for user %d: %v", userID, err)
		h.reply(userID, h.messages.T(lang, "error_general"))
		return
	}
	site := geo.FormatCoordinates(geo.Point{Lat: h.cfg.SiteLatitude, Lon: h.cfg.SiteLongitude})
	text := h.messages.T(lang, "checkin_prompt", h.cfg.RadiusMeters, site)
	h.send(userID, text, locationKeyboard(h.messages.T(lang, "btn_share_location")))
}

func (h *Handler) handleCheckOutCommand(ctx context.Context, userID int64, lang string) {
	if !h.pass(ctx, userID, lang, h.cooldownGuard, h.workingDayGuard, h.registeredGuard) {
		return
	}
	current, err := h.repo.TodayStatus(ctx, userID, attendance.DateOf(h.cfg.Now()))
	if err != nil {
		log.Printf("today status for user %d: %v", userID, err)
		h.reply(userID, h.messages.T(lang, "error_general"))
		return
	}
	if current == nil {
		h.reply(userID, h.messages.T(lang, "not_checked_in"))
		return
	}
	if current.CheckOut != nil {
		h.reply(userID, h.messages.T(lang, "already_checked_out"))
		return
	}
	if err := h.sessions.Set(ctx, userID, session.CheckOut); err != nil {
		log.Printf("setting session for user %d: %v", userID, err)
		h.reply(userID, h.messages.T(lang, "error_general"))
		return
	}
	text := h.messages.T(lang, "checkout_prompt", h.cfg.RadiusMeters)
	h.send(userID, text, locationKeyboard(h.messages.T(lang, "btn_share_location")))
}

// handleLocation resolves a shared location against the pending flag. The
// flag is cleared whatever the outcome so a stale prompt cannot capture the
// next location event.
func (h *Handler) handleLocation(ctx context.Context, userID int64, lang string, loc *tgbotapi.Location) {
	pending, err := h.sessions.Get(ctx, userID)
	if err != nil {
		log.Printf("reading session for user %d: %v", userID, err)
		h.send(userID, h.messages.T(lang, "error_general"), removeKeyboard())
		return
	}
	if pending == session.None {
		h.send(userID, h.messages.T(lang, "location_no_action"), removeKeyboard())
		return
	}
	defer func() {
		if err := h.sessions.Clear(ctx, userID); err != nil {
			log.Printf("clearing session for user %d: %v", userID, err)
		}
	}()

	point := geo.Point{Lat: loc.Latitude, Lon: loc.Longitude}
	if !geo.Plausible(point) {
		h.send(userID, h.messages.T(lang, "error_invalid_location"), removeKeyboard())
		return
	}

	menu := menuKeyboard(h.cfg.IsAdmin(userID))
	now := h.cfg.Now()
	switch pending {
	case session.CheckIn:
		res, err := h.engine.RequestCheckIn(ctx, userID, now, point)
		if err != nil {
			log.Printf("check-in for user %d: %v", userID, err)
			h.send(userID, h.messages.T(lang, "error_general"), menu)
			return
		}
		h.send(userID, h.renderCheckIn(lang, res), menu)
	case session.CheckOut:
		res, err := h.engine.RequestCheckOut(ctx, userID, now, point)
		if err != nil {
			log.Printf("check-out for user %d: %v", userID, err)
			h.send(userID, h.messages.T(lang, "error_general"), menu)
			return
		}
		h.send(userID, h.renderCheckOut(lang, res), menu)
	}
}

func (h *Handler) renderCheckIn(lang string, res attendance.CheckInResult) string {
	switch res.Status {
	case attendance.CheckInAccepted:
		t := res.Time.Format("15:04:05")
		date := res.Time.Format("2006-01-02")
		if res.Late {
			return h.messages.T(lang, "checkin_success_late", t, res.MinutesLate, res.Distance)
		}
		return h.messages.T(lang, "checkin_success", t, date, res.Distance)
	case attendance.CheckInAlreadyCheckedIn:
		return h.messages.T(lang, "already_checked_in", res.Time.Format("15:04:05"))
	case attendance.CheckInAlreadyCheckedOut:
		return h.messages.T(lang, "already_checked_out")
	case attendance.CheckInTooFar:
		return h.messages.T(lang, "error_distance", res.Distance, res.Radius, res.Distance-float64(res.Radius))
	case attendance.CheckInInvalidLocation:
		return h.messages.T(lang, "error_invalid_location")
	}
	return h.messages.T(lang, "error_general")
}

func (h *Handler) renderCheckOut(lang string, res attendance.CheckOutResult) string {
	switch res.Status {
	case attendance.CheckOutAccepted:
		return h.messages.T(lang, "checkout_success",
			res.CheckOutTime.Format("15:04:05"),
			res.CheckInTime.Format("15:04:05"),
			res.TotalHours)
	case attendance.CheckOutNotCheckedIn:
		return h.messages.T(lang, "not_checked_in")
	case attendance.CheckOutAlreadyCheckedOut:
		return h.messages.T(lang, "already_checked_out")
	case attendance.CheckOutTooFar:
		return h.messages.T(lang, "error_distance", res.Distance, res.Radius, res.Distance-float64(res.Radius))
	case attendance.CheckOutInvalidLocation:
		return h.messages.T(lang, "error_invalid_location")
	}
	return h.messages.T(lang, "error_general")
}

func (h *Handler) handleStatus(ctx context.Context, userID int64, lang string) {
	if !h.pass(ctx, userID, lang, h.registeredGuard) {
		return
	}
	rec, err := h.repo.TodayStatus(ctx, userID, attendance.DateOf(h.cfg.Now()))
	if err != nil {
		log.Printf("status for user %d: %v", userID, err)
		h.reply(userID, h.messages.T(lang, "error_general"))
		return
	}
	switch {
	case rec == nil:
		h.reply(userID, h.messages.T(lang, "status_none"))
	case rec.CheckOut == nil:
		h.reply(userID, h.messages.T(lang, "status_checked_in", rec.CheckIn.In(h.cfg.Schedule.Location).Format("15:04:05")))
	default:
		h.reply(userID, h.messages.T(lang, "status_checked_out",
			rec.CheckIn.In(h.cfg.Schedule.Location).Format("15:04:05"),
			rec.CheckOut.In(h.cfg.Schedule.Location).Format("15:04:05"),
			derefFloat(rec.TotalHours)))
	}
}

func (h *Handler) handleHistory(ctx context.Context, userID int64, lang string) {
	if !h.pass(ctx, userID, lang, h.registeredGuard) {
		return
	}
	const days = 7
	records, err := h.repo.History(ctx, userID, days)
	if err != nil {
		log.Printf("history for user %d: %v", userID, err)
		h.reply(userID, h.messages.T(lang, "error_general"))
		return
	}
	if len(records) == 0 {
		h.reply(userID, h.messages.T(lang, "status_none"))
		return
	}
	var b strings.Builder
	b.WriteString(h.messages.T(lang, "history_header", days))
	for _, rec := range records {
		b.WriteString("\n")
		b.WriteString(formatHistoryLine(rec, h.cfg.Schedule.Location))
	}
	h.reply(userID, b.String())
}

func (h *Handler) handleNotificationsToggle(ctx context.Context, userID int64, lang string) {
	teacher, err := h.repo.GetTeacher(ctx, userID)
	if err != nil || teacher == nil {
		h.reply(userID, h.messages.T(lang, "error_not_registered"))
		return
	}
	enabled := !teacher.NotificationsEnabled
	if err := h.repo.SetNotificationsEnabled(ctx, userID, enabled); err != nil {
		log.Printf("toggling notifications for user %d: %v", userID, err)
		h.reply(userID, h.messages.T(lang, "error_general"))
		return
	}
	key := "notifications_off"
	if enabled {
		key = "notifications_on"
	}
	h.reply(userID, h.messages.T(lang, key))
}

func (h *Handler) handleReport(ctx context.Context, userID int64, lang string) {
	if !h.pass(ctx, userID, lang, h.adminGuard) {
		return
	}
	date := attendance.DateOf(h.cfg.Now())
	rows, err := h.repo.DailyReport(ctx, date)
	if err != nil {
		log.Printf("daily report: %v", err)
		h.reply(userID, h.messages.T(lang, "error_general"))
		return
	}
	if err := h.repo.LogAdminAction(ctx, userID, "viewed_daily_report", nil, date); err != nil {
		log.Printf("logging admin action: %v", err)
	}
	if len(rows) == 0 {
		h.reply(userID, fmt.Sprintf("%s: no records", date))
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s — %d record(s)\n", date, len(rows))
	for _, row := range rows {
		fmt.Fprintf(&b, "\n%s: in %s", displayName(row), row.CheckIn.In(h.cfg.Schedule.Location).Format("15:04"))
		if row.Classification != schedule.OnTime {
			fmt.Fprintf(&b, " (%s, +%dmin)", row.Classification, row.LateMinutes)
		}
		if row.CheckOut != nil {
			fmt.Fprintf(&b, ", out %s, %.2fh", row.CheckOut.In(h.cfg.Schedule.Location).Format("15:04"), derefFloat(row.TotalHours))
		}
	}
	h.reply(userID, b.String())
}

func (h *Handler) handleSchedule(ctx context.Context, userID int64, lang string) {
	if !h.pass(ctx, userID, lang, h.adminGuard) {
		return
	}
	times := h.classifier.NotificationTimes()
	text := fmt.Sprintf(
		"Hours: %s–%s\nGrace: %d min\nWork days: %v\nReminders: morning %s, late %s, checkout %s, forgotten %s",
		h.classifier.StartTime(), h.classifier.EndTime(),
		h.cfg.Schedule.GraceMinutes, h.classifier.WorkDays(),
		times.Morning, times.LateWarning, times.CheckoutReminder, times.ForgottenCheckout)
	h.reply(userID, text)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	userID := cb.From.ID
	data := cb.Data
	if strings.HasPrefix(data, "lang:") {
		code := strings.TrimPrefix(data, "lang:")
		if !locale.Supported(code) {
			return
		}
		if err := h.repo.SetLanguage(ctx, userID, code); err != nil {
			log.Printf("setting language for user %d: %v", userID, err)
			return
		}
		if _, err := h.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			log.Printf("answering callback: %v", err)
		}
		h.reply(userID, h.messages.T(code, "language_set"))
	}
}

func (h *Handler) langOf(ctx context.Context, userID int64) string {
	teacher, err := h.repo.GetTeacher(ctx, userID)
	if err != nil || teacher == nil {
		return h.messages.DefaultLang()
	}
	if !locale.Supported(teacher.Language) {
		return h.messages.DefaultLang()
	}
	return teacher.Language
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("sending to chat %d: %v", chatID, err)
	}
}

func (h *Handler) send(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("sending to chat %d: %v", chatID, err)
	}
}

func (h *Handler) sendMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("sending to chat %d: %v", chatID, err)
	}
}

func formatHistoryLine(rec attendance.Record, loc *time.Location) string {
	line := fmt.Sprintf("%s: %s", rec.Date, rec.CheckIn.In(loc).Format("15:04"))
	if rec.CheckOut != nil {
		line += fmt.Sprintf("–%s (%.2fh)", rec.CheckOut.In(loc).Format("15:04"), derefFloat(rec.TotalHours))
	} else {
		line += " (open)"
	}
	if rec.Classification != schedule.OnTime {
		line += fmt.Sprintf(" %s +%dmin", rec.Classification, rec.LateMinutes)
	}
	return line
}

func displayName(row attendance.ReportRow) string {
	name := row.FirstName
	if row.LastName != nil {
		name += " " + *row.LastName
	}
	return name
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
