// Package locale renders outcome messages for the supported languages.
// The engine hands over outcome types plus numeric/time parameters; this
// is the only place user-facing text is produced.
package locale

import (
	"fmt"
	"log"
)

// catalogs maps language -> key -> fmt template. Argument order per key is
// fixed across languages.
var catalogs = map[string]map[string]string{
	"en": {
		"start_welcome":     "Welcome, %s! You are registered.\nUse /checkin when you arrive and /checkout when you leave.",
		"help":              "Commands:\n/checkin — check in with your location\n/checkout — check out with your location\n/status — today's attendance\n/history — last 7 days\n/language — change language\n/notifications — toggle reminders\n/cancel — cancel a pending action",
		"checkin_prompt":    "Share your location to check in.\nYou must be within %dm of %s.",
		"checkout_prompt":   "Share your location to check out.\nYou must be within %dm of the site.",
		"already_checked_in":  "You already checked in today at %s.",
		"already_checked_out": "You already checked out today. See you tomorrow!",
		"not_checked_in":      "You have not checked in today. Use /checkin first.",
		"checkin_success":      "Checked in at %s (%s, %.1fm from the site). Have a good day!",
		"checkin_success_late": "Checked in at %s — %d minutes late (%.1fm from the site).",
		"checkout_success":     "Checked out at %s.\nChecked in: %s\nTotal: %.2f hours.",
		"error_distance":       "You are too far away: %.1fm (allowed %dm, %.1fm over).",
		"error_invalid_location": "That location looks invalid. Please share your real device location.",
		"error_general":          "Something went wrong. Please try again.",
		"error_not_registered":   "You are not registered yet. Send /start first.",
		"error_admin_only":       "This command is for administrators only.",
		"error_not_working_day":  "Today is not a working day. Attendance is not tracked.",
		"error_rate_limit":       "Too fast! Please wait a moment and try again.",
		"location_no_action":     "Location received, but no action was requested. Use /checkin or /checkout first.",
		"cancel_done":            "Cancelled. Nothing is pending.",
		"btn_share_location":     "📍 Share location",
		"status_none":        "No attendance record for today.",
		"status_checked_in":  "Checked in at %s. Don't forget to /checkout.",
		"status_checked_out": "Done for today: %s – %s, %.2f hours.",
		"history_header":     "Your last %d days:",
		"language_choose":    "Choose your language:",
		"language_set":       "Language updated.",
		"notifications_on":   "Reminders enabled.",
		"notifications_off":  "Reminders disabled.",
		"notif_morning":   "Good morning! Work starts at %s. Don't forget to /checkin.",
		"notif_late":      "You haven't checked in yet — work started at %s. Check in as soon as you arrive.",
		"notif_checkout":  "Work ends at %s. Don't forget to /checkout before you leave.",
		"notif_forgotten": "Looks like you forgot to check out — work ended at %s. Use /checkout now.",
	},
	"ru": {
		"start_welcome":     "Добро пожаловать, %s! Вы зарегистрированы.\nИспользуйте /checkin по прибытии и /checkout при уходе.",
		"help":              "Команды:\n/checkin — отметить приход\n/checkout — отметить уход\n/status — статус за сегодня\n/history — последние 7 дней\n/language — сменить язык\n/notifications — напоминания вкл/выкл\n/cancel — отменить ожидание",
		"checkin_prompt":    "Отправьте геолокацию для отметки прихода.\nНужно быть в радиусе %dм от %s.",
		"checkout_prompt":   "Отправьте геолокацию для отметки ухода.\nНужно быть в радиусе %dм от места работы.",
		"already_checked_in":  "Вы уже отметились сегодня в %s.",
		"already_checked_out": "Вы уже отметили уход. До завтра!",
		"not_checked_in":      "Вы сегодня не отмечались. Сначала /checkin.",
		"checkin_success":      "Приход отмечен в %s (%s, %.1fм от места). Хорошего дня!",
		"checkin_success_late": "Приход отмечен в %s — опоздание %d мин (%.1fм от места).",
		"checkout_success":     "Уход отмечен в %s.\nПриход: %s\nИтого: %.2f ч.",
		"error_distance":       "Вы слишком далеко: %.1fм (допустимо %dм, превышение %.1fм).",
		"error_invalid_location": "Геолокация выглядит неверной. Отправьте реальное местоположение.",
		"error_general":          "Что-то пошло не так. Попробуйте ещё раз.",
		"error_not_registered":   "Вы ещё не зарегистрированы. Отправьте /start.",
		"error_admin_only":       "Команда доступна только администраторам.",
		"error_not_working_day":  "Сегодня нерабочий день. Посещаемость не ведётся.",
		"error_rate_limit":       "Слишком быстро! Подождите немного.",
		"location_no_action":     "Геолокация получена, но действие не запрошено. Сначала /checkin или /checkout.",
		"cancel_done":            "Отменено.",
		"btn_share_location":     "📍 Отправить геолокацию",
		"status_none":        "Сегодня отметок нет.",
		"status_checked_in":  "Приход в %s. Не забудьте /checkout.",
		"status_checked_out": "На сегодня всё: %s – %s, %.2f ч.",
		"history_header":     "Последние %d дней:",
		"language_choose":    "Выберите язык:",
		"language_set":       "Язык обновлён.",
		"notifications_on":   "Напоминания включены.",
		"notifications_off":  "Напоминания выключены.",
		"notif_morning":   "Доброе утро! Работа начинается в %s. Не забудьте /checkin.",
		"notif_late":      "Вы ещё не отметились — работа началась в %s. Отметьтесь по прибытии.",
		"notif_checkout":  "Рабочий день заканчивается в %s. Не забудьте /checkout.",
		"notif_forgotten": "Похоже, вы забыли отметить уход — работа закончилась в %s. Используйте /checkout.",
	},
	"uz": {
		"start_welcome":     "Xush kelibsiz, %s! Siz roʻyxatdan oʻtdingiz.\nKelganda /checkin, ketganda /checkout yuboring.",
		"help":              "Buyruqlar:\n/checkin — kelganingizni belgilash\n/checkout — ketganingizni belgilash\n/status — bugungi holat\n/history — oxirgi 7 kun\n/language — tilni oʻzgartirish\n/notifications — eslatmalar\n/cancel — bekor qilish",
		"checkin_prompt":    "Kelganingizni belgilash uchun joylashuvingizni yuboring.\n%[2]s dan %[1]dm radius ichida boʻlishingiz kerak.",
		"checkout_prompt":   "Ketganingizni belgilash uchun joylashuvingizni yuboring.\nIsh joyidan %dm radius ichida boʻlishingiz kerak.",
		"already_checked_in":  "Siz bugun %s da belgilangansiz.",
		"already_checked_out": "Siz bugun ketganingizni belgilagansiz. Ertagacha!",
		"not_checked_in":      "Bugun hali belgilanmagansiz. Avval /checkin.",
		"checkin_success":      "%s da belgilandi (%s, ish joyidan %.1fm). Yaxshi kun tilaymiz!",
		"checkin_success_late": "%s da belgilandi — %d daqiqa kechikish (ish joyidan %.1fm).",
		"checkout_success":     "%s da ketish belgilandi.\nKelish: %s\nJami: %.2f soat.",
		"error_distance":       "Siz juda uzoqdasiz: %.1fm (ruxsat %dm, %.1fm ortiq).",
		"error_invalid_location": "Joylashuv notoʻgʻri koʻrinadi. Haqiqiy joylashuvingizni yuboring.",
		"error_general":          "Xatolik yuz berdi. Qayta urinib koʻring.",
		"error_not_registered":   "Siz hali roʻyxatdan oʻtmagansiz. /start yuboring.",
		"error_admin_only":       "Bu buyruq faqat administratorlar uchun.",
		"error_not_working_day":  "Bugun ish kuni emas. Davomat yuritilmaydi.",
		"error_rate_limit":       "Juda tez! Biroz kutib, qayta urinib koʻring.",
		"location_no_action":     "Joylashuv qabul qilindi, lekin amal soʻralmagan. Avval /checkin yoki /checkout.",
		"cancel_done":            "Bekor qilindi.",
		"btn_share_location":     "📍 Joylashuvni yuborish",
		"status_none":        "Bugun uchun yozuv yoʻq.",
		"status_checked_in":  "%s da kelgansiz. /checkout ni unutmang.",
		"status_checked_out": "Bugun uchun tamom: %s – %s, %.2f soat.",
		"history_header":     "Oxirgi %d kun:",
		"language_choose":    "Tilni tanlang:",
		"language_set":       "Til yangilandi.",
		"notifications_on":   "Eslatmalar yoqildi.",
		"notifications_off":  "Eslatmalar oʻchirildi.",
		"notif_morning":   "Xayrli tong! Ish %s da boshlanadi. /checkin ni unutmang.",
		"notif_late":      "Siz hali belgilanmadingiz — ish %s da boshlangan. Yetib kelgach belgilaning.",
		"notif_checkout":  "Ish kuni %s da tugaydi. Ketishdan oldin /checkout.",
		"notif_forgotten": "Ketganingizni belgilashni unutganga oʻxshaysiz — ish %s da tugagan. /checkout yuboring.",
	},
}

// Catalog resolves messages with a language fallback chain.
type Catalog struct {
	defaultLang string
}

// New creates a catalog with the given default language.
func New(defaultLang string) *Catalog {
	if _, ok := catalogs[defaultLang]; !ok {
		log.Printf("locale: unknown default language %q, using en", defaultLang)
		defaultLang = "en"
	}
	return &Catalog{defaultLang: defaultLang}
}

// DefaultLang returns the configured default language code.
func (c *Catalog) DefaultLang() string { return c.defaultLang }

// Supported reports whether a language code has a catalog.
func Supported(lang string) bool {
	_, ok := catalogs[lang]
	return ok
}

// T renders the message for key in lang, falling back to the default
// language and then English. An unknown key yields the generic error
// message so that the user always gets a response.
func (c *Catalog) T(lang, key string, args ...any) string {
	for _, l := range []string{lang, c.defaultLang, "en"} {
		if cat, ok := catalogs[l]; ok {
			if tmpl, ok := cat[key]; ok {
				return fmt.Sprintf(tmpl, args...)
			}
		}
	}
	log.Printf("locale: missing key %q", key)
	return catalogs["en"]["error_general"]
}
