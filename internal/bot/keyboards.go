package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// locationKeyboard asks the client to share the device location.
func locationKeyboard(label string) tgbotapi.ReplyKeyboardMarkup {
	btn := tgbotapi.NewKeyboardButtonLocation(label)
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(btn))
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

// menuKeyboard is the persistent command menu. Command strings are
// language-independent, so one keyboard serves every locale.
func menuKeyboard(admin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/checkin"),
			tgbotapi.NewKeyboardButton("/checkout"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/status"),
			tgbotapi.NewKeyboardButton("/history"),
		),
	}
	if admin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/report"),
			tgbotapi.NewKeyboardButton("/schedule"),
		))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

// languageKeyboard offers the supported languages inline.
func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("English", "lang:en"),
			tgbotapi.NewInlineKeyboardButtonData("Русский", "lang:ru"),
			tgbotapi.NewInlineKeyboardButtonData("Oʻzbekcha", "lang:uz"),
		),
	)
}

func removeKeyboard() tgbotapi.ReplyKeyboardRemove {
	return tgbotapi.NewRemoveKeyboard(false)
}
