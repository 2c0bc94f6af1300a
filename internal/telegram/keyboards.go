package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vechnost/vechnost/pkg/game"
	"github.com/vechnost/vechnost/pkg/i18n"
)

// Callback data prefixes. The payload follows the colon.
const (
	cbLanguage = "lang"
	cbTheme    = "theme"
	cbLevel    = "level"
	cbContent  = "content"
	cbDraw     = "draw"
	cbNSFWOK   = "nsfw_ok"
)

func callbackData(prefix, payload string) string {
	return prefix + ":" + payload
}

func splitCallback(data string) (prefix, payload string) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

var languageLabels = map[string]string{
	"en": "English",
	"ru": "Русский",
	"cs": "Čeština",
}

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, lang := range i18n.SupportedLanguages {
		label := languageLabels[lang]
		if label == "" {
			label = lang
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbLanguage, lang)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func themeKeyboard(catalog *game.Catalog, tr *i18n.Translator, lang string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, name := range catalog.Themes() {
		label := tr.T(lang, "theme."+name)
		if label == "theme."+name {
			label = name
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbTheme, name)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func levelKeyboard(theme *game.Theme) tgbotapi.InlineKeyboardMarkup {
	var buttons []tgbotapi.InlineKeyboardButton
	for _, lvl := range theme.Levels {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d", lvl.Level),
			callbackData(cbLevel, fmt.Sprintf("%d", lvl.Level)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
}

func contentKeyboard(tr *i18n.Translator, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tr.T(lang, "content.questions"), callbackData(cbContent, game.ContentQuestions)),
			tgbotapi.NewInlineKeyboardButtonData(tr.T(lang, "content.tasks"), callbackData(cbContent, game.ContentTasks)),
		),
	)
}

func drawKeyboard(tr *i18n.Translator, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tr.T(lang, "button.draw"), callbackData(cbDraw, "")),
		),
	)
}

func nsfwConfirmKeyboard(tr *i18n.Translator, lang, theme string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tr.T(lang, "button.confirm_18"), callbackData(cbNSFWOK, theme)),
		),
	)
}
