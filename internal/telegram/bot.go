// Package telegram drives the bot's user-facing flow: commands, inline
// keyboards and card dealing, on top of long polling.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/vechnost/vechnost/internal/observability"
)

// Sender is the outbound slice of the bot the handler needs. Tests
// substitute a recording fake.
type Sender interface {
	SendMessage(chatID int64, text string) error
	SendKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error
	SendPhoto(chatID int64, photo []byte, caption string, keyboard tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string) error
}

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(update tgbotapi.Update) error
}

// Bot wraps the Telegram API with the update loop.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler UpdateHandler
	logger  zerolog.Logger

	running bool
	updates tgbotapi.UpdatesChannel
}

// New authenticates against the Telegram API.
func New(botToken string, logger zerolog.Logger) (*Bot, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := &Bot{
		api:    api,
		logger: logger.With().Str("component", "telegram").Logger(),
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// SetHandler sets the update handler. Must be called before Start.
func (b *Bot) SetHandler(handler UpdateHandler) {
	b.handler = handler
}

// Start begins long polling and processing updates.
func (b *Bot) Start() error {
	if b.running {
		return fmt.Errorf("bot is already running")
	}
	if b.handler == nil {
		return fmt.Errorf("update handler is required")
	}

	b.logger.Info().Msg("Starting Telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	b.updates = b.api.GetUpdatesChan(u)
	b.running = true

	go b.processUpdates()

	b.logger.Info().Msg("Telegram bot started")

	return nil
}

// Stop stops the update loop.
func (b *Bot) Stop() error {
	if !b.running {
		return fmt.Errorf("bot is not running")
	}

	b.logger.Info().Msg("Stopping Telegram bot")

	b.running = false
	b.api.StopReceivingUpdates()

	b.logger.Info().Msg("Telegram bot stopped")

	return nil
}

func (b *Bot) processUpdates() {
	for update := range b.updates {
		if !b.running {
			break
		}

		if err := b.handler.HandleUpdate(update); err != nil {
			b.logger.Error().
				Err(err).
				Int("update_id", update.UpdateID).
				Msg("Failed to handle update")
			observability.RecordTelegramError()
		}
	}
}

// SendMessage sends a plain text message.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	if _, err := b.api.Send(msg); err != nil {
		observability.RecordTelegramError()
		return fmt.Errorf("failed to send message: %w", err)
	}

	observability.RecordTelegramMessageSent()
	b.logger.Debug().Int64("chat_id", chatID).Msg("Message sent")

	return nil
}

// SendKeyboard sends a message with an inline keyboard.
func (b *Bot) SendKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		observability.RecordTelegramError()
		return fmt.Errorf("failed to send keyboard: %w", err)
	}

	observability.RecordTelegramMessageSent()

	return nil
}

// SendPhoto sends an in-memory image with a caption and an inline
// keyboard.
func (b *Bot) SendPhoto(chatID int64, photo []byte, caption string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "card.png", Bytes: photo})
	msg.Caption = caption
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		observability.RecordTelegramError()
		return fmt.Errorf("failed to send photo: %w", err)
	}

	observability.RecordTelegramMessageSent()

	return nil
}

// AnswerCallback acknowledges a callback query, optionally with a toast.
func (b *Bot) AnswerCallback(callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		observability.RecordTelegramError()
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// IsRunning returns whether the update loop is active.
func (b *Bot) IsRunning() bool {
	return b.running
}
