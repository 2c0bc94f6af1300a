package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/vechnost/vechnost/internal/observability"
	"github.com/vechnost/vechnost/pkg/game"
	"github.com/vechnost/vechnost/pkg/i18n"
	"github.com/vechnost/vechnost/pkg/ratelimit"
	"github.com/vechnost/vechnost/pkg/render"
	"github.com/vechnost/vechnost/pkg/session"
)

// PremiumChecker is the slice of the subscription service the handler
// needs for NSFW gating.
type PremiumChecker interface {
	HasPremium(ctx context.Context, userID int64) bool
}

// GameHandler routes updates through the game flow: language, theme,
// level, content type, then a draw loop. All state lives in the session
// record; the handler itself is stateless.
type GameHandler struct {
	sender   Sender
	sessions *session.Repository
	premium  PremiumChecker
	catalog  *game.Catalog
	tr       *i18n.Translator
	limiter  *ratelimit.Limiter
	render   func(theme, text string) ([]byte, error)
	logger   zerolog.Logger
}

// NewGameHandler creates the game flow handler.
func NewGameHandler(
	sender Sender,
	sessions *session.Repository,
	premium PremiumChecker,
	catalog *game.Catalog,
	tr *i18n.Translator,
	limiter *ratelimit.Limiter,
	logger zerolog.Logger,
) *GameHandler {
	return &GameHandler{
		sender:   sender,
		sessions: sessions,
		premium:  premium,
		catalog:  catalog,
		tr:       tr,
		limiter:  limiter,
		render:   render.CardImage,
		logger:   logger.With().Str("component", "game_handler").Logger(),
	}
}

// HandleUpdate implements UpdateHandler.
func (h *GameHandler) HandleUpdate(update tgbotapi.Update) error {
	switch {
	case update.Message != nil:
		observability.RecordTelegramUpdate("message")
		return h.handleMessage(update.Message)
	case update.CallbackQuery != nil:
		observability.RecordTelegramUpdate("callback")
		return h.handleCallback(update.CallbackQuery)
	}
	return nil
}

func (h *GameHandler) handleMessage(msg *tgbotapi.Message) error {
	ctx := context.Background()
	chatID := msg.Chat.ID

	if !h.limiter.Allow(msg.From.ID, "message") {
		// Dropped silently; replying would feed the flood.
		return nil
	}

	rec := h.sessions.Load(ctx, chatID)

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, msg.Command(), rec)
	}

	// Free text has no role in the flow; nudge back to the keyboard.
	return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "hint.use_buttons"))
}

func (h *GameHandler) handleCommand(ctx context.Context, chatID int64, command string, rec *session.Record) error {
	switch command {
	case "start":
		if err := h.sender.SendMessage(chatID, h.tr.T(rec.Language, "welcome")); err != nil {
			return err
		}
		return h.sender.SendKeyboard(chatID, h.tr.T(rec.Language, "choose_language"), languageKeyboard())

	case "help":
		return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "help"))

	case "language":
		return h.sender.SendKeyboard(chatID, h.tr.T(rec.Language, "choose_language"), languageKeyboard())

	case "reset":
		h.sessions.Clear(ctx, chatID)
		if err := h.sender.SendMessage(chatID, h.tr.T(rec.Language, "reset_done")); err != nil {
			return err
		}
		return h.sender.SendKeyboard(chatID, h.tr.T(rec.Language, "choose_language"), languageKeyboard())

	default:
		return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "help"))
	}
}

func (h *GameHandler) handleCallback(cb *tgbotapi.CallbackQuery) error {
	ctx := context.Background()

	// Telegram omits Message on callbacks for messages older than 48
	// hours. There is no chat to route to; just stop the spinner.
	if cb.Message == nil || cb.Message.Chat == nil {
		return h.sender.AnswerCallback(cb.ID, "")
	}
	chatID := cb.Message.Chat.ID

	if !h.limiter.Allow(cb.From.ID, "callback") {
		return h.sender.AnswerCallback(cb.ID, "")
	}

	rec := h.sessions.Load(ctx, chatID)
	prefix, payload := splitCallback(cb.Data)

	var err error
	switch prefix {
	case cbLanguage:
		err = h.selectLanguage(ctx, chatID, payload, rec)
	case cbTheme:
		err = h.selectTheme(ctx, chatID, cb.From.ID, payload, rec)
	case cbNSFWOK:
		rec.NSFWConfirmed = true
		h.sessions.Save(ctx, chatID, rec)
		err = h.selectTheme(ctx, chatID, cb.From.ID, payload, rec)
	case cbLevel:
		err = h.selectLevel(ctx, chatID, payload, rec)
	case cbContent:
		err = h.selectContent(ctx, chatID, payload, rec)
	case cbDraw:
		err = h.drawCard(ctx, chatID, rec)
	default:
		h.logger.Warn().Str("data", cb.Data).Msg("Unknown callback data")
	}
	if err != nil {
		return err
	}

	return h.sender.AnswerCallback(cb.ID, "")
}

func (h *GameHandler) selectLanguage(ctx context.Context, chatID int64, lang string, rec *session.Record) error {
	if !i18n.Supported(lang) {
		return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "error.unknown_language"))
	}

	rec.Language = lang
	h.sessions.Save(ctx, chatID, rec)

	return h.sender.SendKeyboard(chatID, h.tr.T(lang, "choose_theme"), themeKeyboard(h.catalog, h.tr, lang))
}

func (h *GameHandler) selectTheme(ctx context.Context, chatID, userID int64, themeName string, rec *session.Record) error {
	theme, ok := h.catalog.Theme(themeName)
	if !ok {
		return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "error.unknown_theme"))
	}

	if theme.NSFW {
		if !h.premium.HasPremium(ctx, userID) {
			return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "premium_required"))
		}
		if !rec.NSFWConfirmed {
			return h.sender.SendKeyboard(chatID, h.tr.T(rec.Language, "confirm_18"),
				nsfwConfirmKeyboard(h.tr, rec.Language, themeName))
		}
	}

	// A new theme starts a fresh deck.
	rec.Theme = themeName
	rec.Level = 0
	rec.ContentType = ""
	rec.DrawnCards = nil
	h.sessions.Save(ctx, chatID, rec)

	if theme.Leveled() {
		return h.sender.SendKeyboard(chatID, h.tr.T(rec.Language, "choose_level"), levelKeyboard(theme))
	}
	return h.sender.SendKeyboard(chatID, h.tr.T(rec.Language, "ready_to_draw"), drawKeyboard(h.tr, rec.Language))
}

func (h *GameHandler) selectLevel(ctx context.Context, chatID int64, payload string, rec *session.Record) error {
	level, err := strconv.Atoi(payload)
	if err != nil || rec.Theme == "" {
		return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "error.start_over"))
	}

	rec.Level = level
	h.sessions.Save(ctx, chatID, rec)

	return h.sender.SendKeyboard(chatID, h.tr.T(rec.Language, "choose_content"), contentKeyboard(h.tr, rec.Language))
}

func (h *GameHandler) selectContent(ctx context.Context, chatID int64, contentType string, rec *session.Record) error {
	if rec.Theme == "" {
		return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "error.start_over"))
	}

	rec.ContentType = contentType
	h.sessions.Save(ctx, chatID, rec)

	return h.sender.SendKeyboard(chatID, h.tr.T(rec.Language, "ready_to_draw"), drawKeyboard(h.tr, rec.Language))
}

func (h *GameHandler) drawCard(ctx context.Context, chatID int64, rec *session.Record) error {
	if rec.Theme == "" {
		return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "error.start_over"))
	}

	card, ok := h.catalog.Draw(rec.Theme, rec.Level, rec.ContentType, rec.HasDrawn)
	if !ok {
		return h.sender.SendMessage(chatID, h.tr.T(rec.Language, "deck_exhausted"))
	}

	rec.MarkDrawn(card.ID)
	h.sessions.Save(ctx, chatID, rec)

	text := card.Localized(rec.Language)
	caption := fmt.Sprintf("%s\n\n%s", text, h.tr.T(rec.Language, "draw_again_hint"))

	// Cards go out as composed images; plain text is the fallback when
	// rendering fails.
	img, err := h.render(rec.Theme, text)
	if err != nil {
		h.logger.Warn().Err(err).Str("theme", rec.Theme).Msg("Card image rendering failed, sending text")
		return h.sender.SendKeyboard(chatID, caption, drawKeyboard(h.tr, rec.Language))
	}
	return h.sender.SendPhoto(chatID, img, caption, drawKeyboard(h.tr, rec.Language))
}
