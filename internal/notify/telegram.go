package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Telegram pushes trade lifecycle events to a chat. Optional; the engine
// treats a nil notifier as "off".
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates the bot token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("✉️ Telegram notifier ready")
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// NotifyTrade reports an entry, exit or failure.
func (t *Telegram) NotifyTrade(action, sess, bias string, price float64, size int, pnl decimal.Decimal) {
	text := fmt.Sprintf("%s | %s %s | %.2f x%d", action, sess, bias, price, size)
	if !pnl.IsZero() {
		text += fmt.Sprintf(" | P&L $%s", pnl.StringFixed(2))
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}
