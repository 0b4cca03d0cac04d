package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
	"github.com/dynastyq/funding-signal-pipeline/internal/errs"
)

// TelegramSink delivers signals to a single chat, outbound only. It never
// reads updates and never routes commands.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSink(botToken string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, errs.NewSinkError("telegram", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

// Deliver implements domain.NotifySink.
func (t *TelegramSink) Deliver(_ context.Context, signal domain.Signal) error {
	text := fmt.Sprintf(
		"🎯 *DYNASTY FUNDING RATE ALERTS*\n%s %s — %s (%s)\nFunding: %.4f%% (%s)\nRSI: %.2f — %s\nScore: %.2f\nPrice: %.6f",
		biasCircle(signal.Bias), signal.Symbol, signal.Type, signal.Bias,
		signal.FundingRate, signal.FundingBiasLabel,
		signal.RSI, signal.MomentumLabel,
		signal.Score, signal.Price,
	)

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := t.bot.Send(msg); err != nil {
		return errs.NewSinkError("telegram", err)
	}
	return nil
}
