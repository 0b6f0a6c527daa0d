package class_notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/rs/zerolog"
)

// Telegram sends messages through the Telegram Bot API. Recipients are
// numeric chat ids; "@name" recipients address public channels.
type Telegram struct {
	api *tgbotapi.BotAPI
}

// NewTelegram authenticates with token. Every API call is bounded by
// timeout on the underlying http client.
func NewTelegram(token string, timeout time.Duration, debug bool, log zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = debug
	log.Info().Str("bot", api.Self.UserName).Bool("debug", debug).Msg("telegram bot initialised")
	return &Telegram{api: api}, nil
}

func (t *Telegram) Send(ctx context.Context, recipient string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(recipient, "@") {
		msg = tgbotapi.NewMessageToChannel(recipient, text)
	} else {
		chatID, err := strconv.ParseInt(recipient, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message to %s: %w", recipient, err)
	}
	return nil
}
