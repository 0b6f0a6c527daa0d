package class_notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

var ErrUserUnavailable = errors.New("class_notify: unable to create DM with user")

// Discord sends direct messages to Discord users. Recipients listed in
// channels are posted to as channels instead (the admin channel).
type Discord struct {
	session  *discordgo.Session
	channels map[string]bool
	log      zerolog.Logger
}

func (d *Discord) Connect(token string, timeout time.Duration, channels []string, log zerolog.Logger) error {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("connecting to discord: %w", err)
	}
	s.Client = &http.Client{Timeout: timeout}
	d.session = s
	d.log = log.With().Str("component", "discord").Logger()
	d.channels = make(map[string]bool, len(channels))
	for _, c := range channels {
		if c != "" {
			d.channels[c] = true
		}
	}

	s.AddHandler(func(s *discordgo.Session, ready *discordgo.Ready) {
		d.log.Info().Str("bot", ready.User.Username).Msg("discord bot is now running")
	})
	if err := s.Open(); err != nil {
		return fmt.Errorf("unable to open discord session: %w", err)
	}
	return nil
}

func (d *Discord) Close() error {
	if d.session == nil {
		return nil
	}
	return d.session.Close()
}

func (d *Discord) Send(ctx context.Context, recipient string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	channelID := recipient
	if !d.channels[recipient] {
		channel, err := d.session.UserChannelCreate(recipient)
		if err != nil {
			return fmt.Errorf("%w %s: %s", ErrUserUnavailable, recipient, err)
		}
		channelID = channel.ID
	}
	if _, err := d.session.ChannelMessageSend(channelID, text); err != nil {
		return fmt.Errorf("unable to send message to %s: %w", recipient, err)
	}
	return nil
}
