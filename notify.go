package class_notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultNotifyTimeout bounds a single outgoing message.
const DefaultNotifyTimeout = 5 * time.Second

// Messenger delivers a text message to a recipient on some chat platform.
type Messenger interface {
	Send(ctx context.Context, recipient string, text string) error
}

// Dispatcher sends messages through a Messenger with a bounded timeout.
// Delivery failures are logged and reported as false, never returned.
type Dispatcher struct {
	Messenger Messenger
	Timeout   time.Duration
	Log       zerolog.Logger
}

func NewDispatcher(m Messenger, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	return &Dispatcher{
		Messenger: m,
		Timeout:   timeout,
		Log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

// Notify sends text to recipient and reports whether it was delivered.
func (d *Dispatcher) Notify(ctx context.Context, recipient string, text string) bool {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	// some messenger clients ignore ctx, so the send runs on its own
	// goroutine and is abandoned once the timeout passes
	errc := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("panic while sending: %v", r)
			}
		}()
		errc <- d.Messenger.Send(ctx, recipient, text)
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		d.Log.Warn().Err(err).Str("recipient", recipient).Msg("unable to send message")
		return false
	}
	return true
}
