// Package notify fans health events out to the configured notification
// channels. Channels are independent: a failure on one never blocks or
// suppresses the other, and never disturbs the tracker state that produced
// the event.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	agenterrors "github.com/mabott/snmp-agent-app/internal/errors"
	"github.com/mabott/snmp-agent-app/internal/monitor"
)

// TrapSender delivers one event as an SNMP trap.
type TrapSender interface {
	SendTrap(ctx context.Context, event monitor.Event) error
}

// MailSender delivers one event as an email message.
type MailSender interface {
	Send(ctx context.Context, subject, body string) error
}

// Hook invoked when a channel delivery fails, wired to the metrics registry
// at startup.
var onChannelFailure func(channel string)

// SetFailureHook registers the channel-failure callback.
func SetFailureHook(fn func(channel string)) {
	onChannelFailure = fn
}

// Dispatcher routes events to the enabled channels. A nil sender means the
// channel is disabled.
type Dispatcher struct {
	traps TrapSender
	mail  MailSender
}

// NewDispatcher creates a dispatcher over the given channels. Either sender
// may be nil.
func NewDispatcher(traps TrapSender, mail MailSender) *Dispatcher {
	return &Dispatcher{traps: traps, mail: mail}
}

// Dispatch sends event on every enabled channel. The warning log entry comes
// first so the event is on record even if both channels fail. Errors are
// logged and swallowed; delivery failures must not stop the poll loop.
func (d *Dispatcher) Dispatch(ctx context.Context, event monitor.Event) {
	log.Warn().
		Str("eventID", event.ID).
		Str("kind", string(event.Kind)).
		Str("entity", event.Key.String()).
		Str("trap", event.TrapName).
		Msg(event.Body)

	if d.traps != nil {
		if err := d.traps.SendTrap(ctx, event); err != nil {
			wrapped := agenterrors.WrapNotification("sendTrap", event.TrapName, err)
			log.Error().Err(wrapped).Str("eventID", event.ID).Msg("Trap delivery failed")
			if onChannelFailure != nil {
				onChannelFailure("trap")
			}
		}
	}

	if d.mail != nil {
		if err := d.mail.Send(ctx, event.Subject, event.Body); err != nil {
			wrapped := agenterrors.WrapNotification("sendMail", event.Subject, err)
			log.Error().Err(wrapped).Str("eventID", event.ID).Msg("Email delivery failed")
			if onChannelFailure != nil {
				onChannelFailure("email")
			}
		}
	}
}
