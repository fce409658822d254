package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogConsumer logs every notification, mapping severity to level.
type LogConsumer struct {
	logger zerolog.Logger
}

func NewLogConsumer(l zerolog.Logger) *LogConsumer { return &LogConsumer{logger: l} }

func (c *LogConsumer) HandleNotification(_ context.Context, n Notification) error {
	var ev *zerolog.Event
	switch n.Severity {
	case SeverityError:
		ev = c.logger.Error()
	case SeverityWarning:
		ev = c.logger.Warn()
	default:
		ev = c.logger.Info()
	}
	ev.Str("session", n.Session).
		Str("entity", n.Entity).
		Str("kind", string(n.Kind)).
		Msg(n.Message)
	return nil
}
