package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// NewEventSender builds the senders enabled in the configuration. With none
// configured the returned sender drops every event.
func NewEventSender(logger *slog.Logger, eventsConfig *config.EventsConfig) (abstractions.EventSender, error) {
	var senders []abstractions.EventSender
	if eventsConfig != nil && eventsConfig.Webhook != nil && eventsConfig.Webhook.URL != "" {
		sender, err := NewWebhookSender(*eventsConfig.Webhook)
		if err != nil {
			return nil, err
		}
		senders = append(senders, sender)
	}
	if eventsConfig != nil && eventsConfig.Redis != nil && eventsConfig.Redis.URL != "" {
		sender, err := NewRedisSender(*eventsConfig.Redis)
		if err != nil {
			return nil, errors.Join(err, closeAll(senders))
		}
		senders = append(senders, sender)
	}
	for _, sender := range senders {
		logger.Info("Event sender enabled", "sender", sender.Name())
	}
	switch len(senders) {
	case 0:
		return NoopSender{}, nil
	case 1:
		return senders[0], nil
	default:
		return &MultiSender{senders: senders}, nil
	}
}

type NoopSender struct{}

func (NoopSender) Name() string { return "none" }

func (NoopSender) Send(context.Context, *api.RunEvent) error { return nil }

func (NoopSender) Close() error { return nil }

// MultiSender delivers each event to every sender. A failing sender does not
// stop delivery to the others.
type MultiSender struct {
	senders []abstractions.EventSender
}

func NewMultiSender(senders ...abstractions.EventSender) *MultiSender {
	return &MultiSender{senders: senders}
}

func (m *MultiSender) Name() string {
	return "multi"
}

func (m *MultiSender) Send(ctx context.Context, event *api.RunEvent) error {
	var err error
	for _, sender := range m.senders {
		if sendErr := sender.Send(ctx, event); sendErr != nil {
			err = errors.Join(err, sendErr)
		}
	}
	return err
}

func (m *MultiSender) Close() error {
	return closeAll(m.senders)
}

func closeAll(senders []abstractions.EventSender) error {
	var err error
	for _, sender := range senders {
		err = errors.Join(err, sender.Close())
	}
	return err
}
