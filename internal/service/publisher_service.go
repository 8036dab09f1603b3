package service

import (
	"context"

	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/logger"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IPublisherService interface {
	Publish(ctx context.Context, event events.Event) error
}

// EventSink is an external bus that mirrors in-process events (NATS in production).
type EventSink interface {
	Publish(ctx context.Context, event events.Event) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
	sink      EventSink
	logger    logger.ILogger
}

// NewPublisherService publishes on the in-process topic and, when sink is non-nil, mirrors to it.
func NewPublisherService(topicName string, publisher message.Publisher, sink EventSink, log logger.ILogger) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
		sink:      sink,
		logger:    log,
	}
}

func (ps *publisherService) Publish(ctx context.Context, event events.Event) error {
	payload, err := events.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	msg.SetContext(ctx)

	if err := ps.publisher.Publish(ps.topicName, msg); err != nil {
		return err
	}

	// The external sink is best effort.
	if ps.sink != nil {
		if err := ps.sink.Publish(ctx, event); err != nil {
			ps.logger.Warn("EVENTS", "Failed to mirror event to external bus", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}

	return nil
}
