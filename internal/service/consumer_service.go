package service

import (
	"context"
	"sync"
	"time"

	"github.com/IvanKem/clever-document-assistant-ru/internal/dto"
	"github.com/IvanKem/clever-document-assistant-ru/internal/pkg/logger"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// IConsumerService aggregates session events into usage counters.
type IConsumerService interface {
	Consume(ctx context.Context) error
	Stats() dto.UsageStatsResponse
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	logger     logger.ILogger

	mu    sync.RWMutex
	stats dto.UsageStatsResponse
}

func NewConsumerService(subscriber message.Subscriber, topicName string, log logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) Stats() dto.UsageStatsResponse {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.stats
}

func (cs *consumerService) processMessage(msg *message.Message) {
	env, err := events.Unmarshal(msg.Payload)
	if err != nil {
		cs.logger.Error("EVENTS", "Failed to unmarshal event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.mu.Lock()
	switch env.Type {
	case events.AssetIngested:
		cs.stats.AssetsIngested++
		cs.stats.BytesIngested += int64Field(env.Data, "bytes")
	case events.AssetRejected:
		cs.stats.AssetsRejected++
	case events.QueryCompleted:
		cs.stats.Queries++
	case events.QueryFailed:
		cs.stats.Queries++
		cs.stats.QueryFailures++
	case events.SessionReset:
		cs.stats.Resets++
	}
	at := env.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	cs.stats.LastEventAt = &at
	cs.mu.Unlock()

	cs.logger.Debug("EVENTS", "Event consumed", map[string]interface{}{
		"type":    env.Type,
		"user_id": env.Data["user_id"],
	})
	msg.Ack()
}

// JSON numbers decode as float64.
func int64Field(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
