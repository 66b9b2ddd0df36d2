package service

import (
	"context"
	"encoding/json"

	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/repository/memory"
	"preset-teaching-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// PresetNotifier pushes preset updates to connected clients.
type PresetNotifier interface {
	SendTo(ownerKey, eventType string, data interface{})
}

// EventPublisher forwards events to the external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	cache     *memory.PresetCache
	notifier  PresetNotifier
	events    EventPublisher
	logger    logger.ILogger
}

// NewConsumerService fans preset updates out to the cache, websocket clients
// and NATS. notifier and events may be nil.
func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	cache *memory.PresetCache,
	notifier PresetNotifier,
	eventPublisher EventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		cache:     cache,
		notifier:  notifier,
		events:    eventPublisher,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PresetUpdatedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Invalid preset update payload", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	if cs.cache != nil {
		cs.cache.Delete(payload.PresetId)
	}

	if cs.notifier != nil && payload.OwnerKey != "" {
		cs.notifier.SendTo(payload.OwnerKey, events.TypePresetUpdated, payload)
	}

	if cs.events != nil {
		evt := events.PresetUpdated{
			PresetId:  payload.PresetId.String(),
			Version:   payload.Version,
			Trigger:   payload.Trigger,
			Applied:   payload.Applied,
			Failed:    payload.Failed,
			Name:      payload.Name,
			UpdatedAt: payload.UpdatedAt,
		}
		if payload.RoundId != uuid.Nil {
			evt.RoundId = payload.RoundId.String()
		}
		// the local fan-out already happened, so a bus failure is only logged
		if err := cs.events.Publish(ctx, evt); err != nil {
			cs.logger.Warn("CONSUMER", "Failed to forward preset update", map[string]interface{}{
				"preset_id": payload.PresetId.String(),
				"error":     err.Error(),
			})
		}
	}

	cs.logger.Info("CONSUMER", "Preset update dispatched", map[string]interface{}{
		"preset_id": payload.PresetId.String(),
		"version":   payload.Version,
		"trigger":   payload.Trigger,
	})
	msg.Ack()
}
