package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/repository/memory"
	"preset-teaching-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentNotice struct {
	owner     string
	eventType string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *recordingNotifier) SendTo(ownerKey, eventType string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{owner: ownerKey, eventType: eventType})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEvents) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) list() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func TestConsumerFansOutPresetUpdates(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	cache := memory.NewPresetCache(time.Minute)
	presetId := uuid.New()
	cache.Save(&entity.Preset{Id: presetId, OwnerKey: "owner-1"})

	notifier := &recordingNotifier{}
	bus := &recordingEvents{}
	consumer := NewConsumerService(pubSub, TopicPresetUpdated, cache, notifier, bus, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Consume(ctx))

	payload, err := json.Marshal(dto.PresetUpdatedMessage{
		PresetId: presetId,
		OwnerKey: "owner-1",
		Version:  4,
		RoundId:  uuid.New(),
		Trigger:  TriggerBatch,
		Applied:  1,
	})
	require.NoError(t, err)
	require.NoError(t, NewPublisherService(TopicPresetUpdated, pubSub).Publish(ctx, payload))

	require.Eventually(t, func() bool {
		return len(bus.list()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, cached := cache.Get(presetId)
	assert.False(t, cached)
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, sentNotice{owner: "owner-1", eventType: events.TypePresetUpdated}, notifier.sent[0])

	evt := bus.list()[0]
	assert.Equal(t, events.TypePresetUpdated, evt.EventType())
	assert.Equal(t, presetId.String(), evt.Payload()["preset_id"])
	assert.Equal(t, 4, evt.Payload()["version"])
}
