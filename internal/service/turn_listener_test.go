package service

import (
	"context"
	"testing"
	"time"

	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/pkg/events"
	pktNats "preset-teaching-be/pkg/nats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSource struct {
	eventType string
	durable   string
	handler   pktNats.EventHandler
}

func (c *captureSource) Subscribe(ctx context.Context, eventType, durable string, handler pktNats.EventHandler) error {
	c.eventType, c.durable, c.handler = eventType, durable, handler
	return nil
}

func TestTurnListenerSubmitsTurns(t *testing.T) {
	f := newTeachingFixture(t, testTeachingConfig(), &stubProvider{})
	source := &captureSource{}
	listener := NewTurnListener(source, f.service, logger.NewNopLogger())

	require.NoError(t, listener.Start(context.Background()))
	assert.Equal(t, events.TypeConversationTurn, source.eventType)
	require.NotNil(t, source.handler)

	turn := events.ConversationTurn{Scope: "room", Source: "aya", Text: "wear blue", At: time.Now()}
	require.NoError(t, source.handler(context.Background(), turn))
	assert.Equal(t, 1, f.service.Status().Buffers)

	t.Run("malformed turn is acked", func(t *testing.T) {
		bad := events.BaseEvent{Type: events.TypeConversationTurn, Data: map[string]interface{}{"text": "x"}}
		assert.NoError(t, source.handler(context.Background(), bad))
	})
}
