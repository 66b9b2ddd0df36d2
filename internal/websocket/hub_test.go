package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"preset-teaching-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub
}

func TestHubSendTo(t *testing.T) {
	hub := startHub(t)
	a := &Client{Hub: hub, Owner: "owner-a", Send: make(chan []byte, 4)}
	b := &Client{Hub: hub, Owner: "owner-b", Send: make(chan []byte, 4)}
	hub.register <- a
	hub.register <- b

	require.Eventually(t, func() bool {
		return hub.Connected("owner-a") == 1 && hub.Connected("owner-b") == 1
	}, time.Second, 5*time.Millisecond)

	hub.SendTo("owner-a", "PRESET_UPDATED", map[string]interface{}{"version": 2})

	select {
	case frame := <-a.Send:
		var decoded struct {
			Type string                 `json:"type"`
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(frame, &decoded))
		assert.Equal(t, "PRESET_UPDATED", decoded.Type)
		assert.Equal(t, float64(2), decoded.Data["version"])
	case <-time.After(time.Second):
		t.Fatal("owner-a got nothing")
	}
	assert.Len(t, b.Send, 0)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := &Client{Hub: hub, Owner: "owner-a", Send: make(chan []byte)}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.Connected("owner-a") == 1 }, time.Second, 5*time.Millisecond)

	hub.SendTo("owner-a", "PRESET_UPDATED", nil)

	require.Eventually(t, func() bool { return hub.Connected("owner-a") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-slow.Send
	assert.False(t, open)
}
