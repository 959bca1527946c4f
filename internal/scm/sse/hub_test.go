package sse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishToAllClients(t *testing.T) {
	hub := NewHub()
	a := &Client{ID: "a", UserID: "u1", Events: make(chan Event, 4)}
	b := &Client{ID: "b", UserID: "u2", Events: make(chan Event, 4)}
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.Count())

	hub.Publish("po_update", map[string]interface{}{"entity_id": "po1", "to_status": "SENT"})

	for _, c := range []*Client{a, b} {
		select {
		case ev := <-c.Events:
			assert.Equal(t, "po_update", ev.EventType)
			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(ev.Data), &payload))
			assert.Equal(t, "SENT", payload["to_status"])
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
}

func TestHub_TopicFilter(t *testing.T) {
	hub := NewHub()
	c := &Client{ID: "c", Topics: map[string]bool{"dispatch_update": true}, Events: make(chan Event, 4)}
	hub.Register(c)

	hub.Publish("po_update", map[string]interface{}{"entity_id": "po1"})
	hub.Publish("dispatch_update", map[string]interface{}{"entity_id": "md1"})

	require.Len(t, c.Events, 1)
	ev := <-c.Events
	assert.Equal(t, "dispatch_update", ev.EventType)
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub()
	c := &Client{ID: "slow", Events: make(chan Event, 1)}
	hub.Register(c)

	hub.Publish("mr_update", map[string]interface{}{"n": 1})
	hub.Publish("mr_update", map[string]interface{}{"n": 2})

	assert.Len(t, c.Events, 1)
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	c := &Client{ID: "x", Events: make(chan Event, 1)}
	hub.Register(c)
	hub.Unregister("x")
	hub.Unregister("x")

	_, ok := <-c.Events
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Count())
}
