package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishUser(context.Background(), 1, "test payload"))
	assert.NoError(t, n.PublishBroadcast(context.Background(), "test payload"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
	}
}

func TestHubWiring_DeliversPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	notifier := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, notifier))

	client, err := hub.Register(5, nil)
	require.NoError(t, err)

	pub := NewPublisher(hub, notifier)
	pub.PublishUser(ctx, 5, EventNotificationCreated, map[string]any{"id": 11})

	var msg []byte
	require.Eventually(t, func() bool {
		select {
		case msg = <-client.Send:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	var evt struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, EventNotificationCreated, evt.Type)
	assert.EqualValues(t, 11, evt.Payload["id"])
}

func TestPublisher_WithoutRedisDeliversLocally(t *testing.T) {
	hub := NewHub()
	client, _ := hub.Register(1, nil)
	pub := NewPublisher(hub, NewNotifier(nil))

	pub.PublishBroadcast(context.Background(), EventRoadmapUpdated, map[string]any{"id": 1})
	assert.Len(t, client.Send, 1)

	var nilPub *Publisher
	nilPub.PublishUser(context.Background(), 1, EventPostCreated, nil)
}
