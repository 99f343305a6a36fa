package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"plantspack/internal/observability"
)

// Event names delivered to WebSocket clients.
const (
	EventNotificationCreated = "notification_created"
	EventPostCreated         = "post_created"
	EventPostDeleted         = "post_deleted"
	EventPostReactionUpdated = "post_reaction_updated"
	EventCommentCreated      = "comment_created"
	EventFollowCreated       = "follow_created"
	EventRoadmapUpdated      = "roadmap_updated"
	EventSubscriptionChanged = "subscription_changed"
)

// Event is the envelope every realtime message uses.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publisher fans events out to WebSocket clients. With Redis it publishes
// through the Notifier so every instance's hub relays the event; without
// Redis it delivers to the local hub directly.
type Publisher struct {
	hub      *Hub
	notifier *Notifier
}

// NewPublisher returns a Publisher. Either argument may be nil.
func NewPublisher(hub *Hub, notifier *Notifier) *Publisher {
	return &Publisher{hub: hub, notifier: notifier}
}

func encodeEvent(eventType string, payload any) (string, bool) {
	b, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		observability.GlobalLogger.Error("failed to marshal realtime event",
			slog.String("type", eventType), slog.String("error", err.Error()))
		return "", false
	}
	return string(b), true
}

// PublishUser delivers an event to every connection of userID.
func (p *Publisher) PublishUser(ctx context.Context, userID uint, eventType string, payload any) {
	if p == nil {
		return
	}
	message, ok := encodeEvent(eventType, payload)
	if !ok {
		return
	}
	if p.notifier.Enabled() {
		if err := p.notifier.PublishUser(ctx, userID, message); err != nil {
			observability.LogAsyncOperationError(ctx, "publish_user_event", err, map[string]interface{}{
				"type": eventType, "user_id": userID,
			})
		}
		return
	}
	if p.hub != nil {
		p.hub.Broadcast(userID, message)
	}
}

// PublishBroadcast delivers an event to every connected client.
func (p *Publisher) PublishBroadcast(ctx context.Context, eventType string, payload any) {
	if p == nil {
		return
	}
	message, ok := encodeEvent(eventType, payload)
	if !ok {
		return
	}
	if p.notifier.Enabled() {
		if err := p.notifier.PublishBroadcast(ctx, message); err != nil {
			observability.LogAsyncOperationError(ctx, "publish_broadcast_event", err, map[string]interface{}{
				"type": eventType,
			})
		}
		return
	}
	if p.hub != nil {
		p.hub.BroadcastAll(message)
	}
}
