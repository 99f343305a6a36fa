package server

import (
	"context"
	"encoding/json"
	"errors"

	"plantspack/internal/middleware"
	"plantspack/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler upgrades GET /api/ws into the realtime notification stream.
// AuthRequired has already resolved the user from a ticket, cookie or bearer.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)
		if userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			msg, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			if !errors.Is(err, notifications.ErrUserLimit) {
				middleware.Logger.Warn("websocket register failed", "user_id", userID, "error", err)
			}
			return
		}
		defer s.hub.UnregisterClient(client)

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var frame struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(message, &frame) != nil {
				return
			}
			if frame.Type == "ping" {
				c.TrySend([]byte(`{"type":"pong"}`))
			}
		}

		if s.notificationService != nil {
			if n, err := s.notificationService.UnreadCount(context.Background(), userID); err == nil {
				hello, _ := json.Marshal(fiber.Map{"type": "unread_count", "payload": fiber.Map{"count": n}})
				client.TrySend(hello)
			}
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
