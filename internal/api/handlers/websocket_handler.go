package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/session"
	"github.com/finsight/backend/pkg/logger"
)

type WebSocketHandler struct {
	sessions *session.Manager
}

func NewWebSocketHandler(sessions *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			SessionID string `json:"session_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "query" || msg.Content == "" {
			continue
		}

		logger.Info("Processing WebSocket query", zap.String("query", msg.Content))

		err = h.streamResponse(c, msg.Content, msg.SessionID)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, query, sessionID string) error {
	ctx := context.Background()

	r, sessionID := h.sessions.Get(sessionID)

	if err := h.send(c, map[string]interface{}{
		"type":       "status",
		"content":    "Processing query...",
		"session_id": sessionID,
	}); err != nil {
		return err
	}

	for chunk := range r.RouteStream(ctx, query) {
		if chunk.Final {
			return h.send(c, map[string]interface{}{
				"type":                "complete",
				"session_id":          sessionID,
				"passages":            chunk.Response.Passages,
				"intent":              chunk.Response.Intent,
				"confidence":          chunk.Response.Confidence,
				"needs_clarification": chunk.Response.NeedsClarification,
				"cache_hit":           chunk.Response.CacheHit,
			})
		}

		if err := h.send(c, map[string]interface{}{
			"type":    "chunk",
			"content": chunk.Text,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg map[string]interface{}) error {
	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	h.send(c, map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
