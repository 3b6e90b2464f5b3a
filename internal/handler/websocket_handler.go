// internal/handler/websocket_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"uart-assist/internal/observe"
	"uart-assist/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// WebSocketHandler streams run observations to monitor clients
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	bus         *observe.EventBus
	tracker     *observe.Tracker
	logger      *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler. An empty
// allowedOrigins accepts every origin.
func NewWebSocketHandler(bus *observe.EventBus, tracker *observe.Tracker, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		connections: NewConnectionManager(),
		bus:         bus,
		tracker:     tracker,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// Connections returns the connection manager
func (h *WebSocketHandler) Connections() *ConnectionManager {
	return h.connections
}

// HandleEventConnection upgrades the request and streams events until the
// client goes away
// @Summary Event stream
// @Description Upgrade to a WebSocket that sends a snapshot followed by run events
// @Tags Events
// @Success 101 "Switching protocols"
// @Failure 403 "Origin not allowed"
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 16),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}
	client.Events = h.bus.Subscribe(client.ID)

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      MessageSnapshot,
		Data:      h.tracker.Snapshot(),
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		if h.connections.Unregister(client) {
			h.bus.Unsubscribe(client.ID)
		}
		client.Connection.Close()
		h.logger.Info("Event WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Warn("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite is the only writer on the connection
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case event, ok := <-client.Events:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !client.Wants(event.Kind) {
				continue
			}

			payload, err := json.Marshal(&WebSocketMessage{
				Type:      MessageEvent,
				Data:      event,
				Timestamp: event.Timestamp,
			})
			if err != nil {
				h.logger.Error("Failed to encode event", zap.Error(err))
				continue
			}
			if err := client.Connection.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case message := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case MessagePing:
		h.sendMessage(client, &WebSocketMessage{
			Type:      MessagePong,
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case MessageSubscribe, MessageUnsubscribe:
		req, err := decodeSubscription(message.Data)
		if err != nil {
			h.sendError(client, message.RequestID, "invalid subscription: "+err.Error())
			return
		}
		if message.Type == MessageSubscribe {
			client.Subscribe(req.Kinds...)
		} else {
			client.Unsubscribe(req.Kinds...)
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      message.Type,
			Data:      req,
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, message.RequestID, "unknown message type: "+message.Type)
	}
}

func (h *WebSocketHandler) sendError(client *Client, requestID, reason string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      MessageError,
		Data:      gin.H{"error": reason},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// sendMessage queues a message for the writer; it drops the message when
// the client is not keeping up
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.Error(err))
		return
	}

	select {
	case client.Send <- payload:
	default:
		h.logger.Warn("WebSocket client send buffer full, message dropped",
			zap.String("client_id", client.ID),
			zap.String("type", message.Type),
		)
	}
}

func decodeSubscription(data interface{}) (*SubscriptionRequest, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var req SubscriptionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
