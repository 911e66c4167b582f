package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"spacetrack/internal/model"
	"spacetrack/internal/service"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development, configure for production
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// WSMessage represents a WebSocket message from a client
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client represents a WebSocket viewer connection
type Client struct {
	ID         string
	Conn       *websocket.Conn
	Send       chan []byte
	Hub        *WSHub
	DeviceCode string // filter by device code (empty means all devices)
}

// wsEvent carries a broadcast payload plus the device code it concerns, so
// clients with a device filter can be skipped.
type wsEvent struct {
	deviceCode string
	data       []byte
}

// WSHub bridges the location-changed feed to WebSocket viewers
type WSHub struct {
	clients    map[*Client]bool
	broadcast  chan wsEvent
	register   chan *Client
	unregister chan *Client
	natsConn   *nats.Conn
	sub        *nats.Subscription
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(nc *nats.Conn) *WSHub {
	return &WSHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan wsEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		natsConn:   nc,
	}
}

// Run starts the hub's event loop
func (h *WSHub) Run() {
	sub, err := h.natsConn.Subscribe(service.SubjectLocationChanged, func(msg *nats.Msg) {
		var loc model.LocationChangedMessage
		if err := json.Unmarshal(msg.Data, &loc); err != nil {
			log.Printf("[WS] Failed to unmarshal location-changed message: %v", err)
			return
		}

		data, err := json.Marshal(map[string]interface{}{
			"type": "location",
			"data": loc,
		})
		if err != nil {
			log.Printf("[WS] Failed to marshal broadcast message: %v", err)
			return
		}

		h.broadcast <- wsEvent{deviceCode: loc.Code, data: data}
	})
	if err != nil {
		log.Printf("[WS] Failed to subscribe to NATS: %v", err)
		return
	}
	h.sub = sub

	log.Println("[WS] Hub started, subscribed to location-changed updates")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s, total clients: %d", client.ID, h.GetClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected: %s, total clients: %d", client.ID, h.GetClientCount())

		case event := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				if client.DeviceCode != "" && client.DeviceCode != event.deviceCode {
					continue
				}
				select {
				case client.Send <- event.data:
				default:
					// Client send buffer is full, close connection.
					// Unregister inline; sending to h.unregister from this
					// loop would block on itself.
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.Send)
					}
					h.mu.Unlock()
				}
			}
		}
	}
}

// Stop stops the hub and cleans up resources
func (h *WSHub) Stop() {
	if h.sub != nil {
		h.sub.Unsubscribe()
	}
	h.mu.Lock()
	for client := range h.clients {
		close(client.Send)
		client.Conn.Close()
		delete(h.clients, client)
	}
	h.mu.Unlock()
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReadPump handles incoming messages from the client
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Client %s read error: %v", c.ID, err)
			}
			break
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(message, &wsMsg); err == nil {
			switch wsMsg.Type {
			case "subscribe":
				// Client wants to follow a specific device
				var data struct {
					DeviceCode string `json:"device_code"`
				}
				if err := json.Unmarshal(wsMsg.Data, &data); err == nil && data.DeviceCode != "" {
					c.DeviceCode = data.DeviceCode
					log.Printf("[WS] Client %s subscribed to device %s", c.ID, c.DeviceCode)
				}
			case "ping":
				select {
				case c.Send <- []byte(`{"type":"pong"}`):
				default:
				}
			}
		}
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub *WSHub
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(hub *WSHub) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleLocation handles WebSocket connections for the live viewer feed
func (h *WSHandler) HandleLocation(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Failed to upgrade connection: %v", err)
		return
	}

	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &Client{
		ID:         clientID,
		Conn:       conn,
		Send:       make(chan []byte, 256),
		Hub:        h.hub,
		DeviceCode: c.Query("device_code"),
	}

	client.Hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	welcome := map[string]interface{}{
		"type":      "connected",
		"message":   "Connected to location stream",
		"client_id": clientID,
	}
	if data, err := json.Marshal(welcome); err == nil {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// GetStats returns WebSocket hub statistics
func (h *WSHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": h.hub.GetClientCount(),
	})
}
