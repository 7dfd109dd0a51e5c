package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"focusflow/internal/core/pomodoro"
	"focusflow/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait   = 5 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 50 * time.Second
	clientQueue = 16
)

// StatusUpdate is pushed to every event-stream client.
type StatusUpdate struct {
	Action     string          `json:"action"`
	Type       string          `json:"type"`
	Transition string          `json:"transition,omitempty"`
	Status     pomodoro.Status `json:"status"`
}

func newStatusUpdate(event pomodoro.Event) StatusUpdate {
	return StatusUpdate{
		Action:     ActionStatusUpdate,
		Type:       string(event.Type),
		Transition: event.Transition,
		Status:     event.Status,
	}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans engine events out to websocket clients.
type Hub struct {
	current  func() pomodoro.Status
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewHub creates a hub. current provides the status sent to new clients.
// Upgrades are accepted from clients without an Origin header and from the
// origins policy allows.
func NewHub(current func() pomodoro.Status, policy OriginPolicy) *Hub {
	return &Hub{
		current: current,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     policy.CheckOrigin,
		},
		log:     logging.NewLogger("messaging"),
		clients: make(map[*hubClient]struct{}),
	}
}

// Run forwards events until ctx is done or events is closed, then
// disconnects every client.
func (hub *Hub) Run(ctx context.Context, events <-chan pomodoro.Event) {
	defer hub.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(newStatusUpdate(event))
			if err != nil {
				hub.log.WithError(err).Error("Failed to encode status update")
				continue
			}
			hub.broadcast(payload)
		}
	}
}

// Clients returns the number of connected clients.
func (hub *Hub) Clients() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

// ServeHTTP upgrades the request and streams status updates.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	client := &hubClient{conn: conn, send: make(chan []byte, clientQueue)}

	if hub.current != nil {
		if payload, err := json.Marshal(StatusUpdate{Action: ActionStatusUpdate, Type: "snapshot", Status: hub.current()}); err == nil {
			client.send <- payload
		}
	}

	hub.mu.Lock()
	hub.clients[client] = struct{}{}
	hub.mu.Unlock()
	hub.log.WithField("remote", r.RemoteAddr).Debug("Event stream client connected")

	go hub.writePump(client)
	hub.readPump(client)
}

func (hub *Hub) broadcast(payload []byte) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for client := range hub.clients {
		select {
		case client.send <- payload:
		default:
			hub.log.Warn("Dropping slow event stream client")
			hub.removeLocked(client)
		}
	}
}

func (hub *Hub) remove(client *hubClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.removeLocked(client)
}

func (hub *Hub) removeLocked(client *hubClient) {
	if _, ok := hub.clients[client]; !ok {
		return
	}
	delete(hub.clients, client)
	close(client.send)
}

func (hub *Hub) closeAll() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for client := range hub.clients {
		hub.removeLocked(client)
	}
}

// readPump discards client messages and notices disconnects.
func (hub *Hub) readPump(client *hubClient) {
	defer func() {
		hub.remove(client)
		_ = client.conn.Close()
	}()
	client.conn.SetReadLimit(4096)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (hub *Hub) writePump(client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
