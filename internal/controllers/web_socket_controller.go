package controllers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"busmate/internal/events"
	"busmate/internal/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is open for the API as well
	},
}

type passClient struct {
	userID uint
	conn   *websocket.Conn
	send   chan events.PassStatusChanged
}

// PassHub fans pass status changes out to the owner's open connections.
type PassHub struct {
	mu      sync.Mutex
	clients map[uint]map[*passClient]struct{}
}

func NewPassHub() *PassHub {
	return &PassHub{clients: make(map[uint]map[*passClient]struct{})}
}

// Run forwards events until ctx is done or the feed is closed.
func (h *PassHub) Run(ctx context.Context, feed <-chan events.PassStatusChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-feed:
			if !ok {
				return
			}
			h.Broadcast(evt)
		}
	}
}

// Broadcast queues evt for every connection of its user. Slow clients drop
// the event rather than stall the hub.
func (h *PassHub) Broadcast(evt events.PassStatusChanged) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[evt.UserID] {
		select {
		case client.send <- evt:
		default:
			logrus.WithFields(logrus.Fields{
				"user_id":  evt.UserID,
				"conn_ptr": fmt.Sprintf("%p", client.conn),
			}).Warn("pass feed buffer full, dropping event")
		}
	}
}

func (h *PassHub) register(client *passClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*passClient]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	logrus.WithFields(logrus.Fields{
		"user_id":  client.userID,
		"conn_ptr": fmt.Sprintf("%p", client.conn),
	}).Info("Client registered with PassHub.")
}

func (h *PassHub) unregister(client *passClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  client.userID,
		"conn_ptr": fmt.Sprintf("%p", client.conn),
	}).Info("Client unregistered from PassHub.")
}

// Connections returns the number of open connections of a user.
func (h *PassHub) Connections(userID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// HandlePassWebSocket upgrades an authenticated request into a status feed.
// The token comes from the query string since browsers cannot set headers
// on WebSocket requests; RequireAuth accepts both.
func (h *PassHub) HandlePassWebSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}

	client := &passClient{userID: userID, conn: conn, send: make(chan events.PassStatusChanged, sendBuffer)}
	h.register(client)
	go h.writePump(client)
	h.readPump(client)
}

// readPump only handles control frames; clients never send data.
func (h *PassHub) readPump(client *passClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()
	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("user_id", client.userID).Warn("pass feed read error")
			}
			return
		}
		logrus.WithField("user_id", client.userID).Debug("ignoring client message on pass feed")
	}
}

// writePump is the only writer of the connection.
func (h *PassHub) writePump(client *passClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case evt, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(evt); err != nil {
				logrus.WithError(err).WithField("user_id", client.userID).Warn("Failed to send pass event to client.")
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
