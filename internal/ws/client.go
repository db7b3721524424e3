package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxMessageSize = 512
	sendBuffer     = 256
)

// EventConnected is the first message on every connection. Its payload
// carries the server time, which a client that later loses the socket can
// pass as ?since= to /changes to catch up.
const EventConnected = "connected"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Access is decided by the token, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one push-channel viewer. It follows a single sale or, with
// saleID == AllSales, the whole floor.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	saleID     int64
	employeeID int64
	send       chan []byte
}

// ReadPump only watches for disconnects; viewers never send events.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).
					Int64("sale_id", c.saleID).
					Int64("employee_id", c.employeeID).
					Msg("ws: unexpected close")
			}
			return
		}
	}
}

// WritePump sends each queued event as its own text frame, so a client
// can decode every frame as one JSON object, and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel: shutdown or slow consumer.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// connectionToken reads the JWT from ?token= or, for clients that can set
// headers on the upgrade request, from "Authorization: Bearer".
func connectionToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func greeting(saleID int64, at time.Time) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"sale_id": saleID,
		"at":      at.UTC().Format(time.RFC3339Nano),
	})
	msg, _ := json.Marshal(Event{Type: EventConnected, Payload: payload})
	return msg
}

// ServeWS upgrades GET /ws/orders?token=JWT[&sale_id=N]. Without sale_id
// the client follows every order.
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	tokenStr := connectionToken(r)
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	saleID := AllSales
	if raw := r.URL.Query().Get("sale_id"); raw != "" {
		saleID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || saleID <= 0 {
			http.Error(w, "invalid sale id", http.StatusBadRequest)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("username", claims.Username).Msg("ws: upgrade")
		return
	}

	client := &Client{
		hub:        hub,
		conn:       conn,
		saleID:     saleID,
		employeeID: claims.EmployeeID,
		send:       make(chan []byte, sendBuffer),
	}
	client.send <- greeting(saleID, time.Now())
	hub.register <- client

	log.Debug().Int64("sale_id", saleID).Str("username", claims.Username).Msg("ws: connected")

	go client.WritePump()
	go client.ReadPump()
}
