package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/gorilla/websocket"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, saleID int64) *Client {
	return &Client{
		hub:    hub,
		saleID: saleID,
		send:   make(chan []byte, 256),
	}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubRegistration(t *testing.T) {
	hub := runHub(t)

	client := mockClient(hub, 12)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if !hub.rooms[12][client] {
		t.Fatal("client not registered in sale room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := runHub(t)

	client := mockClient(hub, 12)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[12] != nil {
		t.Fatal("sale room not cleaned up after last client unregistered")
	}
}

func TestBroadcastSale_RoomAndFloor(t *testing.T) {
	hub := runHub(t)

	saleClient := mockClient(hub, 1)
	otherSale := mockClient(hub, 2)
	floor := mockClient(hub, AllSales)
	hub.register <- saleClient
	hub.register <- otherSale
	hub.register <- floor
	time.Sleep(10 * time.Millisecond)

	payload := json.RawMessage(`{"sale_id":1}`)
	hub.BroadcastSale(1, Event{Type: "order-changed", Payload: payload})

	for name, c := range map[string]*Client{"sale": saleClient, "floor": floor} {
		select {
		case msg := <-c.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("%s: unmarshal message: %v", name, err)
			}
			if received.Type != "order-changed" {
				t.Errorf("%s: expected type 'order-changed', got '%s'", name, received.Type)
			}
			if string(received.Payload) != string(payload) {
				t.Errorf("%s: expected payload '%s', got '%s'", name, payload, received.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s client did not receive message", name)
		}
	}

	select {
	case <-otherSale.send:
		t.Fatal("client of another sale should not receive message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastSale_PreservesOrder(t *testing.T) {
	hub := runHub(t)

	client := mockClient(hub, 5)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 20; i++ {
		hub.BroadcastSale(5, Event{Type: "order-changed", Payload: json.RawMessage(`{"seq":` + strconv.Itoa(i) + `}`)})
	}

	for i := 0; i < 20; i++ {
		select {
		case msg := <-client.send:
			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			var p struct{ Seq int }
			_ = json.Unmarshal(ev.Payload, &p)
			if p.Seq != i {
				t.Fatalf("message %d: got seq %d", i, p.Seq)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %d not delivered", i)
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := runHub(t)

	slow := &Client{hub: hub, saleID: 9, send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastSale(9, Event{Type: "order-changed", Payload: json.RawMessage(`{}`)})
	time.Sleep(20 * time.Millisecond)

	if n := hub.Clients(); n != 0 {
		t.Fatalf("clients: got %d, want 0", n)
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("expected send channel closed")
	}
}

func TestServeWS(t *testing.T) {
	hub := runHub(t)
	secret := "ws-secret"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, secret, w, r)
	}))
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	if _, resp, err := websocket.DefaultDialer.Dial(base+"/ws/orders", nil); err == nil {
		t.Fatal("expected dial without token to fail")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", resp.StatusCode)
	}

	token, err := auth.GenerateToken(secret, 1, "ana", "WAITER", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/orders?sale_id=3&token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var hello struct {
		Type    string `json:"type"`
		Payload struct {
			SaleID int64  `json:"sale_id"`
			At     string `json:"at"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if hello.Type != EventConnected || hello.Payload.SaleID != 3 {
		t.Fatalf("unexpected greeting %+v", hello)
	}
	if _, err := time.Parse(time.RFC3339Nano, hello.Payload.At); err != nil {
		t.Fatalf("greeting cursor %q: %v", hello.Payload.At, err)
	}

	hub.BroadcastSale(3, Event{Type: "order-changed", Payload: json.RawMessage(`{"sale_id":3}`)})
	hub.BroadcastSale(3, Event{Type: "order-changed", Payload: json.RawMessage(`{"sale_id":3,"n":2}`)})

	// One event per frame.
	for i := 0; i < 2; i++ {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("frame %d is not a single event: %s", i, msg)
		}
		if ev.Type != "order-changed" {
			t.Fatalf("unexpected message %s", msg)
		}
	}
}

func TestServeWS_HeaderToken(t *testing.T) {
	hub := runHub(t)
	secret := "ws-secret"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, secret, w, r)
	}))
	defer srv.Close()

	token, err := auth.GenerateToken(secret, 2, "bia", "KITCHEN", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var hello Event
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if hello.Type != EventConnected {
		t.Fatalf("got %q, want %q", hello.Type, EventConnected)
	}
}

