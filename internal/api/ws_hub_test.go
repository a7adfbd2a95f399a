package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseTickers(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?tickers=crown-grain,%20MARK-CLOTH%20,,", nil)
	got := parseTickers(r)
	if len(got) != 2 || !got["CROWN-GRAIN"] || !got["MARK-CLOTH"] {
		t.Errorf("got %v", got)
	}

	if got := parseTickers(httptest.NewRequest("GET", "/ws", nil)); got != nil {
		t.Errorf("expected nil for no filter, got %v", got)
	}
	if got := parseTickers(httptest.NewRequest("GET", "/ws?tickers=,", nil)); got != nil {
		t.Errorf("expected nil for empty filter, got %v", got)
	}
}

func TestWSMessage_Only(t *testing.T) {
	msg := WSMessage{Day: 3, Prices: map[string]string{"CROWN-GRAIN": "2", "CROWN-MARK": "1"}}

	all := msg.only(nil)
	if len(all.Prices) != 2 {
		t.Errorf("expected every price, got %v", all.Prices)
	}

	some := msg.only(map[string]bool{"CROWN-GRAIN": true})
	if len(some.Prices) != 1 || some.Prices["CROWN-GRAIN"] != "2" {
		t.Errorf("got %v", some.Prices)
	}
	if len(msg.Prices) != 2 {
		t.Error("filtering must not modify the original message")
	}
}

func dialHub(t *testing.T, hub *WSHub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWSHub_FiltersByTicker(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	defer hub.Stop()

	conn := dialHub(t, hub, "?tickers=crown-grain")
	hub.Broadcast(WSMessage{
		Type:   "turn_complete",
		Day:    1,
		Prices: map[string]string{"CROWN-GRAIN": "2", "CROWN-MARK": "1"},
	})

	var got WSMessage
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Day != 1 || len(got.Prices) != 1 || got.Prices["CROWN-GRAIN"] != "2" {
		t.Errorf("got %+v", got)
	}
}

func TestWSHub_LateSubscriberGetsLatest(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	defer hub.Stop()

	hub.Broadcast(WSMessage{Type: "turn_complete", Day: 7})
	conn := dialHub(t, hub, "")

	var got WSMessage
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Day != 7 {
		t.Errorf("expected day 7, got %d", got.Day)
	}
}
