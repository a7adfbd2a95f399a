package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rarestbarbie/majesty-sub001/internal/metrics"
)

// WSMessage is a JSON message sent to WebSocket clients after every turn.
type WSMessage struct {
	Type            string            `json:"type"`
	Day             int64             `json:"day"`
	Hires           int64             `json:"hires"`
	Produced        int64             `json:"produced"`
	ArbitrageLoops  int               `json:"arbitrage_loops"`
	ArbitrageProfit int64             `json:"arbitrage_profit"`
	Prices          map[string]string `json:"prices,omitempty"`
}

// only returns a copy of m whose prices are restricted to the given
// tickers. A nil set keeps every price.
func (m WSMessage) only(tickers map[string]bool) WSMessage {
	if tickers == nil {
		return m
	}
	prices := make(map[string]string, len(tickers))
	for t, p := range m.Prices {
		if tickers[t] {
			prices[t] = p
		}
	}
	m.Prices = prices
	return m
}

// subscriber is one connection and the markets it asked for.
type subscriber struct {
	conn    *websocket.Conn
	tickers map[string]bool
}

func (s *subscriber) send(msg WSMessage) error {
	data, err := json.Marshal(msg.only(s.tickers))
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub fans turn summaries out to WebSocket subscribers. A new subscriber
// immediately receives the latest summary so it does not wait a full turn.
type WSHub struct {
	subs       map[*websocket.Conn]*subscriber
	broadcast  chan WSMessage
	register   chan *subscriber
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	last       *WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		subs:       make(map[*websocket.Conn]*subscriber),
		broadcast:  make(chan WSMessage, 64),
		register:   make(chan *subscriber),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subs[sub.conn] = sub
			if h.last != nil {
				h.deliver(sub, *h.last)
			}
			n := len(h.subs)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			slog.Info("ws subscriber connected", "total", n, "tickers", len(sub.tickers))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subs[conn]; ok {
				delete(h.subs, conn)
				conn.Close()
			}
			n := len(h.subs)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.last = &msg
			for _, sub := range h.subs {
				h.deliver(sub, msg)
			}
			n := len(h.subs)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))

		case <-h.done:
			h.mu.Lock()
			for conn := range h.subs {
				conn.Close()
				delete(h.subs, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

// deliver writes msg to sub, dropping the subscriber on failure. Callers
// hold h.mu.
func (h *WSHub) deliver(sub *subscriber, msg WSMessage) {
	if err := sub.send(msg); err != nil {
		sub.conn.Close()
		delete(h.subs, sub.conn)
	}
}

// Stop closes every client and ends Run.
func (h *WSHub) Stop() {
	close(h.done)
}

// Broadcast queues a turn summary for every subscriber.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop if buffer full to avoid blocking the turn loop.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// parseTickers reads ?tickers=CROWN-GRAIN,MARK-CLOTH. Empty means every
// market.
func parseTickers(r *http.Request) map[string]bool {
	raw := r.URL.Query().Get("tickers")
	if raw == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			set[t] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws?tickers=.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	tickers := parseTickers(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	select {
	case h.register <- &subscriber{conn: conn, tickers: tickers}:
	case <-h.done:
		conn.Close()
		return
	}

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()
		for range ping.C {
			h.mu.RLock()
			_, ok := h.subs[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()
}
