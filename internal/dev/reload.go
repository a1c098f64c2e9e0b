package dev

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ReloadPath is the WebSocket endpoint the reload client connects to.
const ReloadPath = "/_arbor/reload"

// ReloadMessageType is the kind of message pushed to browsers.
type ReloadMessageType string

const (
	ReloadTypeFull  ReloadMessageType = "reload"
	ReloadTypeError ReloadMessageType = "error"
)

// ReloadMessage is sent to browsers via WebSocket.
type ReloadMessage struct {
	Type  ReloadMessageType `json:"type"`
	Error string            `json:"error,omitempty"`
}

// Broker manages WebSocket connections for live reload.
type Broker struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

// NewBroker creates a reload broker.
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // dev only, any origin
			},
		},
	}
}

// HandleWebSocket upgrades and parks a browser connection.
func (b *Broker) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.clients[conn] = true
	b.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	b.mu.Lock()
	delete(b.clients, conn)
	b.mu.Unlock()
	conn.Close()
}

// NotifyReload tells every connected browser to refresh.
func (b *Broker) NotifyReload() {
	b.broadcast(ReloadMessage{Type: ReloadTypeFull})
}

// NotifyError pushes a build error to every connected browser.
func (b *Broker) NotifyError(msg string) {
	b.broadcast(ReloadMessage{Type: ReloadTypeError, Error: msg})
}

// ClientCount returns the number of connected browsers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close drops all connections.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		c.Close()
		delete(b.clients, c)
	}
}

func (b *Broker) broadcast(msg ReloadMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	b.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			b.mu.Lock()
			delete(b.clients, c)
			b.mu.Unlock()
			c.Close()
		}
	}
}

// ClientScript is the reload client injected into HTML pages in dev mode.
const ClientScript = `<script>
(function() {
    'use strict';
    var delay = 1000;
    function connect() {
        var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        var ws = new WebSocket(proto + '//' + location.host + '` + ReloadPath + `');
        ws.onopen = function() { delay = 1000; };
        ws.onmessage = function(e) {
            var msg;
            try { msg = JSON.parse(e.data); } catch (_) { return; }
            if (msg.type === 'reload') { location.reload(); }
            if (msg.type === 'error') { console.error('[arbor] ' + msg.error); }
        };
        ws.onclose = function() {
            setTimeout(connect, delay);
            delay = Math.min(delay * 2, 30000);
        };
    }
    connect();
})();
</script>`
