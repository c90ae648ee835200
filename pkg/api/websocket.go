package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10

	// Browsers only send pings, so inbound frames stay small.
	maxInbound = 4096

	// sendQueue bounds the frames waiting for one browser. A render is four
	// messages; a browser this far behind is dropped.
	sendQueue = 256
)

// Message types on the output stream.
const (
	EventTypeOutput = "output"
	EventTypeClear  = "clear"
	EventTypePing   = "ping"
	EventTypePong   = "pong"
	EventTypeError  = "error"
)

// WSMessage is the envelope of every stream message. Several messages may
// share one frame, separated by '\n'.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

func newMessage(typ string, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      typ,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// upgrader admits same-origin pages; Server.Handler widens it to the
// configured CORS origins.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     origins(nil).checkRequest,
}

// -----------------------------------------------------------------------------
// Browser Connection
// -----------------------------------------------------------------------------

// viewer is one browser tab following the notebook. send belongs to the
// hub, which closes it on drop; replies is written only by listen.
type viewer struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	replies chan []byte
}

func newViewer(hub *Hub, conn *websocket.Conn) *viewer {
	return &viewer{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendQueue),
		replies: make(chan []byte, 8),
	}
}

// listen reads until the browser goes away, answering pings, then leaves
// the hub.
func (v *viewer) listen() {
	defer func() {
		v.hub.leave(v)
		v.conn.Close()
	}()

	v.conn.SetReadLimit(maxInbound)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read: %v", err)
			}
			return
		}

		var msg WSMessage
		switch err := json.Unmarshal(frame, &msg); {
		case err != nil:
			v.reply(newMessage(EventTypeError, map[string]string{
				"code":    "invalid_json",
				"message": "Failed to parse message",
			}))
		case msg.Type == EventTypePing:
			v.reply(newMessage(EventTypePong, nil))
		default:
			log.Printf("[ws] ignoring %q message", msg.Type)
		}
	}
}

// reply queues a message for this browser only. It is dropped when the
// queue is full.
func (v *viewer) reply(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case v.replies <- data:
	default:
	}
}

// deliver writes queued frames, coalescing whatever is waiting into one
// frame, and pings on an interval. It ends when the hub closes send or a
// write fails.
func (v *viewer) deliver() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case data, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if n := len(v.send); n > 0 {
				var buf bytes.Buffer
				buf.Write(data)
				for ; n > 0; n-- {
					buf.WriteByte('\n')
					buf.Write(<-v.send)
				}
				data = buf.Bytes()
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case data := <-v.replies:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

// delivery is one message for the hub loop. Recorded messages join the
// replay history; a reset empties it first.
type delivery struct {
	data   []byte
	record bool
	reset  bool
}

// Hub fans display messages out to every browser and replays the recorded
// history to browsers that connect later. Membership, fan-out and history
// only change inside Run, so a late joiner sees each output exactly once.
type Hub struct {
	viewers    map[*viewer]bool
	history    [][]byte
	broadcast  chan delivery
	register   chan *viewer
	unregister chan *viewer

	// mu guards viewers and history for the read-only accessors
	mu sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		viewers:    make(map[*viewer]bool),
		broadcast:  make(chan delivery, sendQueue),
		register:   make(chan *viewer),
		unregister: make(chan *viewer),
		done:       make(chan struct{}),
	}
}

// Run processes joins, leaves and messages until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for v := range h.viewers {
				h.drop(v)
			}
			h.mu.Unlock()
			return

		case v := <-h.register:
			h.mu.Lock()
			h.viewers[v] = true
			if len(h.history) > 0 {
				v.send <- bytes.Join(h.history, []byte{'\n'})
			}
			n := len(h.viewers)
			h.mu.Unlock()
			log.Printf("[ws] viewer joined (%d watching)", n)

		case v := <-h.unregister:
			h.mu.Lock()
			if h.viewers[v] {
				h.drop(v)
			}
			n := len(h.viewers)
			h.mu.Unlock()
			log.Printf("[ws] viewer left (%d watching)", n)

		case d := <-h.broadcast:
			h.mu.Lock()
			if d.reset {
				h.history = nil
			}
			if d.record {
				h.history = append(h.history, d.data)
			}
			for v := range h.viewers {
				select {
				case v.send <- d.data:
				default:
					log.Printf("[ws] dropping a viewer that fell behind")
					h.drop(v)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes v and ends its deliver loop. h.mu must be held.
func (h *Hub) drop(v *viewer) {
	delete(h.viewers, v)
	close(v.send)
}

// join registers v. It reports false when the hub has stopped.
func (h *Hub) join(v *viewer) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- v:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters v. After Stop it returns at once.
func (h *Hub) leave(v *viewer) {
	select {
	case h.unregister <- v:
	case <-h.done:
	}
}

// Stop ends Run and closes every viewer. Later calls do nothing.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// HistoryLen returns the number of messages a new browser would receive.
func (h *Hub) HistoryLen() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.history)
}

// Publish sends msg to every browser and records it for replay. It waits
// while the hub is busy, so no output is lost, and returns at once after
// Stop.
func (h *Hub) Publish(msg *WSMessage) error {
	return h.enqueue(msg, delivery{record: true})
}

// Reset empties the replay history and tells browsers to clear.
func (h *Hub) Reset() error {
	return h.enqueue(newMessage(EventTypeClear, nil), delivery{reset: true})
}

func (h *Hub) enqueue(msg *WSMessage, d delivery) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	d.data = data
	select {
	case h.broadcast <- d:
	case <-h.done:
	}
	return nil
}

// -----------------------------------------------------------------------------
// HTTP Handler
// -----------------------------------------------------------------------------

// WebSocketHandler upgrades GET /ws and attaches the browser to the hub.
type WebSocketHandler struct {
	hub *Hub
}

// NewWebSocketHandler creates a handler for hub.
func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeHTTP implements http.Handler.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade: %v", err)
		return
	}

	v := newViewer(h.hub, conn)
	if !h.hub.join(v) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	go v.deliver()
	go v.listen()
}
