package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/monitoring"
	"github.com/modforge/container/internal/notify"
	"github.com/modforge/container/internal/types"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const clientBuffer = 32

// frame is the wire format pushed to stream clients.
type frame struct {
	Type    string    `json:"type"`
	Event   string    `json:"event,omitempty"`
	Module  string    `json:"module,omitempty"`
	Args    []string  `json:"args,omitempty"`
	At      time.Time `json:"at,omitempty"`
	Message string    `json:"message,omitempty"`
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// Hub streams lifecycle events to WebSocket clients. The bus callback
// only fans frames out to per-client buffered channels; a client that
// stops draining is disconnected rather than allowed to stall the
// lifecycle path.
type Hub struct {
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// WithMetrics adds stream client tracking.
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Notifier returns a callback suitable for notify.Bus registration.
func (h *Hub) Notifier() notify.Callback {
	return func(event types.Event, args []string) {
		f := frame{
			Type:  "event",
			Event: string(event),
			At:    time.Now().UTC(),
		}
		if len(args) > 0 {
			f.Module = args[0]
			f.Args = args[1:]
		}
		h.broadcast(f)
	}
}

func (h *Hub) broadcast(f frame) {
	payload, err := sonic.Marshal(f)
	if err != nil {
		h.log.Error("stream frame encode failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- payload:
		default:
			// Slow consumer; drop it so the bus never blocks.
			delete(h.clients, c)
			close(c.out)
			h.log.Warn("stream client dropped, send buffer full")
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and streams events until the
// client disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, out: make(chan []byte, clientBuffer)}
	h.add(cl)
	defer h.remove(cl)

	welcome, _ := sonic.Marshal(frame{Type: "system", Message: "connected to module container event stream"})
	if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
		return
	}

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) writePump(cl *client) {
	for payload := range cl.out {
		if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump consumes client messages. The stream is one-way apart from
// ping frames; anything else is ignored.
func (h *Hub) readPump(cl *client) {
	for {
		var msg struct {
			Type string `json:"type"`
		}
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := sonic.Marshal(frame{Type: "pong"})
			select {
			case cl.out <- pong:
			default:
			}
		}
	}
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(n))
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.out)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(n))
	}
	cl.conn.Close()
}
