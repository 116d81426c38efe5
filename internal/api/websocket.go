package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"investment-core/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is what a connected client receives.
type wsFrame struct {
	Event events.Event `json:"event"`
	Data  any          `json:"data"`
}

type wsClient struct {
	userID string
	send   chan wsFrame
}

// Hub owns the registry of connected clients and routes bus events to the
// connections of the user they are addressed to.
type Hub struct {
	bus *events.Bus
	log *zap.Logger

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
	dropped atomic.Uint64
}

// NewHub creates a hub fed by bus.
func NewHub(bus *events.Bus, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{bus: bus, log: log.With(zap.String("component", "ws_hub")), clients: make(map[string]map[*wsClient]struct{})}
}

// Run forwards user-addressed events until ctx is done or the bus closes.
func (h *Hub) Run(ctx context.Context) {
	topics := []events.Event{events.EventNotification, events.EventTransactionUpdate, events.EventBalanceUpdate}
	for _, topic := range topics {
		stream, unsub := h.bus.Subscribe(topic, 256)
		go func(topic events.Event, stream <-chan any, unsub func()) {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					h.route(wsFrame{Event: topic, Data: msg})
				}
			}
		}(topic, stream, unsub)
	}
}

func (h *Hub) route(f wsFrame) {
	userID := events.Recipient(f.Data)
	if userID == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients[userID] {
		select {
		case cl.send <- f:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) register(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[cl.userID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[cl.userID] = set
	}
	set[cl] = struct{}{}
}

func (h *Hub) unregister(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[cl.userID]; ok {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.clients, cl.userID)
		}
	}
}

// HubStats is exposed through the metrics endpoint.
type HubStats struct {
	Users       int    `json:"users"`
	Connections int    `json:"connections"`
	Dropped     uint64 `json:"dropped"`
}

// Stats counts the connected users and connections.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st := HubStats{Users: len(h.clients), Dropped: h.dropped.Load()}
	for _, set := range h.clients {
		st.Connections += len(set)
	}
	return st
}

// websocket authenticates with ?token= or a Bearer header, then streams the
// caller's events until either side closes.
func (s *Server) websocket(c *gin.Context) {
	if s.Hub == nil {
		respondCode(c, http.StatusServiceUnavailable, "PUSH_UNAVAILABLE", "push not available")
		return
	}
	raw := c.Query("token")
	if raw == "" {
		raw, _ = bearerToken(c.GetHeader("Authorization"))
	}
	actor, err := s.Tokens.Parse(raw)
	if raw == "" || err != nil {
		respondCode(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Log.Warn("ws upgrade error", zap.Error(err))
		return
	}

	cl := &wsClient{userID: actor.ID, send: make(chan wsFrame, wsSendBuffer)}
	s.Hub.register(cl)
	done := make(chan struct{})
	go s.Hub.writePump(conn, cl, done)

	defer func() {
		s.Hub.unregister(cl)
		close(done)
	}()

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, cl *wsClient, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case f := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(f); err != nil {
				h.log.Debug("ws write error", zap.String("user_id", cl.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
