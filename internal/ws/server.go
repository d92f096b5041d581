package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"sabore-analytics/internal/orders"
	"sabore-analytics/internal/reports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// SnapshotSource supplies the report a dashboard sees on connect.
type SnapshotSource interface {
	Current(ctx context.Context, q orders.Query) (reports.Snapshot, error)
}

// Message is the envelope of every frame sent to dashboards.
type Message struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	// Message carries the error text for "error" frames.
	Message string `json:"message,omitempty"`
}

// Server pushes report snapshots to dashboards subscribed by restaurant.
type Server struct {
	Logger    *zap.Logger
	Reports   SnapshotSource
	Heartbeat time.Duration

	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

func New(source SnapshotSource, logger *zap.Logger, heartbeat time.Duration, allowedOrigins []string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Logger:    logger,
		Reports:   source,
		Heartbeat: heartbeat,
		upgrader:  websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		subs:      make(map[string]map[*client]struct{}),
	}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) subscribe(scope string, c *client) (unsubscribe func()) {
	s.mu.Lock()
	if s.subs[scope] == nil {
		s.subs[scope] = make(map[*client]struct{})
	}
	s.subs[scope][c] = struct{}{}
	s.mu.Unlock()

	return func() { s.remove(scope, c) }
}

func (s *Server) remove(scope string, c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clients := s.subs[scope]
	delete(clients, c)
	if len(clients) == 0 {
		delete(s.subs, scope)
	}
}

// Subscribers reports how many dashboards watch scope.
func (s *Server) Subscribers(scope string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[scope])
}

// Broadcast sends one message to every subscriber of scope. Clients that
// fail to receive it are disconnected.
func (s *Server) Broadcast(scope string, eventType string, payload any) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.subs[scope]))
	for c := range s.subs[scope] {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	message := Message{Type: eventType, Data: payload}
	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			s.Logger.Debug("ws client dropped", zap.String("scope", scope), zap.Error(err))
			_ = c.conn.Close()
			s.remove(scope, c)
		}
	}
}

// ReportsWS serves /ws/reports?restaurantId=. The connection first receives
// the current snapshot, then every snapshot generated for its scope after it
// subscribed.
func (s *Server) ReportsWS(w http.ResponseWriter, r *http.Request) {
	restaurantID, scopeErr := orders.ParseScope(r.URL.Query().Get("restaurantId"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	if scopeErr != nil {
		_ = c.writeJSON(Message{Type: "error", Message: "invalid restaurantId"})
		return
	}
	scope := orders.Scope(restaurantID)

	// The initial frame goes out before subscribing so a concurrent
	// broadcast can never be overtaken by an older snapshot.
	ctx := r.Context()
	if s.Reports != nil {
		snap, err := s.Reports.Current(ctx, orders.Query{RestaurantID: restaurantID})
		if err != nil {
			s.Logger.Warn("ws initial snapshot failed", zap.String("scope", scope), zap.Error(err))
			_ = c.writeJSON(Message{Type: "error", Message: "report unavailable"})
		} else if err := c.writeJSON(Message{Type: reports.EventReportSnapshot, Data: snap}); err != nil {
			return
		}
	}
	unsubscribe := s.subscribe(scope, c)
	defer unsubscribe()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	var heartbeat <-chan time.Time
	if s.Heartbeat > 0 {
		ticker := time.NewTicker(s.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-heartbeat:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

var _ reports.Broadcaster = (*Server)(nil)
