// Package feed serves engine output to websocket clients as JSON.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stock-visualizer/internal/logging"
	"stock-visualizer/internal/models"
)

// ServerConfig holds feed server configuration.
type ServerConfig struct {
	Addr         string
	WriteTimeout time.Duration
	PingInterval time.Duration
	ClientBuffer int
}

// DefaultServerConfig returns the default feed configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1:8765",
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		ClientBuffer: 16,
	}
}

// Server is a hub consumer that broadcasts every event to connected
// websocket clients. New clients first receive the latest snapshot.
type Server struct {
	cfg      ServerConfig
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  []byte

	httpServer *http.Server
	listener   net.Listener
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewServer creates a feed server.
func NewServer(cfg ServerConfig, logger zerolog.Logger) *Server {
	def := DefaultServerConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	return &Server{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "feed"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Read-only feed, any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler serving the websocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	srv := s.httpServer
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Feed server stopped")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Feed server listening")
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down and disconnects every client.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	for c := range s.clients {
		c.close()
		delete(s.clients, c)
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, s.cfg.ClientBuffer)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.latest != nil {
		c.send <- s.latest
	}
	s.mu.Unlock()

	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("Feed client connected")

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client input and detects disconnects.
func (s *Server) readPump(c *client) {
	defer s.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()
}

func (s *Server) broadcast(msg Message, keep bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode feed message")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if keep {
		s.latest = data
	}
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Slow clients are disconnected.
			delete(s.clients, c)
			c.close()
			s.logger.Warn().Msg("Dropping slow feed client")
		}
	}
}

// Name implements stream.Consumer.
func (s *Server) Name() string { return "feed" }

// OnSnapshotUpdated implements stream.Consumer.
func (s *Server) OnSnapshotUpdated(snapshot models.MarketSnapshot) {
	s.broadcast(snapshotMessage(snapshot), true)
}

// OnAlertsUpdated implements stream.Consumer.
func (s *Server) OnAlertsUpdated(statuses []models.AlertStatus) {
	s.broadcast(alertsMessage(statuses), false)
}

// OnAlertTriggered implements stream.Consumer.
func (s *Server) OnAlertTriggered(event models.AlertEvent) {
	s.broadcast(triggeredMessage(event), false)
}
