package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	xlogger "NewsVol/pkg/logger"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultBufferSize   = 16
)

// StreamConfig tunes the WebSocket hub.
type StreamConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// StreamHub pushes completed analyses to WebSocket subscribers. A client can
// filter with ?ticker=; a client whose buffer is full is dropped.
type StreamHub struct {
	cfg      StreamConfig
	upgrader websocket.Upgrader
	logger   *xlogger.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn   *websocket.Conn
	ticker string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

var _ domrepo.Broadcaster = (*StreamHub)(nil)

func NewStreamHub(logger *xlogger.Logger, cfg StreamConfig) *StreamHub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &StreamHub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

func (h *StreamHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/analysis", h.Serve)
}

// Serve upgrades the request and streams events until the client goes away.
func (h *StreamHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	client := &streamClient{
		conn:   conn,
		ticker: strings.ToUpper(strings.TrimSpace(c.QueryParam("ticker"))),
		send:   make(chan []byte, h.cfg.BufferSize),
		done:   make(chan struct{}),
	}
	if !h.add(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		client.close()
		return nil
	}
	h.logger.Debug("stream client connected",
		xlogger.String("remote_ip", c.RealIP()),
		xlogger.Ticker(client.ticker),
	)

	go h.writeLoop(client)
	h.readLoop(client)
	h.remove(client)
	return nil
}

// Broadcast never blocks on a client.
func (h *StreamHub) Broadcast(ev models.AnalysisEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode stream event failed", xlogger.Ticker(ev.Ticker), xlogger.Error(err))
		return
	}

	var slow []*streamClient
	h.mu.RLock()
	for c := range h.clients {
		if c.ticker != "" && c.ticker != ev.Ticker {
			continue
		}
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow stream client", xlogger.Ticker(c.ticker))
		h.remove(c)
	}
}

// Clients is the number of connected subscribers.
func (h *StreamHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *StreamHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

func (h *StreamHub) add(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *StreamHub) readLoop(c *streamClient) {
	pongWait := 2 * h.cfg.PingInterval
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writeLoop(c *streamClient) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
