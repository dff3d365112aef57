package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/session"
	"github.com/gorilla/websocket"
)

// LiveHandler upgrades /ws requests and binds each connection to a new session.
type LiveHandler struct {
	sessions *session.Factory
	geocoder domain.Geocoder
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewLiveHandler creates the websocket handler. An empty allowedOrigins
// accepts any origin. A nil geocoder rejects GEOCODE_* commands.
func NewLiveHandler(sessions *session.Factory, geocoder domain.Geocoder, allowedOrigins []string, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		sessions: sessions,
		geocoder: geocoder,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(allowedOrigins),
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.NewSession()
	if errors.Is(err, session.ErrDraining) {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		sess.Close()
		return
	}

	c := newClient(ws, sess, h.geocoder, h.logger.With("session_id", sess.ID()))
	h.register(c)
	defer h.unregister(c)

	go c.listenWrite()
	c.listenRead()
}

// Close disconnects every live client. Their sessions close as their read
// loops exit.
func (h *LiveHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
}

func (h *LiveHandler) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *LiveHandler) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(strings.TrimRight(a, "/"), u.Scheme+"://"+u.Host)
		})
	}
}
