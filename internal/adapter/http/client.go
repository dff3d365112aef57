package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/road-risk-playground/internal/camera"
	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/session"
	"github.com/gorilla/websocket"
)

var (
	// Time allowed to write a message to the peer.
	WriteWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	PongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	PingPeriod = (PongWait * 9) / 10
	// Maximum message size allowed from peer.
	MaxMessageSize int64 = 64 * 1024
)

// maxPendingErrors bounds queued ERROR envelopes for a slow reader.
const maxPendingErrors = 16

// client pumps one websocket. Session listeners never block: the latest
// viewport and view overwrite older unsent ones and the write loop is woken
// through a one-slot channel.
type client struct {
	ws       *websocket.Conn
	sess     *session.Session
	geocoder domain.Geocoder
	logger   *slog.Logger

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	viewport []byte
	view     []byte
	errs     [][]byte
}

func newClient(ws *websocket.Conn, sess *session.Session, geocoder domain.Geocoder, logger *slog.Logger) *client {
	c := &client{
		ws:       ws,
		sess:     sess,
		geocoder: geocoder,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	sess.OnViewport(c.onViewport)
	sess.OnView(c.onView)
	c.onView(sess.View())
	return c
}

// close asks the write loop to send a close frame and drop the connection.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *client) onViewport(a camera.Action) {
	b, err := newEnvelope(EnvelopeViewport, a)
	if err != nil {
		c.logger.Error("encode viewport", "error", err)
		return
	}
	c.mu.Lock()
	c.viewport = b
	c.mu.Unlock()
	c.signal()
}

func (c *client) onView(v session.View) {
	b, err := newEnvelope(EnvelopeView, v)
	if err != nil {
		c.logger.Error("encode view", "error", err)
		return
	}
	c.mu.Lock()
	c.view = b
	c.mu.Unlock()
	c.signal()
}

func (c *client) sendError(err error) {
	b, encErr := newEnvelope(EnvelopeError, errorData{Message: err.Error()})
	if encErr != nil {
		c.logger.Error("encode error", "error", encErr)
		return
	}
	c.mu.Lock()
	if len(c.errs) < maxPendingErrors {
		c.errs = append(c.errs, b)
	}
	c.mu.Unlock()
	c.signal()
}

func (c *client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pending takes the queued messages in send order.
func (c *client) pending() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.errs
	c.errs = nil
	if c.viewport != nil {
		out = append(out, c.viewport)
		c.viewport = nil
	}
	if c.view != nil {
		out = append(out, c.view)
		c.view = nil
	}
	return out
}

func (c *client) listenRead() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.close()
		c.sess.Close()
	}()
	c.ws.SetReadLimit(MaxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(PongWait)); err != nil {
		c.logger.Error("failed to set socket read deadline", "error", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(PongWait))
	})
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Debug("ws read message error", "error", err)
			return
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendError(fmt.Errorf("invalid command: %w", err))
			continue
		}
		if err := c.handle(ctx, cmd); err != nil {
			c.logger.Debug("command rejected", "type", cmd.Type, "error", err)
			c.sendError(err)
		}
	}
}

func (c *client) listenWrite() {
	write := func(mt int, payload []byte) error {
		if err := c.ws.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
			return err
		}
		return c.ws.WriteMessage(mt, payload)
	}
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil {
			c.logger.Debug("websocket already closed", "error", err)
		}
	}()
	for {
		select {
		case <-c.done:
			if err := write(websocket.CloseMessage, []byte{}); err != nil {
				c.logger.Debug("socket already closed", "error", err)
			}
			return
		case <-c.wake:
			for _, message := range c.pending() {
				if err := write(websocket.TextMessage, message); err != nil {
					c.logger.Debug("failed to write socket message", "error", err)
					return
				}
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, []byte{}); err != nil {
				c.logger.Debug("failed to ping socket", "error", err)
				return
			}
		}
	}
}

var (
	errPointRequired = errors.New("point is required")
	errQueryRequired = errors.New("query is required")
)

func (c *client) handle(ctx context.Context, cmd command) error {
	sel := c.sess.Selection()
	switch cmd.Type {
	case CommandPickOrigin:
		return sel.PickOrigin(cmd.Payload)
	case CommandPickDestination:
		return sel.PickDestination(cmd.Payload)
	case CommandSetOrigin:
		return c.setPoint(ctx, cmd.Point, sel.SetOrigin)
	case CommandSetDestination:
		return c.setPoint(ctx, cmd.Point, sel.SetDestination)
	case CommandClearOrigin:
		return sel.SetOrigin(nil)
	case CommandClearDestination:
		return sel.SetDestination(nil)
	case CommandSetTravelMoment:
		return sel.SetTravelMoment(cmd.Moment)
	case CommandGeocodeOrigin:
		return c.geocode(ctx, cmd.Query, sel.SetOrigin)
	case CommandGeocodeDestination:
		return c.geocode(ctx, cmd.Query, sel.SetDestination)
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// geocode blocks the read loop so commands keep their order.
func (c *client) geocode(ctx context.Context, query string, set func(*domain.GeoPoint) error) error {
	if query == "" {
		return errQueryRequired
	}
	pt, err := domain.GeocodePlace(ctx, c.geocoder, query)
	if err != nil {
		return err
	}
	return set(&pt)
}

// setPoint labels an unlabeled point by reverse geocoding. A failed lookup
// keeps the point unlabeled.
func (c *client) setPoint(ctx context.Context, p *domain.GeoPoint, set func(*domain.GeoPoint) error) error {
	if p == nil {
		return errPointRequired
	}
	if err := p.Validate(); err != nil {
		return err
	}
	labeled, err := domain.LabelPoint(ctx, c.geocoder, *p)
	if err != nil {
		c.logger.Warn("reverse geocode failed", "lat", p.Lat, "lng", p.Lng, "error", err)
	}
	return set(&labeled)
}
