// Package session wires one selection to its camera and risk orchestrator
// and publishes the combined view to listeners.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/road-risk-playground/internal/camera"
	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/observability"
	"github.com/couchcryptid/road-risk-playground/internal/orchestrator"
	"github.com/couchcryptid/road-risk-playground/internal/render"
	"github.com/couchcryptid/road-risk-playground/internal/selection"
	"github.com/google/uuid"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// View is everything a client needs to draw the current state.
type View struct {
	Selection selection.Snapshot         `json:"selection"`
	Request   domain.RequestState        `json:"request"`
	Overlay   *geojson.FeatureCollection `json:"overlay"`
	Result    *render.Result             `json:"result"`
}

// Session is one selection, camera and orchestrator serving one client.
// Listeners run synchronously on the goroutine that caused the change and
// must not block or call back into the session.
type Session struct {
	id     string
	sel    *selection.Selection
	orch   *orchestrator.Orchestrator
	logger *slog.Logger

	closeOnce sync.Once
	onClose   func()

	mu                sync.Mutex
	snap              selection.Snapshot
	update            orchestrator.Update
	viewListeners     []func(View)
	viewportListeners []func(camera.Action)
}

// New wires a session. A nil assessor runs it degraded; a nil sink disables
// assessment publishing.
func New(id string, assessor domain.RiskAssessor, sink orchestrator.AssessmentSink, loc *time.Location, logger *slog.Logger, metrics *observability.Metrics) *Session {
	opts := []orchestrator.Option{orchestrator.WithSessionID(id)}
	if sink != nil {
		opts = append(opts, orchestrator.WithSink(sink))
	}

	s := &Session{
		id:     id,
		sel:    selection.New(loc),
		orch:   orchestrator.New(assessor, logger, metrics, opts...),
		logger: logger.With("session_id", id),
	}
	s.snap = s.sel.Snapshot()
	s.update = s.orch.Current()

	// Camera before orchestrator, matching the order the map reacts in.
	s.sel.Subscribe(s.onSelection)
	s.sel.Subscribe(s.orch.OnSelectionChange)
	s.orch.Subscribe(s.onUpdate)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Selection is the session's single writer of origin, destination and travel moment.
func (s *Session) Selection() *selection.Selection { return s.sel }

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// Viewport returns the viewport action for the current selection.
func (s *Session) Viewport() camera.Action {
	snap := s.sel.Snapshot()
	return camera.ComputeViewportAction(snap.Origin, snap.Destination)
}

// OnView registers fn to receive a new View after every change.
func (s *Session) OnView(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewListeners = append(s.viewListeners, fn)
}

// OnViewport registers fn to receive the viewport action after every selection change.
func (s *Session) OnViewport(fn func(camera.Action)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewportListeners = append(s.viewportListeners, fn)
}

// Close stops in-flight requests. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.orch.Close()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("session closed")
	})
}

// onSelection only drives the camera. The view's selection comes from
// orchestrator updates so it always matches the published outputs.
func (s *Session) onSelection(snap selection.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action := camera.ComputeViewportAction(snap.Origin, snap.Destination)
	for _, fn := range s.viewportListeners {
		fn(action)
	}
}

func (s *Session) onUpdate(u orchestrator.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = u.Selection
	s.update = u
	v := s.view()
	for _, fn := range s.viewListeners {
		fn(v)
	}
}

// view must be called with s.mu held.
func (s *Session) view() View {
	v := View{
		Selection: s.snap,
		Request:   s.update.State,
		Overlay:   render.Overlay(s.snap.Origin, s.snap.Destination, s.update.Outputs.Route),
	}
	if res, ok := render.Present(s.update.Outputs.ModelInputs, s.update.Outputs.Prediction); ok {
		v.Result = &res
	}
	return v
}

// Factory creates sessions sharing one assessor, sink and observability stack.
type Factory struct {
	assessor domain.RiskAssessor
	sink     orchestrator.AssessmentSink
	loc      *time.Location
	logger   *slog.Logger
	metrics  *observability.Metrics

	draining atomic.Bool
	wg       sync.WaitGroup
}

// NewFactory creates a session factory.
func NewFactory(assessor domain.RiskAssessor, sink orchestrator.AssessmentSink, loc *time.Location, logger *slog.Logger, metrics *observability.Metrics) *Factory {
	return &Factory{
		assessor: assessor,
		sink:     sink,
		loc:      loc,
		logger:   logger,
		metrics:  metrics,
	}
}

// ErrDraining is returned by NewSession once Drain has been called.
var ErrDraining = errors.New("session factory is draining")

// NewSession creates a session with a fresh ID.
func (f *Factory) NewSession() (*Session, error) {
	if f.draining.Load() {
		return nil, ErrDraining
	}
	s := New(uuid.NewString(), f.assessor, f.sink, f.loc, f.logger, f.metrics)
	f.wg.Add(1)
	f.metrics.SessionsActive.Inc()
	s.onClose = func() {
		f.metrics.SessionsActive.Dec()
		f.wg.Done()
	}
	s.logger.Info("session opened")
	return s, nil
}

// CheckReadiness reports an error once the factory stops accepting sessions.
func (f *Factory) CheckReadiness(_ context.Context) error {
	if f.draining.Load() {
		return ErrDraining
	}
	return nil
}

// Drain stops new sessions and waits until open ones close or ctx is done.
func (f *Factory) Drain(ctx context.Context) error {
	f.draining.Store(true)
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
