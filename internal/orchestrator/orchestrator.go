// Package orchestrator owns the lifecycle of risk requests for one selection.
//
// Every change of the (origin, destination, travel moment) tuple clears the
// published outputs and, when both points are present, issues a new request
// with a strictly larger id. A response is accepted only while its request is
// still the authoritative pending one; anything else is stale and dropped.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/observability"
	"github.com/couchcryptid/road-risk-playground/internal/selection"
	"github.com/twpayne/go-geom"
)

// AssessmentSink receives every accepted assessment. Record is called with
// the orchestrator lock held and must not block.
type AssessmentSink interface {
	Record(domain.AssessmentEvent)
}

// Outputs are the published results of the latest accepted request. All
// fields are nil unless both points are selected and a response was accepted.
type Outputs struct {
	ModelInputs domain.ModelInputs
	Prediction  *float64
	Route       *geom.LineString
}

// Update is what subscribers receive after every state transition.
// Selection is the snapshot State and Outputs belong to.
type Update struct {
	Selection selection.Snapshot
	State     domain.RequestState
	Outputs   Outputs
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSink hands accepted assessments to s.
func WithSink(s AssessmentSink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithSessionID tags log lines and assessment events with id.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.sessionID = id }
}

// Orchestrator is the risk request state machine.
type Orchestrator struct {
	assessor  domain.RiskAssessor
	sink      AssessmentSink
	sessionID string
	logger    *slog.Logger
	metrics   *observability.Metrics

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu          sync.Mutex
	snap        selection.Snapshot
	latest      domain.RequestID
	state       domain.RequestState
	outputs     Outputs
	cancel      context.CancelFunc
	closed      bool
	subscribers []func(Update)
}

// New creates an idle orchestrator. A nil assessor runs it degraded: selection
// changes still clear outputs but nothing is issued.
func New(assessor domain.RiskAssessor, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	ctx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		assessor: assessor,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
		stop:     stop,
		state:    domain.Idle(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sessionID != "" {
		o.logger = o.logger.With("session_id", o.sessionID)
	}
	return o
}

// Subscribe registers fn to run after every state transition. Callbacks run
// with the orchestrator lock held and must not call back into it.
func (o *Orchestrator) Subscribe(fn func(Update)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

// Current returns the request state and outputs.
func (o *Orchestrator) Current() Update {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.update()
}

// State returns the request state.
func (o *Orchestrator) State() domain.RequestState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OnSelectionChange reacts to one change of the selection tuple. It is meant
// to be subscribed to a selection.Selection.
func (o *Orchestrator) OnSelectionChange(snap selection.Snapshot) {
	q, complete := snap.Query()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	o.snap = snap
	o.outputs = Outputs{}
	o.cancelInFlight()

	if !complete || o.assessor == nil {
		if complete {
			o.logger.Warn("risk api not configured, request skipped")
		}
		o.state = domain.Idle()
		o.notify()
		return
	}

	o.latest++
	id := o.latest
	o.state = domain.Pending(id)

	ctx, cancel := context.WithCancel(o.ctx)
	o.cancel = cancel
	o.metrics.RiskRequests.WithLabelValues("issued").Inc()
	o.metrics.RiskRequestsPending.Inc()
	o.logger.Info("risk request issued",
		"request_id", id,
		"origin", q.Origin,
		"destination", q.Destination,
		"travel_moment", q.TravelMoment,
	)

	o.wg.Add(1)
	go o.run(ctx, cancel, id, q)

	o.notify()
}

// Close cancels in-flight requests and waits for them to return. Later
// selection changes are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.cancelInFlight()
	o.mu.Unlock()

	o.stop()
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, id domain.RequestID, q domain.RiskQuery) {
	defer o.wg.Done()
	defer cancel()
	defer o.metrics.RiskRequestsPending.Dec()

	start := time.Now()
	a, err := o.assessor.Assess(ctx, q)
	o.metrics.RiskRequestDuration.Observe(time.Since(start).Seconds())

	o.complete(id, q, a, err)
}

func (o *Orchestrator) complete(id domain.RequestID, q domain.RiskQuery, a domain.Assessment, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || id != o.latest || !o.state.IsPending(id) {
		o.metrics.RiskRequests.WithLabelValues("stale").Inc()
		o.logger.Debug("discarding risk response",
			"request_id", id,
			"latest", o.latest,
			"state", o.state.String(),
			"error", domain.ErrStaleResponse,
		)
		return
	}

	if err != nil {
		o.state = domain.Failed(id)
		o.metrics.RiskRequests.WithLabelValues("failed").Inc()
		o.logger.Warn("risk request failed", "request_id", id, "error", err)
		o.notify()
		return
	}

	prediction := a.Prediction
	o.outputs = Outputs{
		ModelInputs: a.ModelInputs,
		Prediction:  &prediction,
		Route:       a.Route,
	}
	o.state = domain.Succeeded(id)
	o.metrics.RiskRequests.WithLabelValues("accepted").Inc()
	o.logger.Info("risk assessment accepted", "request_id", id, "prediction", prediction)

	if o.sink != nil {
		o.sink.Record(domain.AssessmentEvent{
			SessionID:    o.sessionID,
			RequestID:    id,
			Origin:       q.Origin,
			Destination:  q.Destination,
			TravelMoment: q.TravelMoment,
			Prediction:   prediction,
			ModelInputs:  a.ModelInputs,
			AcceptedAt:   domain.Clock().Now().UTC(),
		})
	}

	o.notify()
}

// cancelInFlight must be called with o.mu held.
func (o *Orchestrator) cancelInFlight() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// notify must be called with o.mu held.
func (o *Orchestrator) notify() {
	u := o.update()
	for _, fn := range o.subscribers {
		fn(u)
	}
}

func (o *Orchestrator) update() Update {
	return Update{Selection: o.snap, State: o.state, Outputs: o.outputs}
}
