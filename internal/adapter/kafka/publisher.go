package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/road-risk-playground/internal/config"
	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	defaultBufferSize = 256
	maxBatch          = 100
	writeTimeout      = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes accepted assessments to a Kafka topic in the background.
// It implements orchestrator.AssessmentSink.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	closed bool
	events chan domain.AssessmentEvent
	done   chan struct{}
}

// NewPublisher creates a Kafka producer for the configured assessment topic
// and starts its write loop.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaAssessmentTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, defaultBufferSize, logger, metrics)
}

func newPublisher(w messageWriter, bufferSize int, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	p := &Publisher{
		writer:  w,
		logger:  logger,
		metrics: metrics,
		events:  make(chan domain.AssessmentEvent, bufferSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Record queues an event without blocking. Events are dropped when the
// buffer is full or the publisher is closed.
func (p *Publisher) Record(event domain.AssessmentEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.PublishDropped.Inc()
		return
	}
	select {
	case p.events <- event:
	default:
		p.metrics.PublishDropped.Inc()
		p.logger.Warn("assessment publish buffer full, dropping event",
			"session_id", event.SessionID, "request_id", event.RequestID)
	}
}

// Close flushes queued events and closes the underlying writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.events {
		batch := []domain.AssessmentEvent{event}
	drain:
		for len(batch) < maxBatch {
			select {
			case e, ok := <-p.events:
				if !ok {
					break drain
				}
				batch = append(batch, e)
			default:
				break drain
			}
		}
		p.publish(batch)
	}
}

func (p *Publisher) publish(events []domain.AssessmentEvent) {
	msgs := make([]kafkago.Message, 0, len(events))
	for _, e := range events {
		msg, err := serializeToMessage(e)
		if err != nil {
			p.metrics.PublishErrors.Inc()
			p.logger.Error("serialize assessment failed", "error", err, "request_id", e.RequestID)
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.PublishErrors.Add(float64(len(msgs)))
		p.logger.Error("publish assessments failed", "error", err, "batch_size", len(msgs))
		return
	}
	p.metrics.AssessmentsPublished.Add(float64(len(msgs)))
}

// serializeToMessage marshals an AssessmentEvent into a Kafka message keyed
// by session and request.
func serializeToMessage(event domain.AssessmentEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%s-%d", event.SessionID, event.RequestID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "request_id", Value: []byte(strconv.FormatUint(uint64(event.RequestID), 10))},
			{Key: "accepted_at", Value: []byte(event.AcceptedAt.Format(time.RFC3339))},
		},
	}, nil
}
