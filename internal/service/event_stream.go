package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

const eventBufferSize = 16

// PipelineEvent is one observable state change in the referral pipeline,
// fanned out to connected admin dashboards.
type PipelineEvent struct {
	ReferenceID    string    `json:"reference_id"`
	Event          string    `json:"event"`
	State          string    `json:"state"`
	Classification string    `json:"classification"`
	Urgent         bool      `json:"urgent"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewPipelineEvent derives an event from a submission after a transition or
// creation.
func NewPipelineEvent(submission models.Submission, event string) PipelineEvent {
	return PipelineEvent{
		ReferenceID:    submission.ReferenceID,
		Event:          event,
		State:          string(submission.State),
		Classification: submission.Classification,
		Urgent:         submission.IsUrgent(),
		OccurredAt:     time.Now().UTC(),
	}
}

// EventStream publishes pipeline events to local subscribers and bridges
// them across nodes via redis pub/sub and NATS.
type EventStream interface {
	Publish(ctx context.Context, event PipelineEvent)
	Subscribe() (<-chan PipelineEvent, func())
	Start(ctx context.Context)
}

type eventStream struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *eventBroker
	nodeID       string
}

type eventEnvelope struct {
	Source string        `json:"source"`
	Event  PipelineEvent `json:"event"`
	SentAt time.Time     `json:"sent_at"`
}

type eventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan PipelineEvent]struct{}
}

// NewEventStream constructs the pipeline event stream. Either broker client
// may be nil; local fan-out always works.
func NewEventStream(redisClient *redis.Client, natsConn *nats.Conn, logger zerolog.Logger) EventStream {
	return &eventStream{
		redis:        redisClient,
		redisChannel: "c2c:pipeline:events",
		nats:         natsConn,
		natsSubject:  "c2c.pipeline.events",
		logger:       logger.With().Str("component", "event_stream").Logger(),
		broker:       &eventBroker{subscribers: make(map[chan PipelineEvent]struct{})},
		nodeID:       uuid.NewString(),
	}
}

func (s *eventStream) Start(ctx context.Context) {
	if s.redis != nil {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil {
		go s.consumeNATS(ctx)
	}
}

// Publish fans the event out locally and forwards it to the brokers.
// Broker failures are logged, never surfaced: the pipeline must not depend
// on the dashboard feed.
func (s *eventStream) Publish(ctx context.Context, event PipelineEvent) {
	s.broker.broadcast(event)

	envelope := eventEnvelope{Source: s.nodeID, Event: event, SentAt: time.Now().UTC()}
	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode pipeline event")
		return
	}

	if s.redis != nil {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish pipeline event to redis")
		}
	}
	if s.nats != nil {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish pipeline event to nats")
		}
	}
}

func (s *eventStream) Subscribe() (<-chan PipelineEvent, func()) {
	channel := make(chan PipelineEvent, eventBufferSize)
	s.broker.subscribe(channel)

	cleanup := func() {
		s.broker.unsubscribe(channel)
	}
	return channel, cleanup
}

func (s *eventStream) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("pipeline event redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *eventStream) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "c2c-pipeline", func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats pipeline subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain pipeline nats subscription")
		}
	}()
}

func (s *eventStream) handleEnvelope(payload []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid pipeline event payload")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	s.broker.broadcast(envelope.Event)
}

func (b *eventBroker) subscribe(ch chan PipelineEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *eventBroker) unsubscribe(ch chan PipelineEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *eventBroker) broadcast(event PipelineEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
