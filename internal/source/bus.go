package source

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"vigil/internal/logger"
	"vigil/internal/metrics"
	"vigil/internal/models"
)

// BusConfig configures the message-bus subscriber.
type BusConfig struct {
	Brokers []string
	GroupID string
	// Topics maps a topic string 1:1 to the sensor kind it carries.
	Topics     map[string]models.SensorKind
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// ConnectivitySink is notified when the broker connection is lost or restored.
type ConnectivitySink interface {
	Online()
	Offline()
}

// Subscriber maintains a persistent consumer-group connection to the broker.
// Each inbound message is normalized and merged into an in-memory running
// document keyed by sensor kind; partial updates touch only their own key.
// Connection loss is never fatal: the subscriber reconnects with exponential
// backoff indefinitely.
type Subscriber struct {
	cfg      BusConfig
	pipeline *Pipeline
	conn     ConnectivitySink

	mu      sync.Mutex
	running models.Document

	connMu sync.Mutex
	online bool
}

func NewSubscriber(cfg BusConfig, pipeline *Pipeline, conn ConnectivitySink) *Subscriber {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	return &Subscriber{
		cfg:      cfg,
		pipeline: pipeline,
		conn:     conn,
		running:  make(models.Document),
	}
}

// Pipeline returns the subscriber's ingestion pipeline.
func (s *Subscriber) Pipeline() *Pipeline {
	return s.pipeline
}

// Connected reports the current broker connectivity state.
func (s *Subscriber) Connected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.online
}

// Run consumes until the context is cancelled, recreating the reader with
// exponential backoff after every failure.
func (s *Subscriber) Run(ctx context.Context) {
	log := logger.WithSource(s.pipeline.Name())
	backoff := s.cfg.MinBackoff

	for {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     s.cfg.Brokers,
			GroupID:     s.cfg.GroupID,
			GroupTopics: s.topics(),
			MaxWait:     time.Second,
		})

		n, err := s.consume(ctx, reader)
		if cerr := reader.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("reader close error")
		}

		if ctx.Err() != nil {
			log.Info().Msg("bus subscriber stopped")
			return
		}

		s.markOffline()
		metrics.BrokerReconnects.Inc()

		if n > 0 {
			// The connection was healthy before this failure; start over fast.
			backoff = s.cfg.MinBackoff
		}

		log.Warn().
			Err(err).
			Dur("backoff", backoff).
			Msg("broker connection lost, reconnecting")

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > s.cfg.MaxBackoff {
				backoff = s.cfg.MaxBackoff
			}
		case <-ctx.Done():
			log.Info().Msg("bus subscriber stopped")
			return
		}
	}
}

// consume reads messages until an error, returning how many were processed.
func (s *Subscriber) consume(ctx context.Context, reader *kafka.Reader) (int, error) {
	n := 0
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			return n, err
		}
		s.markOnline()
		s.handleMessage(msg.Topic, msg.Value)
		n++
	}
}

// handleMessage normalizes one payload and pushes the partial update through
// the pipeline. A malformed payload skips this field only; the adapter keeps
// consuming.
func (s *Subscriber) handleMessage(topic string, payload []byte) {
	log := logger.WithSource(s.pipeline.Name())

	kind, ok := s.cfg.Topics[topic]
	if !ok {
		log.Debug().Str("topic", topic).Msg("message on unmapped topic ignored")
		return
	}

	reading, err := models.Normalize(kind, payload, time.Now().UTC())
	if err != nil {
		metrics.ReadingsTotal.WithLabelValues(s.pipeline.Name(), string(kind), "malformed").Inc()
		log.Warn().
			Err(err).
			Str("topic", topic).
			Str("kind", string(kind)).
			Msg("malformed payload skipped")
		return
	}
	metrics.ReadingsTotal.WithLabelValues(s.pipeline.Name(), string(kind), "accepted").Inc()

	s.mu.Lock()
	s.running[kind] = reading
	doc := s.running.Clone()
	s.mu.Unlock()

	s.pipeline.PublishReading(doc, reading)
}

// markOnline notifies the sink only when connectivity is regained.
func (s *Subscriber) markOnline() {
	s.connMu.Lock()
	changed := !s.online
	s.online = true
	s.connMu.Unlock()

	if changed && s.conn != nil {
		s.conn.Online()
	}
}

// markOffline notifies the sink on every failed cycle, including a broker that
// was never reachable. Rate limiting is the cooldown gate's job, not ours.
func (s *Subscriber) markOffline() {
	s.connMu.Lock()
	s.online = false
	s.connMu.Unlock()

	if s.conn != nil {
		s.conn.Offline()
	}
}

func (s *Subscriber) topics() []string {
	topics := make([]string, 0, len(s.cfg.Topics))
	for t := range s.cfg.Topics {
		topics = append(topics, t)
	}
	return topics
}
