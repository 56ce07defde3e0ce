package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Producer publishes checkout events to Kafka through a buffered inbox so
// publishing never blocks a checkout request. A nil *Producer is a valid
// no-op publisher; main passes nil when no brokers are configured.
type Producer struct {
	w       *kafka.Writer
	log     *slog.Logger
	service string
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic, service string, buf int, log *slog.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		log:     log,
		service: service,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	if p == nil {
		return
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(p.inbox)
				for m := range p.inbox {
					p.write(m)
				}
				_ = p.w.Close()
				close(p.closeCh)
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					close(p.closeCh)
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("event publish failed", "topic", p.w.Topic, "error", err)
	}
}

// Emit wraps the payload in an envelope and queues it. Best effort: a full
// inbox drops the event with a log line rather than stalling checkout.
func (p *Producer) Emit(eventType, correlationID string, payload any) {
	if p == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("event payload marshal failed", "type", eventType, "error", err)
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.service,
		CorrelationID: correlationID,
		Payload:       raw,
	}
	val, err := json.Marshal(env)
	if err != nil {
		p.log.Error("event envelope marshal failed", "type", eventType, "error", err)
		return
	}
	msg := kafka.Message{Key: []byte(correlationID), Value: val, Time: time.Now()}
	select {
	case p.inbox <- msg:
	default:
		p.log.Warn("event inbox full, dropping event", "type", eventType)
	}
}

// Close stops the publish loop after flushing queued messages.
func (p *Producer) Close() {
	if p == nil {
		return
	}
	close(p.inbox)
	<-p.closeCh
}
