// Package kafka relays order lifecycle events from the in-process bus to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/ecomarket/internal/domain/outbox"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	kafkaPeer       = "kafka"
	headerEventName = "event-name"
)

// Message is the JSON value written for every relayed event.
type Message struct {
	Event string         `json:"event"`
	Data  order.Snapshot `json:"data"`
}

type Relay struct {
	producer sarama.SyncProducer
	topic    string
	log      observability.Logger
	calls    observability.Counter
	duration observability.Histogram
}

// NewProducerConfig is the sync producer configuration used for the relay.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "ecomarket"
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return cfg
}

func NewRelay(brokers []string, topic string, tel observability.Observability) (*Relay, error) {
	p, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return NewRelayWithProducer(p, topic, tel), nil
}

func NewRelayWithProducer(p sarama.SyncProducer, topic string, tel observability.Observability) *Relay {
	tel = observability.Or(tel)
	return &Relay{
		producer: p,
		topic:    topic,
		log:      tel.Logger().With(observability.F("component", "kafka_relay"), observability.F("topic", topic)),
		calls:    tel.Metrics().Counter(observability.MExternalRequests),
		duration: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Subscribe registers the relay for every order lifecycle event.
func (r *Relay) Subscribe(bus domoutbox.Subscriber, wrap func(domoutbox.Handler) domoutbox.Handler) {
	domoutbox.SubscribeAll(bus, r.Handle, wrap, order.LifecycleEvents...)
}

// Handle writes e to the topic keyed by order id so one order's events stay in one partition.
func (r *Relay) Handle(ctx context.Context, e domoutbox.Event) error {
	snap, ok := snapshotOf(e)
	if !ok {
		return nil
	}
	value, err := json.Marshal(Message{Event: e.EventName(), Data: snap})
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", e.EventName(), err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]sarama.RecordHeader, 0, len(carrier)+1)
	headers = append(headers, sarama.RecordHeader{Key: []byte(headerEventName), Value: []byte(e.EventName())})
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   r.topic,
		Key:     sarama.StringEncoder(snap.OrderID),
		Value:   sarama.ByteEncoder(value),
		Headers: headers,
	}

	start := time.Now()
	partition, offset, err := r.producer.SendMessage(msg)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.calls.Add(1, observability.L("peer", kafkaPeer), observability.L("endpoint", e.EventName()), observability.L("outcome", outcome))
	r.duration.Observe(time.Since(start).Seconds(), observability.L("peer", kafkaPeer), observability.L("endpoint", e.EventName()))
	if err != nil {
		return fmt.Errorf("kafka: send %s: %w", e.EventName(), err)
	}

	logctx.FromOr(ctx, r.log).Debug("event_relayed",
		observability.F("order_id", snap.OrderID),
		observability.F("partition", partition),
		observability.F("offset", offset),
	)
	return nil
}

func (r *Relay) Close() error {
	return r.producer.Close()
}

func snapshotOf(e domoutbox.Event) (order.Snapshot, bool) {
	switch ev := e.(type) {
	case order.CreatedEvent:
		return ev.Snapshot, true
	case order.CompletedEvent:
		return ev.Snapshot, true
	case order.CancelledEvent:
		return ev.Snapshot, true
	case order.FailedEvent:
		return ev.Snapshot, true
	}
	return order.Snapshot{}, false
}
