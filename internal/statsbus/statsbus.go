// Package statsbus republishes collab.Probe samples onto a watermill
// message bus for external consumption, guarded by a circuit breaker so a
// stalled broker cannot stall the simulation loop the probes are attached
// to. Each publish runs on its own goroutine, never inside the probe
// sink that received the sample, so a slow bus never delays the tick
// that emitted it or the scheduler.
package statsbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/event"
	"github.com/sony/gobreaker"
)

// Sample is the wire shape published for every probe emission.
type Sample struct {
	Probe string    `json:"probe"`
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// Bus republishes named probe samples onto pub, one topic per probe name,
// with every Publish call routed through a breaker so a broken or
// overloaded broker degrades to dropped samples rather than blocked
// ticks.
type Bus struct {
	pub     message.Publisher
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New wraps pub in a circuit breaker named "statsbus".
func New(pub message.Publisher, logger *slog.Logger) *Bus {
	settings := gobreaker.Settings{
		Name:    "statsbus",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &Bus{
		pub:     pub,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// NewInMemoryPublisher returns a watermill publisher backed by an
// in-process channel, suitable for a demo run with no external broker.
// It is also a message.Subscriber, returned so a caller can fan the same
// topic out to internal/livetap or internal/dashboard.
func NewInMemoryPublisher(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, logger)
}

// NewAMQPPublisher upgrades the bus to a real broker at amqpURI, one
// durable queue per topic.
func NewAMQPPublisher(amqpURI string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(amqpURI, amqp.GenerateQueueNameTopicNameWithSuffix("statsbus"))
	pub, err := amqp.NewPublisher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("statsbus: amqp publisher: %w", err)
	}
	return pub, nil
}

func topicFor(probeName string) string { return "quartz.stats." + probeName }

// Attach connects a sink to probe that publishes every sample under name
// onto the bus. The returned detach func disconnects the sink; it does
// not close the underlying publisher.
func (b *Bus) Attach(name string, probe *collab.Probe) (detach func(), err error) {
	cookie, err := probe.Connect(func(value float64) event.Void {
		go b.publish(name, value)
		return event.Void{}
	})
	if err != nil {
		return nil, fmt.Errorf("statsbus: attach %s: %w", name, err)
	}
	return func() { probe.Disconnect(cookie) }, nil
}

func (b *Bus) publish(name string, value float64) {
	_, err := b.breaker.Execute(func() (any, error) {
		payload, err := json.Marshal(Sample{Probe: name, Value: value, At: time.Now()})
		if err != nil {
			return nil, err
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		return nil, b.pub.Publish(topicFor(name), msg)
	})
	if err != nil && b.logger != nil {
		b.logger.Warn("statsbus: publish dropped", "probe", name, "err", err)
	}
}
