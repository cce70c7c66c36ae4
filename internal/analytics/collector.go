package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
)

// Publisher sends events to a topic. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

const maxBatch = 100

// Collector buffers events and publishes them from a single goroutine so
// Track never waits on Kafka. Events already queued are published together,
// up to maxBatch per call. Events arriving while the buffer is full are
// dropped.
type Collector struct {
	producer Publisher
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, c.batch(event))
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the buffered ones to be
// published. Track must not be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), c.batch(event))
		default:
			return
		}
	}
}

// batch starts a batch with first and adds whatever is already queued.
func (c *Collector) batch(first any) []kafka.Event {
	events := []kafka.Event{{Key: eventKey(first), Value: first}}
	for len(events) < maxBatch {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return events
			}
			events = append(events, kafka.Event{Key: eventKey(event), Value: event})
		default:
			return events
		}
	}
	return events
}

func (c *Collector) publish(ctx context.Context, events []kafka.Event) {
	if err := c.producer.Publish(ctx, events...); err != nil {
		c.logger.Error("failed to publish analytics events", "events", len(events), "error", err)
	}
}

// eventKey partitions events by index so each index's events stay ordered.
func eventKey(event any) string {
	switch e := event.(type) {
	case QueryEvent:
		return e.Index
	case BatchEvent:
		return e.Index
	default:
		return "analytics"
	}
}
