package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/metrics"
)

// Sink receives batches of events from a Collector.
type Sink interface {
	Deliver(ctx context.Context, events []Envelope) error
}

// Collector buffers events and delivers them to a Sink in batches from a
// background goroutine. Track never blocks; events are dropped when the
// buffer is full.
type Collector struct {
	sink          Sink
	eventCh       chan Envelope
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
	done          chan struct{}
	closeOnce     sync.Once
}

func NewCollector(sink Sink, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		sink:          sink,
		eventCh:       make(chan Envelope, bufferSize),
		batchSize:     100,
		flushInterval: time.Second,
		metrics:       m,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the delivery loop. It stops when Close is called or ctx
// is cancelled, delivering whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		batch := make([]Envelope, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.deliver(batch)
					return
				}
				batch = append(batch, event)
				if len(batch) >= c.batchSize {
					c.deliver(batch)
					batch = make([]Envelope, 0, c.batchSize)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					c.deliver(batch)
					batch = make([]Envelope, 0, c.batchSize)
				}
			case <-ctx.Done():
				c.deliver(c.drain(batch))
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(event Envelope) {
	select {
	case c.eventCh <- event:
	default:
		c.metrics.IncAnalyticsDropped()
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.Type)
	}
}

// Close stops accepting events and waits for buffered ones to be delivered.
// Track must not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		close(c.eventCh)
	})
	<-c.done
}

func (c *Collector) drain(batch []Envelope) []Envelope {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) deliver(batch []Envelope) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.sink.Deliver(ctx, batch); err != nil {
		c.logger.Error("failed to deliver analytics events", "count", len(batch), "error", err)
	}
}
