// README: Dispatcher fans events out to topics while keeping per-order
// publish order equal to apply order.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"waypoint/internal/metrics"
	"waypoint/internal/types"
)

const (
	// maxPending bounds the per-order queue; beyond it events are dropped
	// with an error log rather than blocking the apply path. Under sustained
	// overload this gives up once-per-event delivery for that order; the
	// apply path stays non-blocking and surviving events still publish in
	// apply order.
	maxPending     = 1024
	publishTimeout = 5 * time.Second
)

type envelope struct {
	topics  []string
	event   string
	payload any
}

// Dispatcher serializes publishes per order through a lazily started drain
// goroutine per active order, so events for one order reach the transport in
// the order they were applied, while different orders publish in parallel.
// Transport failures are logged and swallowed: a committed state change is
// never rolled back because a notification could not be delivered.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[types.ID][]envelope
	running map[types.ID]bool
	closed  bool
	wg      sync.WaitGroup
}

func NewDispatcher(notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		logger:   logger.With("component", "dispatcher"),
		pending:  make(map[types.ID][]envelope),
		running:  make(map[types.ID]bool),
	}
}

// Publish enqueues one event for the given topics. It never blocks on the
// transport.
func (d *Dispatcher) Publish(orderID types.ID, topics []string, event string, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("dispatcher closed, dropping event", "order_id", orderID, "event", event)
		return
	}
	if len(d.pending[orderID]) >= maxPending {
		metrics.NotifyFailuresTotal.Inc()
		d.logger.Error("per-order queue full, dropping event", "order_id", orderID, "event", event)
		return
	}
	d.pending[orderID] = append(d.pending[orderID], envelope{topics: topics, event: event, payload: payload})
	if !d.running[orderID] {
		d.running[orderID] = true
		d.wg.Add(1)
		go d.drain(orderID)
	}
}

func (d *Dispatcher) drain(orderID types.ID) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		batch := d.pending[orderID]
		if len(batch) == 0 {
			delete(d.pending, orderID)
			delete(d.running, orderID)
			d.mu.Unlock()
			return
		}
		d.pending[orderID] = nil
		d.mu.Unlock()

		for _, e := range batch {
			for _, topic := range e.topics {
				ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
				err := d.notifier.Publish(ctx, topic, e.event, e.payload)
				cancel()
				if err != nil {
					metrics.NotifyFailuresTotal.Inc()
					d.logger.Error("publish failed",
						"order_id", orderID, "topic", topic, "event", e.event, "error", err)
				}
			}
		}
	}
}

// Close stops accepting events and waits for in-flight publishes.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
