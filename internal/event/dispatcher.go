package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDispatchTimeout bounds one fan-out over all sinks.
const DefaultDispatchTimeout = 5 * time.Second

// Dispatcher fans events out to sinks in the background. Delivery is best
// effort: sink errors are logged and dropped.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A non-positive timeout uses
// DefaultDispatchTimeout.
func NewDispatcher(logger *zap.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Dispatcher{sinks: sinks, timeout: timeout, logger: logger}
}

// Dispatch hands e to every sink without blocking the caller.
// A nil Dispatcher drops the event.
func (d *Dispatcher) Dispatch(e Event) {
	if d == nil || len(d.sinks) == 0 {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("dispatcher closed, event dropped", zap.String("type", e.Type), zap.String("key", e.Key))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		for _, sink := range d.sinks {
			if err := sink.Publish(ctx, e); err != nil {
				d.logger.Warn("event delivery failed",
					zap.String("type", e.Type),
					zap.String("key", e.Key),
					zap.Error(err),
				)
			}
		}
	}()
}

// Close stops accepting events and waits for in-flight dispatches.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
