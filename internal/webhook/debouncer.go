package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DebounceConfig holds debouncer configuration.
type DebounceConfig struct {
	// Interval is the debounce window. Events for the same entity within
	// this window are coalesced into one delivery.
	Interval time.Duration
	// MaxWait caps how long dispatch can be deferred while events keep
	// arriving.
	MaxWait time.Duration
}

// DefaultDebounceConfig returns the default debounce configuration.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Interval: 1 * time.Second,
		MaxWait:  5 * time.Second,
	}
}

type pendingEvent struct {
	event     *Event
	timer     *time.Timer
	firstSeen time.Time
}

// Debouncer coalesces rapid-fire events into single deliveries. A product
// updated several times in quick succession produces one notification
// carrying the latest data.
type Debouncer struct {
	dispatcher *Dispatcher
	config     DebounceConfig
	pending    map[string]*pendingEvent
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewDebouncer creates an event debouncer in front of a dispatcher.
func NewDebouncer(dispatcher *Dispatcher, config DebounceConfig) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		dispatcher: dispatcher,
		config:     config,
		pending:    make(map[string]*pendingEvent),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// eventKey identifies the entity an event belongs to, so repeated events
// for the same entity coalesce.
func eventKey(event *Event) string {
	switch data := event.Data.(type) {
	case ProductEventData:
		return fmt.Sprintf("%s:%s:%d", event.Type, data.ShopTLD, data.ProductID)
	case *ProductEventData:
		return fmt.Sprintf("%s:%s:%d", event.Type, data.ShopTLD, data.ProductID)
	case SyncEventData:
		return event.Type + ":" + data.ShopTLD
	case *SyncEventData:
		return event.Type + ":" + data.ShopTLD
	default:
		return event.Type
	}
}

// Dispatch queues an event for debounced delivery. A pending event for the
// same entity is replaced with the newer data and its timer reset.
func (d *Debouncer) Dispatch(_ context.Context, event *Event) error {
	key := eventKey(event)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[key]; ok {
		existing.event = event
		if now.Sub(existing.firstSeen) >= d.config.MaxWait {
			d.dispatchLocked(key)
			return nil
		}
		existing.timer.Reset(d.config.Interval)
		return nil
	}

	pe := &pendingEvent{event: event, firstSeen: now}
	pe.timer = time.AfterFunc(d.config.Interval, func() {
		d.mu.Lock()
		d.dispatchLocked(key)
		d.mu.Unlock()
	})
	d.pending[key] = pe
	return nil
}

// dispatchLocked dispatches a pending event. Caller holds the lock.
func (d *Debouncer) dispatchLocked(key string) {
	pe, ok := d.pending[key]
	if !ok {
		return
	}
	pe.timer.Stop()
	delete(d.pending, key)

	d.wg.Add(1)
	go func(event *Event) {
		defer d.wg.Done()
		if err := d.dispatcher.Dispatch(d.ctx, event); err != nil {
			d.dispatcher.logger.Error("dispatching debounced event failed",
				"event_type", event.Type, "error", err)
		}
	}(pe.event)
}

// Flush immediately dispatches all pending events.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.pending {
		d.dispatchLocked(key)
	}
}

// Stop flushes pending events and waits for dispatches to finish.
func (d *Debouncer) Stop() {
	d.Flush()
	d.wg.Wait()
	d.cancel()
}

// PendingCount returns the number of pending events.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// DispatchEvent dispatches an event with the given type and data.
func (d *Debouncer) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}
