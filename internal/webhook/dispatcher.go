package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/store"
)

// Dispatcher fans events out to subscribed endpoints through a bounded
// queue of delivery workers. Failed deliveries are retried by a periodic
// sweep over the delivery table.
type Dispatcher struct {
	db      *sql.DB
	queries *store.Queries
	logger  *slog.Logger
	queue   chan *QueuedDelivery
	workers int
	sweep   time.Duration
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// QueuedDelivery is one delivery handed to a worker.
type QueuedDelivery struct {
	DeliveryID int64
	WebhookID  int64
	Event      string
	Payload    []byte
	URL        string
	Secret     string
	Headers    map[string]string
}

// Config holds dispatcher configuration.
type Config struct {
	Workers       int           // concurrent delivery workers
	SweepInterval time.Duration // how often to re-queue due retries
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:       3,
		SweepInterval: time.Minute,
	}
}

// NewDispatcher creates a dispatcher. Start must be called before events
// are delivered.
func NewDispatcher(db *sql.DB, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		db:      db,
		queries: store.New(db),
		logger:  logger,
		queue:   make(chan *QueuedDelivery, 100),
		workers: cfg.Workers,
		sweep:   cfg.SweepInterval,
		done:    make(chan struct{}),
	}
}

// Start launches the delivery workers and the retry sweep.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.workers)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.wg.Add(1)
	go d.retrySweep(ctx)
}

// Stop stops the dispatcher and waits for in-flight deliveries to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case delivery := <-d.queue:
			d.processDelivery(ctx, delivery)
		}
	}
}

// retrySweep re-queues pending deliveries whose retry time has passed.
// It also picks up deliveries that were created while the queue was full.
func (d *Dispatcher) retrySweep(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := d.queries.ListDueDeliveries(ctx, time.Now(), 50)
			if err != nil {
				d.logger.Error("listing due deliveries failed", "error", err)
				continue
			}
			for _, rec := range due {
				qd, err := d.queuedFromRecord(ctx, rec)
				if err != nil {
					d.logger.Error("loading webhook for retry failed",
						"delivery_id", rec.ID, "error", err)
					continue
				}
				select {
				case d.queue <- qd:
				default:
					// Queue full, the next sweep picks it up.
				}
			}
		}
	}
}

func (d *Dispatcher) queuedFromRecord(ctx context.Context, rec store.WebhookDelivery) (*QueuedDelivery, error) {
	wh, err := d.queries.GetWebhook(ctx, rec.WebhookID)
	if err != nil {
		return nil, err
	}
	return &QueuedDelivery{
		DeliveryID: rec.ID,
		WebhookID:  wh.ID,
		Event:      rec.Event,
		Payload:    []byte(rec.Payload),
		URL:        wh.URL,
		Secret:     wh.Secret,
		Headers:    parseHeaders(wh.Headers),
	}, nil
}

// RegisterEndpoint validates and stores a notification endpoint.
func (d *Dispatcher) RegisterEndpoint(ctx context.Context, name, url, secret string, events []string) (store.Webhook, error) {
	if err := ValidateEndpointURL(url); err != nil {
		return store.Webhook{}, err
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return store.Webhook{}, err
	}
	return d.queries.CreateWebhook(ctx, store.CreateWebhookParams{
		Name:   name,
		URL:    url,
		Secret: secret,
		Events: string(eventsJSON),
	})
}

// Dispatch records and queues an event for every subscribed endpoint.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		d.logger.Warn("dispatcher not running, dropping event", "event_type", event.Type)
		return nil
	}

	webhooks, err := d.queries.ListWebhooksForEvent(ctx, event.Type)
	if err != nil {
		d.logger.Error("listing webhooks failed", "event_type", event.Type, "error", err)
		return err
	}
	if len(webhooks) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, wh := range webhooks {
		// The SQL match uses LIKE; re-check against the parsed list.
		if !subscribed(wh.Events, event.Type) {
			continue
		}

		deliveryID, err := d.queries.CreateWebhookDelivery(ctx, wh.ID, event.Type, string(payload))
		if err != nil {
			d.logger.Error("creating delivery record failed",
				"webhook_id", wh.ID, "event_type", event.Type, "error", err)
			continue
		}

		qd := &QueuedDelivery{
			DeliveryID: deliveryID,
			WebhookID:  wh.ID,
			Event:      event.Type,
			Payload:    payload,
			URL:        wh.URL,
			Secret:     wh.Secret,
			Headers:    parseHeaders(wh.Headers),
		}
		select {
		case d.queue <- qd:
		default:
			d.logger.Warn("delivery queue full, retry sweep will pick it up",
				"delivery_id", deliveryID)
		}
	}
	return nil
}

// DispatchEvent dispatches an event with the given type and data.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

// SyncCompleted dispatches a sync.completed event. Satisfies the catalog
// sync service's notifier.
func (d *Dispatcher) SyncCompleted(shop model.Shop, metrics model.SyncMetrics) {
	err := d.DispatchEvent(context.Background(), EventSyncCompleted, SyncEventData{
		ShopTLD: shop.TLD,
		Metrics: metrics,
	})
	if err != nil {
		d.logger.Error("dispatching sync.completed failed", "shop", shop.TLD, "error", err)
	}
}

// GenerateSignature computes the HMAC-SHA256 signature of a payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an HMAC-SHA256 signature in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func subscribed(eventsJSON, eventType string) bool {
	var events []string
	if err := json.Unmarshal([]byte(eventsJSON), &events); err != nil {
		return false
	}
	for _, e := range events {
		if e == eventType {
			return true
		}
	}
	return false
}

func parseHeaders(headersJSON string) map[string]string {
	headers := make(map[string]string)
	if headersJSON == "" || headersJSON == "{}" {
		return headers
	}
	_ = json.Unmarshal([]byte(headersJSON), &headers)
	return headers
}
