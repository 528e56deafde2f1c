package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/store"
	"github.com/olegiv/shopsync-go/internal/testutil"
)

func TestGenerateSignature(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		secret  string
	}{
		{"empty payload", []byte{}, "secret"},
		{"simple payload", []byte(`{"event":"test"}`), "mysecret"},
		{"unicode payload", []byte(`{"title":"Тест","content":"日本語"}`), "unicode-secret"},
		{"empty secret", []byte(`test`), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSignature(tt.payload, tt.secret)
			if len(result) != 64 {
				t.Errorf("GenerateSignature() length = %d, want 64", len(result))
			}
			if result != GenerateSignature(tt.payload, tt.secret) {
				t.Error("GenerateSignature() not deterministic")
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"type":"product.updated","data":{"product_id":200}}`)
	secret := "mysecret"
	signature := GenerateSignature(payload, secret)

	if !VerifySignature(payload, signature, secret) {
		t.Error("VerifySignature() = false for a valid signature")
	}
	if VerifySignature(payload, signature, "wrong-secret") {
		t.Error("VerifySignature() = true with wrong secret")
	}
	if VerifySignature(payload, "", secret) {
		t.Error("VerifySignature() = true for empty signature")
	}
	if VerifySignature([]byte(`tampered`), signature, secret) {
		t.Error("VerifySignature() = true for tampered payload")
	}
}

func TestEventKey(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
		want  string
	}{
		{
			name:  "product event keyed by shop and product",
			event: NewEvent(EventProductUpdated, ProductEventData{ShopTLD: "de", ProductID: 200}),
			want:  "product.updated:de:200",
		},
		{
			name:  "pointer data",
			event: NewEvent(EventProductCreated, &ProductEventData{ShopTLD: "fr", ProductID: 7}),
			want:  "product.created:fr:7",
		},
		{
			name:  "sync event keyed by shop",
			event: NewEvent(EventSyncCompleted, SyncEventData{ShopTLD: "de"}),
			want:  "sync.completed:de",
		},
		{
			name:  "unknown data keyed by type only",
			event: NewEvent(EventTest, TestEventData{Message: "hi"}),
			want:  "webhook.test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventKey(tt.event); got != tt.want {
				t.Errorf("eventKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// received records one webhook request the test endpoint saw.
type received struct {
	signature string
	event     string
	body      []byte
}

func newDispatcherFixture(t *testing.T) (*Dispatcher, *store.Queries, *sql.DB) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	d := NewDispatcher(db, testutil.TestLoggerSilent(), Config{Workers: 1, SweepInterval: 10 * time.Millisecond})
	d.Start(context.Background())
	t.Cleanup(d.Stop)
	return d, store.New(db), db
}

func TestDispatch_DeliversSignedPayload(t *testing.T) {
	d, queries, db := newDispatcherFixture(t)

	var mu sync.Mutex
	var got []received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, received{
			signature: r.Header.Get("X-Webhook-Signature"),
			event:     r.Header.Get("X-Webhook-Event"),
			body:      body,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh, err := queries.CreateWebhook(context.Background(), store.CreateWebhookParams{
		Name:   "test endpoint",
		URL:    srv.URL,
		Secret: "s3cret",
		Events: `["product.updated","sync.completed"]`,
	})
	if err != nil {
		t.Fatalf("CreateWebhook() error = %v", err)
	}

	err = d.DispatchEvent(context.Background(), EventProductUpdated, ProductEventData{
		ShopTLD: "de", ProductID: 200, Changes: []string{"Content updated: title"},
	})
	if err != nil {
		t.Fatalf("DispatchEvent() error = %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("webhook endpoint never received the delivery")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].event != EventProductUpdated {
		t.Errorf("X-Webhook-Event = %q, want %q", got[0].event, EventProductUpdated)
	}
	if !VerifySignature(got[0].body, got[0].signature, "s3cret") {
		t.Error("delivered payload signature does not verify")
	}

	var event Event
	if err := json.Unmarshal(got[0].body, &event); err != nil {
		t.Fatalf("unmarshal delivered payload: %v", err)
	}
	if event.Type != EventProductUpdated {
		t.Errorf("payload type = %q, want %q", event.Type, EventProductUpdated)
	}

	// Delivery record settles as delivered.
	waitForStatus(t, db, wh.ID, "delivered")
}

func TestDispatch_SkipsUnsubscribedEvents(t *testing.T) {
	d, queries, _ := newDispatcherFixture(t)

	_, err := queries.CreateWebhook(context.Background(), store.CreateWebhookParams{
		Name:   "sync only",
		URL:    "http://example.invalid/hook",
		Secret: "x",
		Events: `["sync.completed"]`,
	})
	if err != nil {
		t.Fatalf("CreateWebhook() error = %v", err)
	}

	if err := d.DispatchEvent(context.Background(), EventProductCreated, ProductEventData{ShopTLD: "de", ProductID: 1}); err != nil {
		t.Fatalf("DispatchEvent() error = %v", err)
	}

	rows, err := queries.ListDueDeliveries(context.Background(), time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ListDueDeliveries() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d deliveries for an unsubscribed event, want 0", len(rows))
	}
}

func TestDispatch_ClientErrorMarkedDead(t *testing.T) {
	d, queries, db := newDispatcherFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	wh, err := queries.CreateWebhook(context.Background(), store.CreateWebhookParams{
		Name:   "gone endpoint",
		URL:    srv.URL,
		Secret: "x",
		Events: `["product.updated"]`,
	})
	if err != nil {
		t.Fatalf("CreateWebhook() error = %v", err)
	}

	if err := d.DispatchEvent(context.Background(), EventProductUpdated, ProductEventData{ShopTLD: "de", ProductID: 2}); err != nil {
		t.Fatalf("DispatchEvent() error = %v", err)
	}

	// 404 is final: one attempt, no retries.
	waitForStatus(t, db, wh.ID, "dead")
}

func waitForStatus(t *testing.T, db *sql.DB, webhookID int64, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	var status string
	for {
		err := db.QueryRowContext(context.Background(),
			`SELECT status FROM webhook_deliveries WHERE webhook_id = ? ORDER BY id DESC LIMIT 1`,
			webhookID).Scan(&status)
		if err == nil && status == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("delivery status = %q, want %q", status, want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDebouncer_CoalescesRapidUpdates(t *testing.T) {
	d, queries, _ := newDispatcherFixture(t)

	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := queries.CreateWebhook(context.Background(), store.CreateWebhookParams{
		Name:   "debounced",
		URL:    srv.URL,
		Secret: "x",
		Events: `["product.updated"]`,
	})
	if err != nil {
		t.Fatalf("CreateWebhook() error = %v", err)
	}

	deb := NewDebouncer(d, DebounceConfig{Interval: 50 * time.Millisecond, MaxWait: time.Second})
	for i := 0; i < 5; i++ {
		err := deb.DispatchEvent(context.Background(), EventProductUpdated, ProductEventData{ShopTLD: "de", ProductID: 200})
		if err != nil {
			t.Fatalf("DispatchEvent() error = %v", err)
		}
	}
	if deb.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1 (same entity coalesces)", deb.PendingCount())
	}
	deb.Stop()

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := hits
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("debounced event never delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("endpoint hit %d times, want 1", hits)
	}
}

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"empty", "", true},
		{"ftp scheme", "ftp://example.com/hook", true},
		{"no hostname", "http://", true},
		{"localhost", "http://localhost/hook", true},
		{"loopback IP", "http://127.0.0.1:8080/hook", true},
		{"private IP", "http://10.0.0.5/hook", true},
		{"link-local metadata", "http://169.254.169.254/latest/meta-data", true},
		{"cloud metadata hostname", "http://metadata.google.internal/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpointURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

var _ interface {
	SyncCompleted(model.Shop, model.SyncMetrics)
} = (*Dispatcher)(nil)
