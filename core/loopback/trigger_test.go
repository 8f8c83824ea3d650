package loopback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTriggerFiresWithoutBlocking(t *testing.T) {
	tokens := newTestTokenStore(t)

	received := make(chan deactivateRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != NoPrivPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "ambient-key" {
			t.Errorf("missing ambient credentials")
		}
		var req deactivateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- req
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	trigger := NewTrigger(srv.URL, tokens, "ambient-key")
	statuses := make(chan string, 1)
	trigger.Delivery = func(status string) { statuses <- status }

	trigger.Fire(context.Background(), "x/x.php")

	select {
	case req := <-received:
		if req.Identifier != "x/x.php" {
			t.Fatalf("unexpected identifier: %s", req.Identifier)
		}
		if !tokens.Consume(context.Background(), DeactivateScope("x/x.php"), req.Token) {
			t.Fatalf("delivered token should be valid once")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("trigger never delivered")
	}
	if status := <-statuses; status != "sent" {
		t.Fatalf("unexpected delivery status: %s", status)
	}
}

func TestTriggerDropsDeliveryFailures(t *testing.T) {
	tokens := newTestTokenStore(t)

	// Nothing listens on this port; delivery must fail silently.
	trigger := NewTrigger("http://127.0.0.1:1", tokens, "")
	statuses := make(chan string, 1)
	trigger.Delivery = func(status string) { statuses <- status }

	done := make(chan struct{})
	go func() {
		trigger.Fire(context.Background(), "x/x.php")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Fire blocked on delivery")
	}
	select {
	case status := <-statuses:
		if status != "dropped" {
			t.Fatalf("unexpected status: %s", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no delivery status reported")
	}
}
