package loopback

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/extpin/extpin/core/infra/logging"
)

// DeactivatePath is the authenticated-session endpoint route; NoPrivPath is
// the variant reachable without an open session (the loopback call is itself
// a new, short-lived request).
const (
	DeactivatePath = "/v1/extensions/deactivate"
	NoPrivPath     = "/v1/extensions/deactivate/nopriv"
)

// triggerTimeout keeps the shutdown phase from ever waiting on the loopback
// call.
const triggerTimeout = 45 * time.Millisecond

// deactivateRequest is the loopback call payload.
type deactivateRequest struct {
	Identifier string `json:"identifier"`
	Token      string `json:"token"`
}

// Trigger issues fire-and-forget deactivation calls to the loopback
// endpoint. Failures are dropped: at-most-one delivery attempt, no retries,
// nothing surfaced to the caller.
type Trigger struct {
	baseURL string
	tokens  *TokenStore
	// apiKey carries the current session's ambient credentials so the
	// loopback call is attributed to the same caller.
	apiKey string
	client *http.Client
	// Delivery receives the delivery status ("sent" or "dropped"). Optional.
	Delivery func(status string)
}

// NewTrigger constructs a trigger against a loopback base URL.
func NewTrigger(baseURL string, tokens *TokenStore, apiKey string) *Trigger {
	return &Trigger{
		baseURL: baseURL,
		tokens:  tokens,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: triggerTimeout},
	}
}

// Fire requests out-of-band deactivation of one identifier. The token is
// issued synchronously; the HTTP call happens in a goroutine and the caller
// never waits on it.
func (t *Trigger) Fire(ctx context.Context, id string) {
	token, err := t.tokens.Issue(ctx, DeactivateScope(id))
	if err != nil {
		logging.Error("trigger", "issue token", "extension", id, "error", err)
		t.report("dropped")
		return
	}

	body, err := json.Marshal(deactivateRequest{Identifier: id, Token: token})
	if err != nil {
		t.report("dropped")
		return
	}

	go func() {
		req, err := http.NewRequest(http.MethodPost, t.baseURL+NoPrivPath, bytes.NewReader(body))
		if err != nil {
			t.report("dropped")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if t.apiKey != "" {
			req.Header.Set("X-API-Key", t.apiKey)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			// Best effort only; the next reconciliation cycle may try again.
			logging.Debug("trigger", "delivery failed", "extension", id, "error", err)
			t.report("dropped")
			return
		}
		resp.Body.Close()
		t.report("sent")
	}()
}

func (t *Trigger) report(status string) {
	if t.Delivery != nil {
		t.Delivery(status)
	}
}
