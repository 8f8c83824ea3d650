package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"

	"github.com/extpin/extpin/core/activeview"
	"github.com/extpin/extpin/core/extension"
	"github.com/extpin/extpin/core/hooks"
	"github.com/extpin/extpin/core/loopback"
	"github.com/extpin/extpin/core/permgate"
	"github.com/extpin/extpin/core/presentation"
	"github.com/extpin/extpin/core/promoter"
	"github.com/extpin/extpin/core/store"
)

type testDaemon struct {
	srv     *httptest.Server
	server  *server
	tokens  *loopback.TokenStore
	scoped  *store.Scoped
	apiKey  string
	headers http.Header
}

func writeExtensionFile(t *testing.T, root, id string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(id))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte("<?php\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// newTestDaemon builds the daemon's HTTP surface with a/a.php installed and
// b/b.php installed and promoted.
func newTestDaemon(t *testing.T, apiKey string) *testDaemon {
	t.Helper()
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(mr.Close)

	nodeStore, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	clusterStore, err := store.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	scoped := store.NewScoped(nodeStore, clusterStore)
	t.Cleanup(func() { scoped.Close() })

	root := t.TempDir()
	writeExtensionFile(t, root, "a/a.php")
	writeExtensionFile(t, root, "b/b.php")

	s := newServer()
	s.scoped = scoped

	loader := extension.NewDirLoader(root, hooks.Notifiers{s.streamNotifier()})
	extHooks := extension.NewScriptHooks(root)
	tokens := loopback.NewTokenStore(clusterStore.Client(), 0)

	prom := promoter.New(promoter.Options{
		Loader: loader,
		Hooks:  extHooks,
		Cache:  promoter.NewCacheStore(scoped.For(store.ScopeNode), ""),
		Native: promoter.NewStoreNative(scoped),
	})
	if err := prom.Promote(ctx, "b/b.php"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	prom.RunPending(ctx)

	filter := activeview.New(prom.Promoted)
	filter.Install(s.lists, s.maps)
	gate := permgate.New(prom.Promoted)
	gate.Install(s.caps)

	s.loader = loader
	s.prom = prom
	s.native = promoter.NewStoreNative(scoped)
	go s.broadcast()

	endpoint := loopback.NewEndpoint(tokens, loader, extHooks)
	srv := httptest.NewServer(s.routes(endpoint, apiKey))
	t.Cleanup(srv.Close)

	headers := http.Header{}
	if apiKey != "" {
		headers.Set("X-API-Key", apiKey)
	}
	return &testDaemon{srv: srv, server: s, tokens: tokens, scoped: scoped, apiKey: apiKey, headers: headers}
}

func (d *testDaemon) get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, d.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header = d.headers.Clone()
	resp, err := d.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	d := newTestDaemon(t, "")
	resp := d.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestRowsEndpoint(t *testing.T) {
	d := newTestDaemon(t, "")
	if err := d.scoped.For(store.ScopeNode).PutList(context.Background(), store.KeyActive, []string{"a/a.php"}); err != nil {
		t.Fatalf("seed active: %v", err)
	}

	resp := d.get(t, "/v1/extensions")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	rows := decodeBody[[]presentation.Row](t, resp)
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}

	a, b := rows[0], rows[1]
	if a.Identifier != "a/a.php" || !a.Active || a.Promoted || len(a.Actions) == 0 {
		t.Fatalf("native row = %+v", a)
	}
	if b.Identifier != "b/b.php" || !b.Promoted || !b.Active || len(b.Actions) != 0 {
		t.Fatalf("promoted row = %+v", b)
	}
	if len(b.Badges) != 1 || b.Badges[0] != presentation.MustUseBadge {
		t.Fatalf("promoted badges = %v", b.Badges)
	}
}

func TestActiveViewExcludesPromoted(t *testing.T) {
	d := newTestDaemon(t, "")
	ctx := context.Background()
	if err := d.scoped.For(store.ScopeNode).PutList(ctx, store.KeyActive, []string{"a/a.php", "b/b.php"}); err != nil {
		t.Fatalf("seed active: %v", err)
	}
	if err := d.scoped.For(store.ScopeCluster).PutMap(ctx, store.KeyActiveNetwork, map[string]int64{"a/a.php": 100, "b/b.php": 200}); err != nil {
		t.Fatalf("seed network: %v", err)
	}

	list := decodeBody[[]string](t, d.get(t, "/v1/extensions/active"))
	if len(list) != 1 || list[0] != "a/a.php" {
		t.Fatalf("active view = %v, want [a/a.php]", list)
	}

	network := decodeBody[map[string]int64](t, d.get(t, "/v1/extensions/active/network"))
	if len(network) != 1 || network["a/a.php"] != 100 {
		t.Fatalf("network view = %v, want {a/a.php:100}", network)
	}
}

func TestCapabilitiesDenyPromotedTarget(t *testing.T) {
	d := newTestDaemon(t, "")

	resp := d.get(t, "/v1/capabilities?op=deactivate&target=b/b.php&cap=manage_extensions")
	body := decodeBody[map[string][]string](t, resp)
	caps := body["capabilities"]
	if len(caps) != 2 || caps[0] != "manage_extensions" || caps[1] != permgate.Denied {
		t.Fatalf("capabilities = %v, want denial appended", caps)
	}

	resp = d.get(t, "/v1/capabilities?op=deactivate&target=a/a.php&cap=manage_extensions")
	body = decodeBody[map[string][]string](t, resp)
	if caps := body["capabilities"]; len(caps) != 1 || caps[0] != "manage_extensions" {
		t.Fatalf("capabilities = %v, want untouched", caps)
	}
}

func TestPromotedEndpoint(t *testing.T) {
	d := newTestDaemon(t, "")
	resp := d.get(t, "/v1/extensions/promoted")
	body := decodeBody[map[string][]string](t, resp)
	if got := body["promoted"]; len(got) != 1 || got[0] != "b/b.php" {
		t.Fatalf("promoted = %v", got)
	}
}

func TestAPIKeyGuardsAdminRoutes(t *testing.T) {
	d := newTestDaemon(t, "secret")

	resp, err := http.Get(d.srv.URL + "/v1/extensions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", resp.StatusCode)
	}

	resp = d.get(t, "/v1/extensions")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", resp.StatusCode)
	}

	// Health stays open for probes.
	resp, err = http.Get(d.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestLoopbackDeactivationViaRoutes(t *testing.T) {
	d := newTestDaemon(t, "")
	ctx := context.Background()

	token, err := d.tokens.Issue(ctx, loopback.DeactivateScope("a/a.php"))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	body := strings.NewReader(`{"identifier":"a/a.php","token":"` + token + `"}`)
	resp, err := http.Post(d.srv.URL+loopback.NoPrivPath, "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	result := decodeBody[map[string]string](t, resp)
	if resp.StatusCode != http.StatusOK || result["status"] != loopback.StatusDone {
		t.Fatalf("status = %d body = %v", resp.StatusCode, result)
	}
}

func TestEventStream(t *testing.T) {
	d := newTestDaemon(t, "")

	wsURL := "ws" + strings.TrimPrefix(d.srv.URL, "http") + "/v1/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Let the handler register the client before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		d.server.clientsMu.RLock()
		n := len(d.server.clients)
		d.server.clientsMu.RUnlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	notify := d.server.streamNotifier()
	if err := notify.Notify(context.Background(), hooks.Event{
		ID:        "evt-1",
		Kind:      "activated",
		Extension: "b/b.php",
		At:        time.Now().UTC(),
	}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event wireEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Kind != "activated" || event.Extension != "b/b.php" {
		t.Fatalf("unexpected event: %+v", event)
	}
}
