package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/extpin/extpin/core/extension"
	"github.com/extpin/extpin/core/hooks"
	"github.com/extpin/extpin/core/infra/logging"
	"github.com/extpin/extpin/core/loopback"
	"github.com/extpin/extpin/core/presentation"
	"github.com/extpin/extpin/core/promoter"
	"github.com/extpin/extpin/core/store"
)

var upgrader = websocket.Upgrader{
	// The admin surface binds to loopback; browser origin checks add nothing.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// server holds the daemon's HTTP surface: filtered views, extension rows,
// capability resolution, and the lifecycle event stream.
type server struct {
	loader *extension.DirLoader
	prom   *promoter.Promoter
	native promoter.NativeReader
	scoped *store.Scoped

	lists *hooks.ListChain
	maps  *hooks.MapChain
	caps  *hooks.CapChain

	eventsCh  chan hooks.Event
	clients   map[*websocket.Conn]chan hooks.Event
	clientsMu sync.RWMutex
}

func newServer() *server {
	return &server{
		lists:    &hooks.ListChain{},
		maps:     &hooks.MapChain{},
		caps:     &hooks.CapChain{},
		eventsCh: make(chan hooks.Event, 512),
		clients:  make(map[*websocket.Conn]chan hooks.Event),
	}
}

func (s *server) routes(endpoint *loopback.Endpoint, apiKey string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authed := apiKeyMiddleware(apiKey)
	mux.Handle("GET /v1/extensions", authed(http.HandlerFunc(s.handleRows)))
	mux.Handle("GET /v1/extensions/active", authed(http.HandlerFunc(s.handleActive)))
	mux.Handle("GET /v1/extensions/active/network", authed(http.HandlerFunc(s.handleActiveNetwork)))
	mux.Handle("GET /v1/extensions/promoted", authed(http.HandlerFunc(s.handlePromoted)))
	mux.Handle("GET /v1/capabilities", authed(http.HandlerFunc(s.handleCapabilities)))
	mux.Handle("GET /v1/events", authed(http.HandlerFunc(s.handleEvents)))

	endpoint.Register(mux, authed)
	return mux
}

// handleRows renders the extension listing with promotion-aware rows.
func (s *server) handleRows(w http.ResponseWriter, r *http.Request) {
	installed, err := s.loader.Installed()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	native, err := s.native.NativeActive(r.Context())
	if err != nil {
		logging.Error("daemon", "read native active set", "error", err)
		native = map[string]bool{}
	}
	rows := presentation.Rows(installed,
		func(id string) bool { return native[id] },
		s.prom.IsPromoted,
	)
	writeJSON(w, http.StatusOK, rows)
}

// handleActive serves the effective single-node active list: the stored list
// run through the view-filter chain.
func (s *server) handleActive(w http.ResponseWriter, r *http.Request) {
	list, err := s.nodeStore().GetList(r.Context(), store.KeyActive)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	list = s.lists.Apply(list)
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleActiveNetwork serves the effective cluster-wide active map.
func (s *server) handleActiveNetwork(w http.ResponseWriter, r *http.Request) {
	m, err := s.clusterStore().GetMap(r.Context(), store.KeyActiveNetwork)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	m = s.maps.Apply(m)
	if m == nil {
		m = map[string]int64{}
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *server) handlePromoted(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"promoted": s.prom.Promoted(),
		"cached":   s.prom.GetCachedSet(r.Context()),
	})
}

// handleCapabilities resolves a capability check through the hook chain, so
// callers observe the permission gate's denials.
func (s *server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	op := q.Get("op")
	target := q.Get("target")
	if op == "" {
		http.Error(w, "missing op", http.StatusBadRequest)
		return
	}
	caps := s.caps.Apply(q["cap"], op, target, q["selected"])
	if caps == nil {
		caps = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": caps})
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("daemon", "ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	clientCh := make(chan hooks.Event, 100)
	s.clientsMu.Lock()
	s.clients[ws] = clientCh
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, ws)
		s.clientsMu.Unlock()
	}()

	for {
		select {
		case event, ok := <-clientCh:
			if !ok {
				return
			}
			data, err := json.Marshal(eventPayload(event))
			if err != nil {
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// streamNotifier feeds lifecycle events into the websocket broadcast. A full
// buffer drops the event rather than stalling the promotion path.
func (s *server) streamNotifier() hooks.Notifier {
	return hooks.NotifierFunc(func(ctx context.Context, event hooks.Event) error {
		select {
		case s.eventsCh <- event:
		default:
		}
		return nil
	})
}

// broadcast fans events out to connected clients, evicting any too slow to
// keep up.
func (s *server) broadcast() {
	for event := range s.eventsCh {
		var slow []*websocket.Conn
		s.clientsMu.RLock()
		for conn, ch := range s.clients {
			select {
			case ch <- event:
			default:
				slow = append(slow, conn)
			}
		}
		s.clientsMu.RUnlock()

		if len(slow) > 0 {
			s.clientsMu.Lock()
			for _, conn := range slow {
				delete(s.clients, conn)
			}
			s.clientsMu.Unlock()
			for _, conn := range slow {
				if err := conn.Close(); err != nil {
					logging.Error("daemon", "ws client close failed", "error", err)
				}
			}
		}
	}
}

func (s *server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
}

func (s *server) nodeStore() store.Store {
	return s.scoped.For(store.ScopeNode)
}

func (s *server) clusterStore() store.Store {
	return s.scoped.For(store.ScopeCluster)
}

// apiKeyMiddleware requires X-API-Key on admin routes. An empty configured
// key disables the check.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != apiKey {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type wireEvent struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Extension string `json:"extension"`
	At        string `json:"at"`
}

func eventPayload(event hooks.Event) wireEvent {
	return wireEvent{
		ID:        event.ID,
		Kind:      event.Kind,
		Extension: event.Extension,
		At:        event.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func deactivatedEvent(id string) hooks.Event {
	return hooks.Event{
		ID:        uuid.NewString(),
		Kind:      "deactivated",
		Extension: id,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("daemon", "encode response", "error", err)
	}
}
