package loopback

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/extpin/extpin/core/extension"
	"github.com/extpin/extpin/core/infra/logging"
)

// Endpoint statuses returned to the trigger. Each outcome is
// distinguishable so operators can tell a burned token from a missing file.
const (
	StatusInvalid = "invalid"
	StatusNoop    = "noop"
	StatusDone    = "done"
)

// Endpoint receives loopback deactivation calls: it validates the
// single-use token, re-loads the extension's code, and fires its
// deactivation hook exactly once.
type Endpoint struct {
	tokens *TokenStore
	loader extension.Loader
	hooks  extension.Hooks
	// Results receives the endpoint status for each request. Optional.
	Results func(status string)
	// Notify is called after a successful deactivation. Optional.
	Notify func(id string)
}

// NewEndpoint constructs the receiving endpoint.
func NewEndpoint(tokens *TokenStore, loader extension.Loader, hooks extension.Hooks) *Endpoint {
	return &Endpoint{tokens: tokens, loader: loader, hooks: hooks}
}

// Register mounts the endpoint under both the authenticated-session route
// and the no-session route. The authenticated variant is wrapped with the
// supplied middleware; the no-priv variant relies solely on the single-use
// token and must stay reachable once the original session is gone.
func (e *Endpoint) Register(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	handler := http.Handler(e)
	if authed != nil {
		mux.Handle(DeactivatePath, authed(handler))
	} else {
		mux.Handle(DeactivatePath, handler)
	}
	mux.Handle(NoPrivPath, handler)
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.respond(w, http.StatusBadRequest, StatusInvalid)
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)

	if extension.ValidateIdentifier(req.Identifier) != nil ||
		!e.tokens.Consume(r.Context(), DeactivateScope(req.Identifier), req.Token) {
		e.respond(w, http.StatusForbidden, StatusInvalid)
		return
	}

	if !e.loader.Exists(req.Identifier) {
		e.respond(w, http.StatusOK, StatusNoop)
		return
	}

	if err := e.loader.Load(r.Context(), req.Identifier); err != nil {
		logging.Error("loopback", "load for deactivation", "extension", req.Identifier, "error", err)
		e.respond(w, http.StatusOK, StatusNoop)
		return
	}
	if err := e.hooks.Deactivate(r.Context(), req.Identifier); err != nil {
		logging.Error("loopback", "deactivation hook", "extension", req.Identifier, "error", err)
	}
	if e.Notify != nil {
		e.Notify(req.Identifier)
	}
	logging.Info("loopback", "extension deactivated", "extension", req.Identifier)
	e.respond(w, http.StatusOK, StatusDone)
}

func (e *Endpoint) respond(w http.ResponseWriter, code int, status string) {
	if e.Results != nil {
		e.Results(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
