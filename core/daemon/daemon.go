// Package daemon composes the promotion system into a long-running process:
// promotion phase at startup, filtered views and loopback endpoints while
// serving, reconciliation at shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/extpin/extpin/core/activeview"
	"github.com/extpin/extpin/core/extension"
	"github.com/extpin/extpin/core/hooks"
	"github.com/extpin/extpin/core/infra/bus"
	"github.com/extpin/extpin/core/infra/config"
	"github.com/extpin/extpin/core/infra/logging"
	"github.com/extpin/extpin/core/infra/metrics"
	"github.com/extpin/extpin/core/loopback"
	"github.com/extpin/extpin/core/manifest"
	"github.com/extpin/extpin/core/permgate"
	"github.com/extpin/extpin/core/promoter"
	"github.com/extpin/extpin/core/store"
)

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Load()
	}

	m := metrics.NewProm("extpin")

	nodeStore, err := store.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open node store: %w", err)
	}
	clusterStore, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		nodeStore.Close()
		return fmt.Errorf("connect cluster store: %w", err)
	}
	scoped := store.NewScoped(nodeStore, clusterStore)
	defer scoped.Close()

	var natsBus *bus.NatsBus
	if !cfg.DisableNATS {
		natsBus, err = bus.NewNatsBus(cfg.NatsURL)
		if err != nil {
			// Lifecycle events are best-effort; the daemon runs without them.
			logging.Error("daemon", "nats connect failed", "url", cfg.NatsURL, "error", err)
		} else {
			defer natsBus.Close()
		}
	}

	s := newServer()
	s.scoped = scoped
	notifiers := hooks.Notifiers{busNotifier(natsBus), s.streamNotifier()}

	loader := extension.NewDirLoader(cfg.ExtensionsRoot, notifiers)
	extHooks := extension.NewScriptHooks(cfg.ExtensionsRoot)

	tokens := loopback.NewTokenStore(clusterStore.Client(), 0)
	trigger := loopback.NewTrigger(cfg.LoopbackURL, tokens, cfg.APIKey)
	trigger.Delivery = m.IncDeactivationTriggers

	prom := promoter.New(promoter.Options{
		Loader:    loader,
		Hooks:     extHooks,
		Cache:     promoter.NewCacheStore(scoped.For(store.ScopeNode), ""),
		Native:    promoter.NewStoreNative(scoped),
		Trigger:   trigger,
		Metrics:   m,
		Notifiers: notifiers,
	})

	ctx := context.Background()
	man, err := loadManifest(cfg.ManifestPath)
	if err != nil {
		return err
	}
	for _, id := range man.Extensions {
		if err := prom.Promote(ctx, id); err != nil {
			logging.Error("daemon", "promotion failed", "extension", id, "error", err)
		}
	}
	prom.RunPending(ctx)
	logging.Info("daemon", "promotion phase complete", "promoted", len(prom.Promoted()))

	filter := activeview.New(prom.Promoted)
	filter.Suppress = man.Suppress
	filter.LoadAll = man.LoadAll
	filter.Install(s.lists, s.maps)

	gate := permgate.New(prom.Promoted)
	gate.Denials = m.IncDenials
	gate.Install(s.caps)

	endpoint := loopback.NewEndpoint(tokens, loader, extHooks)
	endpoint.Results = m.IncLoopbackRequests
	endpoint.Notify = func(id string) {
		if err := notifiers.Notify(ctx, deactivatedEvent(id)); err != nil {
			logging.Error("daemon", "deactivated notification", "extension", id, "error", err)
		}
	}

	s.loader = loader
	s.prom = prom
	s.native = promoter.NewStoreNative(scoped)
	go s.broadcast()
	defer close(s.eventsCh)

	go serveMetrics(cfg.MetricsAddr)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.routes(endpoint, cfg.APIKey),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info("daemon", "http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCtx.Done():
	}

	logging.Info("daemon", "shutdown requested")

	// Reconcile while the loopback endpoint is still reachable; triggers are
	// fire-and-forget with a short delivery timeout.
	prom.ReconcileOnShutdown(ctx)
	time.Sleep(200 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("daemon", "http shutdown", "error", err)
	}
	s.closeClients()
	logging.Info("daemon", "stopped")
	return nil
}

// loadManifest treats a missing manifest file as an empty promoted set.
func loadManifest(path string) (*manifest.Manifest, error) {
	man, err := manifest.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Info("daemon", "no manifest, nothing promoted", "path", path)
			return &manifest.Manifest{}, nil
		}
		return nil, err
	}
	return man, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logging.Info("daemon", "metrics listening", "addr", addr+"/metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("daemon", "metrics server error", "error", err)
	}
}

// busNotifier republishes lifecycle events on NATS. A nil bus publishes
// nothing.
func busNotifier(b *bus.NatsBus) hooks.Notifier {
	return hooks.NotifierFunc(func(ctx context.Context, event hooks.Event) error {
		if b == nil || !b.IsConnected() {
			return nil
		}
		return b.Publish(bus.Event{
			ID:        event.ID,
			Kind:      event.Kind,
			Extension: event.Extension,
			At:        event.At,
		})
	})
}
