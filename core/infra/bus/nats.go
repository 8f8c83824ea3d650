// Package bus publishes extension lifecycle events over NATS as JSON so that
// other host collaborators can consume loader and promotion notifications.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Event kinds published on the bus.
const (
	KindLoaded                = "loaded"
	KindActivated             = "activated"
	KindDeactivationTriggered = "deactivation_triggered"
	KindDeactivated           = "deactivated"
)

const subjectPrefix = "extpin.lifecycle."

var (
	errNilBus     = errors.New("nats bus not initialized")
	errEmptyKind  = errors.New("empty event kind")
	errNilHandler = errors.New("nil handler")
)

// Event describes one extension lifecycle occurrence.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Extension string    `json:"extension"`
	At        time.Time `json:"at"`
}

// Subject returns the NATS subject for an event kind.
func Subject(kind string) string {
	if kind == "" {
		return ""
	}
	return subjectPrefix + kind
}

// NatsBus is a thin wrapper over a NATS connection that speaks JSON events.
type NatsBus struct {
	nc *nats.Conn
}

// NewNatsBus dials NATS at the provided URL.
func NewNatsBus(url string) (*NatsBus, error) {
	opts := []nats.Option{
		nats.Name("extpin-bus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[BUS] disconnected from NATS: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[BUS] reconnected to NATS at %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("[BUS] connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsBus{nc: nc}, nil
}

// Close shuts down the underlying NATS connection.
func (b *NatsBus) Close() {
	if b != nil && b.nc != nil {
		b.nc.Close()
	}
}

// Publish sends a JSON-encoded lifecycle event on the subject for its kind.
func (b *NatsBus) Publish(event Event) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	if event.Kind == "" {
		return errEmptyKind
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.nc.Publish(Subject(event.Kind), data)
}

// Subscribe attaches a subscription that decodes JSON events and invokes the
// handler. Kind may be "*" to receive all lifecycle events.
func (b *NatsBus) Subscribe(kind string, handler func(Event)) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	if kind == "" {
		return errEmptyKind
	}
	if handler == nil {
		return errNilHandler
	}
	_, err := b.nc.Subscribe(Subject(kind), func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("nats bus: failed to unmarshal event: %v", err)
			return
		}
		handler(event)
	})
	return err
}

// IsConnected reports whether the underlying connection is up.
func (b *NatsBus) IsConnected() bool {
	return b != nil && b.nc != nil && b.nc.IsConnected()
}
