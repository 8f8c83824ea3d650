package bus

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSubject(t *testing.T) {
	if Subject("") != "" {
		t.Fatalf("expected empty subject")
	}
	if Subject(KindLoaded) != "extpin.lifecycle.loaded" {
		t.Fatalf("unexpected subject: %s", Subject(KindLoaded))
	}
	if Subject("*") != "extpin.lifecycle.*" {
		t.Fatalf("unexpected wildcard subject: %s", Subject("*"))
	}
}

func TestEventRoundTrip(t *testing.T) {
	event := Event{
		ID:        "evt-1",
		Kind:      KindActivated,
		Extension: "x/x.php",
		At:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != event {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestNilBusGuards(t *testing.T) {
	var b *NatsBus
	if err := b.Publish(Event{Kind: KindLoaded}); err == nil {
		t.Fatalf("expected error from nil bus")
	}
	if err := b.Subscribe(KindLoaded, func(Event) {}); err == nil {
		t.Fatalf("expected error from nil bus")
	}
	b.Close()
	if b.IsConnected() {
		t.Fatalf("nil bus cannot be connected")
	}
}

func TestPublishEmptyKind(t *testing.T) {
	b := &NatsBus{}
	if err := b.Publish(Event{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
}
