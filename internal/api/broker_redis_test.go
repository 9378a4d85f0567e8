package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}

	ch := b.Subscribe("p1")
	b.Publish("p1", RunEvent{Type: "plan.completed", Data: map[string]any{"planId": "p1"}})

	select {
	case got := <-ch:
		if got.Type != "plan.completed" || got.Data["planId"] != "p1" {
			t.Fatalf("event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestRedisBrokerChannelIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatal(err)
	}

	ch := b.Subscribe("p1")
	b.Publish("p2", RunEvent{Type: "plan.completed"})

	select {
	case got := <-ch:
		t.Fatalf("unexpected event: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisBrokerBadURL(t *testing.T) {
	if _, err := NewRedisBroker("not-a-url"); err == nil {
		t.Fatal("expected error")
	}
}
