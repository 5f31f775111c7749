package realtime

import (
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("user-1")
	defer cancel()

	hub.Publish("user-1", Event{Type: "started", Index: 0})

	select {
	case ev := <-ch:
		if ev.Type != "started" || ev.Index != 0 {
			t.Errorf("got %+v, want started/0", ev)
		}
		if ev.At.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishIsScopedByKey(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("user-1")
	defer cancel()

	hub.Publish("user-2", Event{Type: "started"})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for other identity: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("user-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish("user-1", Event{Type: "started", Index: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestCancelRemovesSubscription(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("user-1")
	cancel()

	hub.Publish("user-1", Event{Type: "started"})

	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("received event after cancel: %+v", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
