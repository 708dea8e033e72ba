package app

import (
	"testing"
	"time"
)

func TestEventBusFanOut(t *testing.T) {
	bus := newEventBus()
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	bus.Publish(Event{Type: EventChaptersChanged, ProjectID: "proj_1"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case e := <-ch:
			if e.Type != EventChaptersChanged || e.ProjectID != "proj_1" {
				t.Errorf("subscriber %s got %+v", name, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestEventBusCancelStopsDelivery(t *testing.T) {
	bus := newEventBus()
	ch, cancel := bus.Subscribe()
	cancel()

	bus.Publish(Event{Type: EventDirtyChanged})

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
}

func TestEventBusSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := newEventBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Type: EventDirtyChanged, ChapterID: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on an undrained subscriber")
	}
}
