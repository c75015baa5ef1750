package storeevent

import "testing"

func TestBusPublishDeliversInRegistrationOrder(t *testing.T) {
	bus := New()
	var order []int
	bus.Subscribe(SubscriberFunc(func(events []StoreEvent) { order = append(order, 1) }))
	bus.Subscribe(SubscriberFunc(func(events []StoreEvent) { order = append(order, 2) }))

	bus.Publish(StoreEvent{Generation: 1})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestBusPublishEmptyIsNoOp(t *testing.T) {
	bus := New()
	called := false
	bus.Subscribe(SubscriberFunc(func(events []StoreEvent) { called = true }))
	bus.Publish()
	if called {
		t.Fatal("Publish with no events should not notify subscribers")
	}
}

func TestKindString(t *testing.T) {
	if Addition.String() != "addition" {
		t.Errorf("Addition.String() = %q", Addition.String())
	}
	if Deletion.String() != "deletion" {
		t.Errorf("Deletion.String() = %q", Deletion.String())
	}
}

func TestBusDeliversAllEventsInBatch(t *testing.T) {
	bus := New()
	var received []StoreEvent
	bus.Subscribe(SubscriberFunc(func(events []StoreEvent) { received = events }))

	bus.Publish(StoreEvent{EventID: 1}, StoreEvent{EventID: 2})

	if len(received) != 2 {
		t.Fatalf("received %d events, want 2", len(received))
	}
}
