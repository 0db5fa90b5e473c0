package events

import (
	"reflect"
	"testing"
)

func TestEmitRunsHandlersInRegistrationOrder(t *testing.T) {
	bus := NewBus("song", nil)

	var calls []string
	bus.On("set", func(payload any) { calls = append(calls, "first:"+payload.(string)) })
	bus.On("set", func(payload any) { calls = append(calls, "second:"+payload.(string)) })
	bus.On("set", func(payload any) { calls = append(calls, "third:"+payload.(string)) })

	bus.Emit("set", "x")

	want := []string{"first:x", "second:x", "third:x"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("Expected %v, got %v", want, calls)
	}
}

func TestEmitToUnknownChannelIsNoOp(t *testing.T) {
	bus := NewBus("song", nil)
	bus.Emit("nobody-listens", 42)

	if bus.HasChannel("nobody-listens") {
		t.Error("Emit must not create channels")
	}
}

func TestOnWithNilHandlerCreatesChannel(t *testing.T) {
	bus := NewBus("song", nil)
	bus.On("pending", nil)

	if !bus.HasChannel("pending") {
		t.Error("Expected channel to exist")
	}
	if got := bus.ListenerCount("pending"); got != 0 {
		t.Errorf("Expected no listeners, got %d", got)
	}
}

func TestOffRemovesOnlyThatHandler(t *testing.T) {
	bus := NewBus("song", nil)

	var a, b int
	subA := bus.On("tick", func(any) { a++ })
	bus.On("tick", func(any) { b++ })

	bus.Emit("tick", nil)
	bus.Off(subA)
	bus.Emit("tick", nil)

	if a != 1 || b != 2 {
		t.Errorf("Expected a=1 b=2, got a=%d b=%d", a, b)
	}
}

func TestOffLastHandlerDropsChannel(t *testing.T) {
	bus := NewBus("song", nil)
	sub := bus.On("tick", func(any) {})
	bus.Off(sub)

	if bus.HasChannel("tick") {
		t.Error("Expected channel to be removed with its last handler")
	}

	// Removing twice is harmless
	bus.Off(sub)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus("song", nil)

	ran := false
	bus.On("boom", func(any) { panic("handler failure") })
	bus.On("boom", func(any) { ran = true })

	bus.Emit("boom", nil)

	if !ran {
		t.Error("Expected second handler to run after the first panicked")
	}
}

func TestBusesAreIsolated(t *testing.T) {
	song := NewBus("song", nil)
	nav := NewBus("nav", nil)

	got := 0
	nav.On("show", func(any) { got++ })
	song.Emit("show", "trendSongs")

	if got != 0 {
		t.Errorf("Expected no cross-delivery, got %d calls", got)
	}
}

func TestTapSeesEveryChannelAfterHandlers(t *testing.T) {
	bus := NewBus("song", nil)

	var order []string
	bus.On(Playing, func(any) { order = append(order, "handler") })
	bus.Tap(func(channel string, _ any) { order = append(order, "tap:"+channel) })

	bus.Emit(Playing, PlayState{})
	bus.Emit(ControlsShown, nil)

	want := []string{"handler", "tap:" + Playing, "tap:" + ControlsShown}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Expected %v, got %v", want, order)
	}
}

func TestHandlerMaySubscribeDuringEmit(t *testing.T) {
	bus := NewBus("song", nil)

	late := 0
	bus.On("tick", func(any) {
		bus.On("tick", func(any) { late++ })
	})

	bus.Emit("tick", nil)
	if late != 0 {
		t.Errorf("Handler added during emit must not run in the same emit, ran %d times", late)
	}

	bus.Emit("tick", nil)
	if late != 1 {
		t.Errorf("Expected late handler to run once, ran %d times", late)
	}
}

func TestSubscribeTyped(t *testing.T) {
	bus := NewBus("song", nil)

	var got QueueSync
	calls := 0
	Subscribe(bus, QueueSynced, func(q QueueSync) {
		got = q
		calls++
	})

	bus.Emit(QueueSynced, QueueSync{Type: SelectAlbum, QueueID: "albums", From: 3, To: 7})
	bus.Emit(QueueSynced, "not a queue sync")

	if calls != 1 {
		t.Fatalf("Expected 1 typed call, got %d", calls)
	}
	if got.From != 3 || got.To != 7 || got.QueueID != "albums" {
		t.Errorf("Unexpected payload %+v", got)
	}
}
