package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"coupong/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(SynchronizerFunc(func(ctx context.Context, s core.Snapshot) error { count++; return nil }))
	if err := bus.Synchronize(context.Background(), core.NewSnapshot("c", nil, nil)); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusSyncJoinsErrors(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	errA := errors.New("a")
	errB := errors.New("b")
	bus.Subscribe(SynchronizerFunc(func(context.Context, core.Snapshot) error { return errA }))
	bus.Subscribe(SynchronizerFunc(func(context.Context, core.Snapshot) error { return errB }))
	err := bus.Synchronize(context.Background(), core.NewSnapshot("c", nil, nil))
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsub := bus.Subscribe(SynchronizerFunc(func(context.Context, core.Snapshot) error { count++; return nil }))
	unsub()
	_ = bus.Synchronize(context.Background(), core.NewSnapshot("c", nil, nil))
	if count != 0 {
		t.Fatalf("unsubscribed projection was called %d times", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan core.Snapshot, 1)
	bus.Subscribe(SynchronizerFunc(func(ctx context.Context, s core.Snapshot) error { ch <- s; return nil }))
	if err := bus.Synchronize(context.Background(), core.NewSnapshot("promoA", []core.MemberID{"a"}, nil)); err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-ch:
		if s.Category != "promoA" {
			t.Fatalf("unexpected snapshot %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusAsyncDrainsOnClose(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	count := 0
	bus.Subscribe(SynchronizerFunc(func(context.Context, core.Snapshot) error { count++; return nil }))
	for i := 0; i < 10; i++ {
		if err := bus.Synchronize(context.Background(), core.NewSnapshot("c", nil, nil)); err != nil {
			t.Fatal(err)
		}
	}
	bus.Close()
	if count != 10 {
		t.Fatalf("expected 10 dispatched before close returned, got %d", count)
	}
	if err := bus.Synchronize(context.Background(), core.NewSnapshot("c", nil, nil)); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
}

func TestEventBusAsyncQueueFull(t *testing.T) {
	block := make(chan struct{})
	bus := NewEventBus(DispatchAsync, WithQueueSize(1))
	defer func() {
		close(block)
		bus.Close()
	}()
	bus.Subscribe(SynchronizerFunc(func(context.Context, core.Snapshot) error { <-block; return nil }))

	var full bool
	for i := 0; i < 5; i++ {
		if err := bus.Synchronize(context.Background(), core.NewSnapshot("c", nil, nil)); errors.Is(err, ErrDispatchQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatal("expected the bounded queue to report full")
	}
}
