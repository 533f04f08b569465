package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"service-ninja/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBusTypedSubscription(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	var checks, sweeps atomic.Int64
	bus.Subscribe(domain.EventCheckCompleted, func(ctx context.Context, e domain.Event) {
		checks.Add(1)
	})
	bus.Subscribe(domain.EventSweepCompleted, func(ctx context.Context, e domain.Event) {
		sweeps.Add(1)
	})

	ctx := context.Background()
	bus.Publish(ctx, NewEvent(domain.EventCheckCompleted, nil))
	bus.Publish(ctx, NewEvent(domain.EventCheckCompleted, nil))
	bus.Publish(ctx, NewEvent(domain.EventSweepCompleted, nil))
	bus.Close()

	if got := checks.Load(); got != 2 {
		t.Errorf("check handler ran %d times, want 2", got)
	}
	if got := sweeps.Load(); got != 1 {
		t.Errorf("sweep handler ran %d times, want 1", got)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var count atomic.Int64
	bus.SubscribeAll(func(ctx context.Context, e domain.Event) {
		count.Add(1)
	})

	ctx := context.Background()
	bus.Publish(ctx, NewEvent(domain.EventProjectCreated, nil))
	bus.Publish(ctx, NewEvent(domain.EventServiceRemoved, nil))
	bus.Close()

	if got := count.Load(); got != 2 {
		t.Errorf("all-events handler ran %d times, want 2", got)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var count atomic.Int64
	unsub := bus.Subscribe(domain.EventProjectCreated, func(ctx context.Context, e domain.Event) {
		count.Add(1)
	})

	ctx := context.Background()
	bus.Publish(ctx, NewEvent(domain.EventProjectCreated, nil))
	unsub()
	bus.Publish(ctx, NewEvent(domain.EventProjectCreated, nil))
	bus.Close()

	if got := count.Load(); got != 1 {
		t.Errorf("handler ran %d times after unsubscribe, want 1", got)
	}
}

func TestBusRecoversPanickingHandler(t *testing.T) {
	bus := newTestBus()

	done := make(chan struct{})
	bus.Subscribe(domain.EventSweepDegraded, func(ctx context.Context, e domain.Event) {
		panic("handler bug")
	})
	bus.Subscribe(domain.EventSweepDegraded, func(ctx context.Context, e domain.Event) {
		close(done)
	})

	bus.Publish(context.Background(), NewEvent(domain.EventSweepDegraded, nil))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("healthy handler never ran")
	}
	bus.Close()
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := newTestBus()

	var count atomic.Int64
	bus.SubscribeAll(func(ctx context.Context, e domain.Event) {
		count.Add(1)
	})
	bus.Close()
	bus.Publish(context.Background(), NewEvent(domain.EventProjectCreated, nil))

	if got := count.Load(); got != 0 {
		t.Errorf("handler ran %d times after close, want 0", got)
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var count atomic.Int64
	bus.Subscribe(domain.EventCheckCompleted, func(ctx context.Context, e domain.Event) {
		count.Add(1)
	})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), NewEvent(domain.EventCheckCompleted, nil))
		}()
	}
	wg.Wait()
	bus.Close()

	if got := count.Load(); got != n {
		t.Errorf("handler ran %d times, want %d", got, n)
	}
}

func TestNewEventStampsPayload(t *testing.T) {
	event := NewEvent(domain.EventCheckCompleted, map[string]string{"service": "api"})
	if event.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
	if string(event.Payload) != `{"service":"api"}` {
		t.Errorf("payload = %s", event.Payload)
	}
}
