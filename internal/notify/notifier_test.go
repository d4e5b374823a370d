package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/morinoya/order-api/internal/enum"
	"github.com/morinoya/order-api/internal/ws"
)

type recordingHub struct {
	mu     sync.Mutex
	events []ws.Event
	times  []time.Time
}

func (h *recordingHub) Broadcast(e ws.Event) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.times = append(h.times, time.Now())
	h.mu.Unlock()
}

func (h *recordingHub) snapshot() []ws.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ws.Event(nil), h.events...)
}

func (h *recordingHub) broadcastTimes() []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Time(nil), h.times...)
}

func newTestNotifier(hub Broadcaster, interval time.Duration) *Notifier {
	return &Notifier{
		hub:      hub,
		interval: interval,
		signals:  make(chan ws.Event, 64),
	}
}

func waitForEvents(t *testing.T, hub *recordingHub, n int, timeout time.Duration) []ws.Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if events := hub.snapshot(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", n, len(hub.snapshot()))
	return nil
}

func TestFirstSignalBroadcastsImmediately(t *testing.T) {
	hub := &recordingHub{}
	n := newTestNotifier(hub, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.OrderChanged(enum.EventOrderCreated, map[string]string{"order_no": "20250314-0042"})

	events := waitForEvents(t, hub, 1, time.Second)
	if events[0].Type != enum.EventOrderCreated {
		t.Errorf("event type: got %q, want %q", events[0].Type, enum.EventOrderCreated)
	}
}

func TestBurstCoalescesIntoCatchAll(t *testing.T) {
	hub := &recordingHub{}
	n := newTestNotifier(hub, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	// First signal goes out immediately; the rest of the burst lands inside
	// the rate-limit window and must collapse into one orders.changed event.
	n.OrderChanged(enum.EventOrderCreated, map[string]string{"order_no": "a"})
	waitForEvents(t, hub, 1, time.Second)

	for i := 0; i < 5; i++ {
		n.OrderChanged(enum.EventOrderUpdated, map[string]string{"order_no": "b"})
	}

	events := waitForEvents(t, hub, 2, time.Second)
	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2 (burst not coalesced)", len(events))
	}
	if events[1].Type != enum.EventOrdersChanged {
		t.Errorf("coalesced event type: got %q, want %q", events[1].Type, enum.EventOrdersChanged)
	}

	// Give the window time to prove no further broadcasts are pending.
	time.Sleep(250 * time.Millisecond)
	if got := len(hub.snapshot()); got != 2 {
		t.Errorf("events after settling: got %d, want 2", got)
	}
}

func TestBroadcastsRespectMinimumSpacing(t *testing.T) {
	// A signal landing right as the coalescing window closes must not slip a
	// direct broadcast past a queued catch-all and produce two broadcasts
	// back to back. Under sustained signals every pair of consecutive
	// broadcasts stays at least an interval apart.
	hub := &recordingHub{}
	interval := 100 * time.Millisecond
	n := newTestNotifier(hub, interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	start := time.Now()
	for time.Since(start) < 5*interval {
		n.OrderChanged(enum.EventOrderUpdated, map[string]string{"order_no": "x"})
		time.Sleep(time.Millisecond)
	}

	times := hub.broadcastTimes()
	if len(times) < 2 {
		t.Fatalf("broadcasts: got %d, want at least 2", len(times))
	}
	// Allow a little scheduler jitter below the configured interval.
	minGap := interval / 2
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < minGap {
			t.Fatalf("broadcasts %d and %d only %v apart, want at least %v", i-1, i, gap, minGap)
		}
	}
}

func TestOrderChangedNeverBlocks(t *testing.T) {
	// No Run loop draining signals: the buffer fills and further signals are
	// dropped instead of blocking the request handler.
	n := newTestNotifier(&recordingHub{}, time.Second)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			n.OrderChanged(enum.EventOrderUpdated, map[string]string{"order_no": "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OrderChanged blocked with a full signal buffer")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	hub := &recordingHub{}
	n := newTestNotifier(hub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)
	cancel()
	time.Sleep(20 * time.Millisecond)

	n.OrderChanged(enum.EventOrderCreated, nil)
	time.Sleep(50 * time.Millisecond)

	if got := len(hub.snapshot()); got != 0 {
		t.Errorf("events after cancel: got %d, want 0", got)
	}
}
