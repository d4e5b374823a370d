package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/morinoya/order-api/internal/enum"
	"github.com/morinoya/order-api/internal/ws"
)

// Broadcaster is the hub-facing side of the notifier. Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(event ws.Event)
}

// Notifier funnels every order change through one goroutine and rate-limits
// broadcasts to at most one per interval. Handlers signal changes from any
// request; connected dashboards treat any event as "refetch the order list",
// so collapsing a burst into a single orders.changed event loses nothing.
type Notifier struct {
	hub      Broadcaster
	interval time.Duration
	signals  chan ws.Event
}

// New creates a Notifier with the default 1s broadcast interval.
func New(hub Broadcaster) *Notifier {
	return &Notifier{
		hub:      hub,
		interval: time.Second,
		signals:  make(chan ws.Event, 64),
	}
}

// OrderChanged signals that an order mutation happened. payload is marshaled
// into the event; it never blocks the calling handler.
func (n *Notifier) OrderChanged(eventType string, payload interface{}) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	select {
	case n.signals <- ws.Event{Type: eventType, Payload: b}:
	default:
		// Buffer full mid-burst; the pending coalesced broadcast covers it.
	}
}

// Run consumes change signals until ctx is cancelled.
// This should be called as a goroutine: go notifier.Run(ctx)
func (n *Notifier) Run(ctx context.Context) {
	var last time.Time
	var pending bool

	timer := time.NewTimer(n.interval)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-n.signals:
			now := time.Now()
			if now.Sub(last) >= n.interval {
				n.hub.Broadcast(ev)
				last = now
				// A queued catch-all is now redundant; drop it so the timer
				// cannot fire a second broadcast inside the fresh window.
				if pending {
					pending = false
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
				}
				continue
			}
			// Too soon after the last broadcast: collapse this and any
			// further signals into one catch-all event when the window ends.
			if !pending {
				pending = true
				timer.Reset(n.interval - now.Sub(last))
			}

		case <-timer.C:
			if pending {
				n.hub.Broadcast(ws.Event{
					Type:    enum.EventOrdersChanged,
					Payload: json.RawMessage(`{}`),
				})
				last = time.Now()
				pending = false
			}
		}
	}
}
