package ledger

import (
	"sync"
	"time"
)

type OrderType string

const (
	Buy  OrderType = "buy"
	Sell OrderType = "sell"
)

// Event is one completed buy or sell, recorded for the daily summary.
type Event struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	OrderType OrderType `json:"order_type"`
}

// Ledger accumulates the session's confirmed executions. Append-only within
// a day; FlushAndClear hands the events to the reporting side exactly once.
type Ledger struct {
	mu     sync.Mutex
	events []Event
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Snapshot returns a copy of the current events without clearing them.
func (l *Ledger) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// FlushAndClear atomically returns all accumulated events and empties the
// ledger. An event is never both flushed and retained, and appends that race
// with the flush land in the next day's batch.
func (l *Ledger) FlushAndClear() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.events
	l.events = nil
	return out
}
