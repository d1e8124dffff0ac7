package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"meanrev/internal/ledger"
)

// Sink publishes a batch of activity events somewhere external. Sinks must
// never affect trading state; failures are reported back for logging only.
type Sink interface {
	Publish(ctx context.Context, events []ledger.Event) error
}

// Flusher is the ledger side: hand over today's events and clear them.
type Flusher interface {
	FlushAndClear() []ledger.Event
}

// Reporter drains the ledger once per day and fans the events out to every
// configured sink. The flush happens exactly once even when sinks fail, so
// an event is never reported twice.
type Reporter struct {
	ledger Flusher
	sinks  []Sink
}

func NewReporter(flusher Flusher, sinks ...Sink) *Reporter {
	return &Reporter{ledger: flusher, sinks: sinks}
}

func (r *Reporter) PublishDaily(ctx context.Context) error {
	events := r.ledger.FlushAndClear()
	slog.Info("publishing daily summary", "events", len(events), "sinks", len(r.sinks))

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, events); err != nil {
			slog.Error("summary sink failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary renders the batch in the daily report format: a purchases section
// and a sales section, each with an explicit "none today" line when empty.
func Summary(events []ledger.Event) string {
	var b strings.Builder
	b.WriteString("Summary of transactions:\n")

	b.WriteString("\nPurchases:\n")
	purchases := 0
	for _, e := range events {
		if e.OrderType != ledger.Buy {
			continue
		}
		purchases++
		fmt.Fprintf(&b, "Bought %s at: $%.2f order placed at: %s\n",
			e.Symbol, e.Price, e.Timestamp.Format("2006-01-02 15:04:05"))
	}
	if purchases == 0 {
		b.WriteString("No purchases today\n")
	}

	b.WriteString("\nSales:\n")
	sales := 0
	for _, e := range events {
		if e.OrderType != ledger.Sell {
			continue
		}
		sales++
		fmt.Fprintf(&b, "Sold %s at: $%.2f order placed at: %s\n",
			e.Symbol, e.Price, e.Timestamp.Format("2006-01-02 15:04:05"))
	}
	if sales == 0 {
		b.WriteString("No sales today\n")
	}

	return b.String()
}
