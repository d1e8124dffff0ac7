package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"meanrev/internal/config"
	"meanrev/internal/ledger"
	"meanrev/internal/risk"
	"meanrev/internal/state"
)

// MarketData supplies the latest trade price and rolling statistics for a
// symbol. Stale values are never reused: both are fetched fresh every pass.
type MarketData interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	HistoricalStats(ctx context.Context, symbol string, lookback int) (average, stdev float64, err error)
}

// Execution submits orders and reports account state.
type Execution interface {
	SubmitBuy(ctx context.Context, symbol string, notional float64) (filledPrice float64, err error)
	SubmitSell(ctx context.Context, symbol string) error
	BuyingPower(ctx context.Context) (float64, error)
	HeldQty(ctx context.Context, symbol string) (float64, error)
}

// Recorder persists confirmed activity events outside the daily ledger.
type Recorder interface {
	Record(e ledger.Event) error
}

// Controller runs one full watchlist pass: fetch statistics, consult the
// position store, evaluate the signal, execute, and record. Symbols are
// processed sequentially; the store is only mutated after a confirmed
// execution, so replaying a pass with unchanged inputs reaches the same
// decision.
type Controller struct {
	cfg       config.Config
	market    MarketData
	exec      Execution
	store     *state.Store
	gate      risk.Gate
	ledger    *ledger.Ledger
	journal   Recorder
	decisions *DecisionLogger
	runID     string
	now       func() time.Time
}

func NewController(cfg config.Config, market MarketData, exec Execution, store *state.Store, gate risk.Gate, led *ledger.Ledger, journal Recorder, decisions *DecisionLogger) *Controller {
	runID := ""
	if decisions != nil {
		runID = decisions.RunID()
	}
	return &Controller{
		cfg:       cfg,
		market:    market,
		exec:      exec,
		store:     store,
		gate:      gate,
		ledger:    led,
		journal:   journal,
		decisions: decisions,
		runID:     runID,
		now:       time.Now,
	}
}

func (c *Controller) params() SignalParams {
	return SignalParams{
		EntryZ:         c.cfg.EntryZ,
		ExitZ:          c.cfg.ExitZ,
		HardTakeProfit: c.cfg.HardTakeProfit,
		PanicZ:         c.cfg.PanicZ,
		MaxHold:        c.cfg.MaxHold,
	}
}

// RunPass evaluates every watchlist symbol once. Cancellation is honored
// between symbols so an in-flight decision always commits or fails whole.
func (c *Controller) RunPass(ctx context.Context) error {
	for _, symbol := range c.cfg.Watchlist {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.evalSymbol(ctx, symbol)
	}
	return nil
}

func (c *Controller) evalSymbol(ctx context.Context, symbol string) {
	now := c.now().In(c.cfg.TZ)
	rec := Decision{RunID: c.runID, Timestamp: now, Symbol: symbol}

	average, stdev, err := c.market.HistoricalStats(ctx, symbol, c.cfg.Lookback)
	if err != nil {
		slog.Info("statistics unavailable", "symbol", symbol, "error", err)
		rec.Action = Skip
		rec.Result = "stats_unavailable"
		rec.RejectReason = err.Error()
		c.decisions.Append(rec)
		return
	}
	price, err := c.market.LatestPrice(ctx, symbol)
	if err != nil {
		slog.Info("latest price unavailable", "symbol", symbol, "error", err)
		rec.Action = Skip
		rec.Result = "price_unavailable"
		rec.RejectReason = err.Error()
		c.decisions.Append(rec)
		return
	}
	rec.Price, rec.Average, rec.Stdev = price, average, stdev

	pos, held := c.store.Get(symbol)
	in := SignalInput{
		LatestPrice: price,
		Average:     average,
		Stdev:       stdev,
		HasPosition: held,
	}
	if held {
		in.EntryPrice = pos.EntryPrice
		in.HoldingDuration = now.Sub(pos.EntryTime)
	}

	sig := Evaluate(in, c.params())
	rec.ZScore = sig.ZScore
	rec.Action = sig.Action
	rec.Reason = sig.Reason

	switch sig.Action {
	case EnterLong:
		c.enter(ctx, symbol, price, now, rec)
	case ExitLong:
		c.exit(ctx, symbol, price, now, rec)
	case Skip:
		slog.Info("skipping symbol", "symbol", symbol, "reason", sig.Reason)
		rec.Result = "skip"
		c.decisions.Append(rec)
	default:
		slog.Debug("no trade", "symbol", symbol, "action", sig.Action, "z", sig.ZScore)
		rec.Result = "hold"
		c.decisions.Append(rec)
	}
}

func (c *Controller) enter(ctx context.Context, symbol string, price float64, now time.Time, rec Decision) {
	buyingPower, err := c.exec.BuyingPower(ctx)
	if err != nil {
		slog.Error("buying power unavailable", "symbol", symbol, "error", err)
		rec.Result = "account_unavailable"
		rec.RejectReason = err.Error()
		c.decisions.Append(rec)
		return
	}

	notional := c.cfg.AllocFraction * buyingPower
	lastPurchase, hasLast := c.store.LastPurchase(symbol)
	if err := c.gate.ApproveEntry(risk.EntryContext{
		Now:             now,
		Symbol:          symbol,
		Price:           price,
		Notional:        notional,
		BuyingPower:     buyingPower,
		LastPurchase:    lastPurchase,
		HasLastPurchase: hasLast,
		Cooldown:        c.cfg.Cooldown,
		MaxNotional:     c.cfg.MaxNotional,
		KillSwitch:      c.cfg.KillSwitch,
	}); err != nil {
		rec.Result = "rejected"
		rec.RejectReason = err.Error()
		c.decisions.Append(rec)
		return
	}

	filledPrice, err := c.exec.SubmitBuy(ctx, symbol, notional)
	if err != nil {
		slog.Error("buy failed", "symbol", symbol, "notional", notional, "error", err)
		rec.Result = "order_failed"
		rec.RejectReason = err.Error()
		c.decisions.Append(rec)
		return
	}

	entryPrice := price
	if filledPrice > 0 {
		entryPrice = filledPrice
	}
	if err := c.store.Open(symbol, entryPrice, now); err != nil {
		// Contract violation: the signal said no position but the store holds
		// one. Leave the store untouched and surface it loudly.
		slog.Error("position store corruption averted", "symbol", symbol, "error", err)
		rec.Result = "state_error"
		rec.RejectReason = err.Error()
		c.decisions.Append(rec)
		return
	}

	event := ledger.Event{
		ID:        ulid.Make().String(),
		Symbol:    symbol,
		Price:     entryPrice,
		Timestamp: now,
		OrderType: ledger.Buy,
	}
	c.record(event)
	rec.Result = "executed"
	rec.EventID = event.ID
	c.decisions.Append(rec)
	slog.Info("entered position", "symbol", symbol, "price", entryPrice, "notional", notional)
}

func (c *Controller) exit(ctx context.Context, symbol string, price float64, now time.Time, rec Decision) {
	if err := c.exec.SubmitSell(ctx, symbol); err != nil {
		slog.Error("sell failed, position stays open", "symbol", symbol, "error", err)
		rec.Result = "order_failed"
		rec.RejectReason = err.Error()
		c.decisions.Append(rec)
		return
	}

	pos, err := c.store.Close(symbol)
	if err != nil {
		slog.Error("position store corruption averted", "symbol", symbol, "error", err)
		rec.Result = "state_error"
		rec.RejectReason = err.Error()
		c.decisions.Append(rec)
		return
	}

	event := ledger.Event{
		ID:        ulid.Make().String(),
		Symbol:    symbol,
		Price:     price,
		Timestamp: now,
		OrderType: ledger.Sell,
	}
	c.record(event)
	rec.Result = "executed"
	rec.EventID = event.ID
	c.decisions.Append(rec)
	slog.Info("exited position", "symbol", symbol, "price", price, "entry_price", pos.EntryPrice, "held_for", now.Sub(pos.EntryTime))
}

func (c *Controller) record(event ledger.Event) {
	c.ledger.Append(event)
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(event); err != nil {
		slog.Error("journal write failed", "event_id", event.ID, "symbol", event.Symbol, "error", err)
	}
}

// SyncPositions drops stored positions the broker no longer holds, e.g.
// after an external liquidation. Run at startup before the first pass.
func (c *Controller) SyncPositions(ctx context.Context) {
	for _, pos := range c.store.Positions() {
		qty, err := c.exec.HeldQty(ctx, pos.Symbol)
		if err != nil {
			slog.Warn("position sync failed", "symbol", pos.Symbol, "error", err)
			continue
		}
		if qty != 0 {
			continue
		}
		if _, err := c.store.Close(pos.Symbol); err != nil {
			if !errors.Is(err, state.ErrNotOpen) {
				slog.Error("position sync close failed", "symbol", pos.Symbol, "error", err)
			}
			continue
		}
		slog.Warn("dropped externally liquidated position", "symbol", pos.Symbol, "entry_price", pos.EntryPrice)
	}
}
