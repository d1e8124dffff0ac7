package risk

import (
	"fmt"
	"log/slog"
	"time"
)

// EntryContext is everything the gate needs to approve or reject a buy.
type EntryContext struct {
	Now             time.Time
	Symbol          string
	Price           float64
	Notional        float64
	BuyingPower     float64
	LastPurchase    time.Time
	HasLastPurchase bool
	Cooldown        time.Duration
	MaxNotional     float64
	KillSwitch      bool
}

// Gate performs pre-trade checks on entries. A nil return approves the
// order; a non-nil error names the rejection reason. Exits are never gated:
// refusing to liquidate is riskier than liquidating.
type Gate struct{}

func (g Gate) ApproveEntry(ctx EntryContext) error {
	if ctx.KillSwitch {
		slog.Info("entry rejected", "symbol", ctx.Symbol, "reason", "kill_switch_enabled")
		return fmt.Errorf("kill_switch_enabled")
	}
	if ctx.HasLastPurchase && ctx.Now.Sub(ctx.LastPurchase) < ctx.Cooldown {
		remaining := ctx.Cooldown - ctx.Now.Sub(ctx.LastPurchase)
		slog.Info("entry rejected", "symbol", ctx.Symbol, "reason", "cooldown_active", "remaining", remaining)
		return fmt.Errorf("cooldown_active")
	}
	if ctx.Notional <= 0 {
		slog.Info("entry rejected", "symbol", ctx.Symbol, "reason", "zero_notional")
		return fmt.Errorf("zero_notional")
	}
	if ctx.Notional > ctx.BuyingPower {
		slog.Info("entry rejected", "symbol", ctx.Symbol, "reason", "insufficient_buying_power", "notional", ctx.Notional, "buying_power", ctx.BuyingPower)
		return fmt.Errorf("insufficient_buying_power")
	}
	if ctx.MaxNotional > 0 && ctx.Notional > ctx.MaxNotional {
		slog.Info("entry rejected", "symbol", ctx.Symbol, "reason", "max_notional_exceeded", "notional", ctx.Notional, "max", ctx.MaxNotional)
		return fmt.Errorf("max_notional_exceeded")
	}

	slog.Info("entry approved", "symbol", ctx.Symbol, "notional", ctx.Notional, "price", ctx.Price)
	return nil
}
