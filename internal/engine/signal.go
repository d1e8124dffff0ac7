package engine

import (
	"math"
	"time"
)

type Action string

const (
	EnterLong    Action = "ENTER_LONG"
	ExitLong     Action = "EXIT_LONG"
	HoldPosition Action = "HOLD"
	NoAction     Action = "NO_ACTION"
	Skip         Action = "SKIP"
)

// SignalInput carries everything the engine needs for one symbol. All
// position memory (entry price, entry time) lives in the store; the engine
// itself is stateless.
type SignalInput struct {
	LatestPrice     float64
	Average         float64
	Stdev           float64
	HasPosition     bool
	EntryPrice      float64
	HoldingDuration time.Duration
}

type SignalParams struct {
	EntryZ         float64
	ExitZ          float64
	HardTakeProfit float64
	PanicZ         float64
	MaxHold        time.Duration
}

type Signal struct {
	Action Action
	ZScore float64
	Reason string
}

// Evaluate turns current price statistics and position state into a trading
// decision. Skip means the inputs were unusable (missing statistics or zero
// stdev) and no conclusion can be drawn; it is distinct from a hold.
func Evaluate(in SignalInput, p SignalParams) Signal {
	if !usable(in.LatestPrice) || !usable(in.Average) || !usable(in.Stdev) || in.Stdev <= 0 {
		return Signal{Action: Skip, Reason: "insufficient_data"}
	}

	z := (in.LatestPrice - in.Average) / in.Stdev

	if !in.HasPosition {
		if z <= -p.EntryZ {
			return Signal{Action: EnterLong, ZScore: z, Reason: "z_below_entry_band"}
		}
		return Signal{Action: NoAction, ZScore: z, Reason: "no_signal"}
	}

	switch {
	case z >= p.ExitZ:
		return Signal{Action: ExitLong, ZScore: z, Reason: "reverted_to_mean"}
	case in.LatestPrice >= in.EntryPrice*p.HardTakeProfit:
		return Signal{Action: ExitLong, ZScore: z, Reason: "hard_take_profit"}
	case in.HoldingDuration >= p.MaxHold:
		return Signal{Action: ExitLong, ZScore: z, Reason: "max_hold_elapsed"}
	case z <= p.PanicZ:
		return Signal{Action: ExitLong, ZScore: z, Reason: "panic_exit"}
	}

	return Signal{Action: HoldPosition, ZScore: z, Reason: "holding"}
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
