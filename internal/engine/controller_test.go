package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"meanrev/internal/config"
	"meanrev/internal/ledger"
	"meanrev/internal/risk"
	"meanrev/internal/state"
)

type fakeMarket struct {
	price    float64
	average  float64
	stdev    float64
	priceErr error
	statsErr error
}

func (f *fakeMarket) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return f.price, f.priceErr
}

func (f *fakeMarket) HistoricalStats(ctx context.Context, symbol string, lookback int) (float64, float64, error) {
	return f.average, f.stdev, f.statsErr
}

type buyCall struct {
	symbol   string
	notional float64
}

type fakeExec struct {
	buyingPower float64
	fillPrice   float64
	buyErr      error
	sellErr     error
	buys        []buyCall
	sells       []string
	held        map[string]float64
}

func (f *fakeExec) SubmitBuy(ctx context.Context, symbol string, notional float64) (float64, error) {
	if f.buyErr != nil {
		return 0, f.buyErr
	}
	f.buys = append(f.buys, buyCall{symbol: symbol, notional: notional})
	return f.fillPrice, nil
}

func (f *fakeExec) SubmitSell(ctx context.Context, symbol string) error {
	if f.sellErr != nil {
		return f.sellErr
	}
	f.sells = append(f.sells, symbol)
	return nil
}

func (f *fakeExec) BuyingPower(ctx context.Context) (float64, error) {
	return f.buyingPower, nil
}

func (f *fakeExec) HeldQty(ctx context.Context, symbol string) (float64, error) {
	return f.held[symbol], nil
}

func testConfig() config.Config {
	return config.Config{
		Watchlist:      []string{"XYZ"},
		Lookback:       20,
		EntryZ:         2.0,
		ExitZ:          0.1,
		PanicZ:         -4.0,
		HardTakeProfit: 1.2,
		MaxHold:        240 * time.Hour,
		Cooldown:       72 * time.Hour,
		AllocFraction:  0.05,
		TZ:             time.UTC,
	}
}

func newTestController(cfg config.Config, market MarketData, exec Execution, store *state.Store, led *ledger.Ledger) *Controller {
	return NewController(cfg, market, exec, store, risk.Gate{}, led, nil, nil)
}

func TestPassEntersOnDeepDip(t *testing.T) {
	market := &fakeMarket{price: 39, average: 50, stdev: 5}
	exec := &fakeExec{buyingPower: 10000}
	store := state.NewStore()
	led := ledger.NewLedger()
	ctrl := newTestController(testConfig(), market, exec, store, led)

	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(exec.buys) != 1 {
		t.Fatalf("expected 1 buy, got %d", len(exec.buys))
	}
	if exec.buys[0].notional != 500 {
		t.Fatalf("expected notional 0.05*10000=500, got %.2f", exec.buys[0].notional)
	}
	pos, ok := store.Get("XYZ")
	if !ok || pos.EntryPrice != 39 {
		t.Fatalf("expected open position at 39, got %+v ok=%v", pos, ok)
	}
	events := led.Snapshot()
	if len(events) != 1 || events[0].OrderType != ledger.Buy {
		t.Fatalf("expected one buy event, got %+v", events)
	}
}

func TestPassUsesFillPriceWhenReported(t *testing.T) {
	market := &fakeMarket{price: 39, average: 50, stdev: 5}
	exec := &fakeExec{buyingPower: 10000, fillPrice: 39.12}
	store := state.NewStore()
	ctrl := newTestController(testConfig(), market, exec, store, ledger.NewLedger())

	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ := store.Get("XYZ")
	if pos.EntryPrice != 39.12 {
		t.Fatalf("expected entry at fill price 39.12, got %.2f", pos.EntryPrice)
	}
}

func TestEntryThenExitScenario(t *testing.T) {
	market := &fakeMarket{price: 39, average: 50, stdev: 5}
	exec := &fakeExec{buyingPower: 10000}
	store := state.NewStore()
	led := ledger.NewLedger()
	ctrl := newTestController(testConfig(), market, exec, store, led)

	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Get("XYZ"); !ok {
		t.Fatalf("expected position after first pass")
	}

	// next pass: price reverted above the mean, z = 0.1 >= exitZ
	market.price = 50.5
	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(exec.sells) != 1 || exec.sells[0] != "XYZ" {
		t.Fatalf("expected one sell of XYZ, got %v", exec.sells)
	}
	if _, ok := store.Get("XYZ"); ok {
		t.Fatalf("expected position to be closed")
	}
	events := led.Snapshot()
	if len(events) != 2 || events[0].OrderType != ledger.Buy || events[1].OrderType != ledger.Sell {
		t.Fatalf("expected buy then sell in ledger, got %+v", events)
	}
	if events[1].Price != 50.5 {
		t.Fatalf("expected sell recorded at 50.5, got %.2f", events[1].Price)
	}
}

func TestCooldownBlocksRebuyAfterSell(t *testing.T) {
	market := &fakeMarket{price: 39, average: 50, stdev: 5}
	exec := &fakeExec{buyingPower: 10000}
	store := state.NewStore()
	ctrl := newTestController(testConfig(), market, exec, store, ledger.NewLedger())

	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	ctrl.now = func() time.Time { return base }

	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// sell an hour later, then re-qualify immediately
	market.price = 50.5
	ctrl.now = func() time.Time { return base.Add(time.Hour) }
	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	market.price = 39
	ctrl.now = func() time.Time { return base.Add(2 * time.Hour) }
	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.buys) != 1 {
		t.Fatalf("expected cooldown to block the re-buy, got %d buys", len(exec.buys))
	}

	// past the cooldown window the same signal buys again
	ctrl.now = func() time.Time { return base.Add(73 * time.Hour) }
	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.buys) != 2 {
		t.Fatalf("expected re-buy after cooldown, got %d buys", len(exec.buys))
	}
}

func TestBuyFailureLeavesStateUntouchedAndRetriesIdentically(t *testing.T) {
	market := &fakeMarket{price: 39, average: 50, stdev: 5}
	exec := &fakeExec{buyingPower: 10000, buyErr: errors.New("broker rejected")}
	store := state.NewStore()
	led := ledger.NewLedger()
	ctrl := newTestController(testConfig(), market, exec, store, led)

	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Get("XYZ"); ok {
		t.Fatalf("failed buy must not open a position")
	}
	if led.Len() != 0 {
		t.Fatalf("failed buy must not append an event")
	}

	// same inputs, broker recovered: the replayed pass reaches the same decision
	exec.buyErr = nil
	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.buys) != 1 {
		t.Fatalf("expected retry to buy, got %d buys", len(exec.buys))
	}
}

func TestSellFailureKeepsPositionOpen(t *testing.T) {
	market := &fakeMarket{price: 39, average: 50, stdev: 5}
	exec := &fakeExec{buyingPower: 10000}
	store := state.NewStore()
	led := ledger.NewLedger()
	ctrl := newTestController(testConfig(), market, exec, store, led)

	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	market.price = 50.5
	exec.sellErr = errors.New("timeout")
	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Get("XYZ"); !ok {
		t.Fatalf("failed sell must leave the position open")
	}

	exec.sellErr = nil
	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Get("XYZ"); ok {
		t.Fatalf("expected retry to close the position")
	}
	if led.Len() != 2 {
		t.Fatalf("expected buy and sell events, got %d", led.Len())
	}
}

func TestUnavailableStatsSkipWithoutMutation(t *testing.T) {
	market := &fakeMarket{statsErr: errors.New("not enough bars")}
	exec := &fakeExec{buyingPower: 10000}
	store := state.NewStore()
	led := ledger.NewLedger()
	ctrl := newTestController(testConfig(), market, exec, store, led)

	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.buys) != 0 || len(exec.sells) != 0 || led.Len() != 0 {
		t.Fatalf("skip must not trade or record")
	}
}

func TestZeroStdevSkipsEvenWithPosition(t *testing.T) {
	market := &fakeMarket{price: 50, average: 50, stdev: 0}
	exec := &fakeExec{buyingPower: 10000}
	store := state.NewStore()
	if err := store.Open("XYZ", 45, time.Now().UTC()); err != nil {
		t.Fatalf("open: %v", err)
	}
	ctrl := newTestController(testConfig(), market, exec, store, ledger.NewLedger())

	if err := ctrl.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.sells) != 0 {
		t.Fatalf("skip must not sell")
	}
	if _, ok := store.Get("XYZ"); !ok {
		t.Fatalf("skip must not mutate the store")
	}
}

func TestCancelledContextStopsBetweenSymbols(t *testing.T) {
	cfg := testConfig()
	cfg.Watchlist = []string{"A", "B", "C"}
	market := &fakeMarket{price: 39, average: 50, stdev: 5}
	exec := &fakeExec{buyingPower: 10000}
	ctrl := newTestController(cfg, market, exec, state.NewStore(), ledger.NewLedger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.RunPass(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(exec.buys) != 0 {
		t.Fatalf("cancelled pass must not trade")
	}
}

func TestSyncPositionsDropsExternallyLiquidated(t *testing.T) {
	exec := &fakeExec{held: map[string]float64{"XYZ": 0, "KO": 10}}
	store := state.NewStore()
	now := time.Now().UTC()
	if err := store.Open("XYZ", 39, now); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Open("KO", 61, now); err != nil {
		t.Fatalf("open: %v", err)
	}
	ctrl := newTestController(testConfig(), &fakeMarket{}, exec, store, ledger.NewLedger())

	ctrl.SyncPositions(context.Background())

	if _, ok := store.Get("XYZ"); ok {
		t.Fatalf("expected externally liquidated XYZ to be dropped")
	}
	if _, ok := store.Get("KO"); !ok {
		t.Fatalf("expected held KO to survive sync")
	}
}
