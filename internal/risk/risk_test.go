package risk

import (
	"testing"
	"time"
)

func TestGateRejectsCooldown(t *testing.T) {
	gate := Gate{}
	ctx := EntryContext{
		Now:             time.Now(),
		Symbol:          "AAPL",
		Price:           100,
		Notional:        500,
		BuyingPower:     10000,
		LastPurchase:    time.Now().Add(-24 * time.Hour),
		HasLastPurchase: true,
		Cooldown:        72 * time.Hour,
	}

	if err := gate.ApproveEntry(ctx); err == nil {
		t.Fatalf("expected cooldown rejection")
	}
}

func TestGateApprovesAfterCooldown(t *testing.T) {
	gate := Gate{}
	ctx := EntryContext{
		Now:             time.Now(),
		Symbol:          "AAPL",
		Price:           100,
		Notional:        500,
		BuyingPower:     10000,
		LastPurchase:    time.Now().Add(-96 * time.Hour),
		HasLastPurchase: true,
		Cooldown:        72 * time.Hour,
	}

	if err := gate.ApproveEntry(ctx); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}
}

func TestGateIgnoresCooldownWithoutPurchaseHistory(t *testing.T) {
	gate := Gate{}
	ctx := EntryContext{
		Now:         time.Now(),
		Symbol:      "AAPL",
		Price:       100,
		Notional:    500,
		BuyingPower: 10000,
		Cooldown:    72 * time.Hour,
	}

	if err := gate.ApproveEntry(ctx); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}
}

func TestGateRejectsKillSwitch(t *testing.T) {
	gate := Gate{}
	ctx := EntryContext{
		Now:         time.Now(),
		Symbol:      "AAPL",
		Price:       100,
		Notional:    500,
		BuyingPower: 10000,
		KillSwitch:  true,
	}

	if err := gate.ApproveEntry(ctx); err == nil {
		t.Fatalf("expected kill switch rejection")
	}
}

func TestGateRejectsInsufficientBuyingPower(t *testing.T) {
	gate := Gate{}
	ctx := EntryContext{
		Now:         time.Now(),
		Symbol:      "AAPL",
		Price:       100,
		Notional:    500,
		BuyingPower: 300,
	}

	if err := gate.ApproveEntry(ctx); err == nil {
		t.Fatalf("expected buying power rejection")
	}
}

func TestGateRejectsMaxNotional(t *testing.T) {
	gate := Gate{}
	ctx := EntryContext{
		Now:         time.Now(),
		Symbol:      "AAPL",
		Price:       100,
		Notional:    500,
		BuyingPower: 10000,
		MaxNotional: 200,
	}

	if err := gate.ApproveEntry(ctx); err == nil {
		t.Fatalf("expected max notional rejection")
	}
}
