package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

// Client wraps the Alpaca trading API as the execution side of the bot:
// notional buys, full-position sells, buying power, and the market clock.
type Client struct {
	client *alpaca.Client
	tz     *time.Location
}

func New(apiKey, apiSecret, baseURL string, timeout time.Duration, tz *time.Location) *Client {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	if timeout > 0 {
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if tz == nil {
		tz = time.UTC
	}
	return &Client{client: alpaca.NewClient(opts), tz: tz}
}

// SubmitBuy places a notional market order and returns the filled average
// price when the broker reports one (zero while the fill is pending).
func (c *Client) SubmitBuy(ctx context.Context, symbol string, notional float64) (float64, error) {
	amount := decimal.NewFromFloat(notional).Round(2)
	order, err := c.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Notional:    &amount,
		Side:        alpaca.Buy,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		slog.Error("buy order failed", "symbol", symbol, "notional", notional, "error", err)
		return 0, fmt.Errorf("buy %s: %w", symbol, err)
	}

	slog.Info("buy order submitted", "symbol", symbol, "notional", notional, "order_id", order.ID, "status", order.Status)
	if order.FilledAvgPrice != nil {
		price, _ := order.FilledAvgPrice.Float64()
		return price, nil
	}
	return 0, nil
}

// SubmitSell liquidates the entire position for the symbol.
func (c *Client) SubmitSell(ctx context.Context, symbol string) error {
	order, err := c.client.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err != nil {
		slog.Error("sell order failed", "symbol", symbol, "error", err)
		return fmt.Errorf("sell %s: %w", symbol, err)
	}
	slog.Info("sell order submitted", "symbol", symbol, "order_id", order.ID, "status", order.Status)
	return nil
}

func (c *Client) BuyingPower(ctx context.Context) (float64, error) {
	acct, err := c.client.GetAccount()
	if err != nil {
		slog.Error("fetch account failed", "error", err)
		return 0, fmt.Errorf("account: %w", err)
	}
	buyingPower, _ := acct.BuyingPower.Float64()
	return buyingPower, nil
}

// HeldQty reports the quantity the broker actually holds. A 404 from the
// positions endpoint means no position and is not an error.
func (c *Client) HeldQty(ctx context.Context, symbol string) (float64, error) {
	pos, err := c.client.GetPosition(symbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return 0, nil
		}
		slog.Error("fetch position failed", "symbol", symbol, "error", err)
		return 0, fmt.Errorf("position %s: %w", symbol, err)
	}
	qty, _ := pos.Qty.Float64()
	return qty, nil
}

// IsOpen consults the exchange clock. When the clock endpoint fails it falls
// back to a regular-hours window in the configured time zone so the loop can
// still pick a cadence.
func (c *Client) IsOpen(ctx context.Context) (bool, error) {
	clock, err := c.client.GetClock()
	if err != nil {
		slog.Warn("fetch clock failed, using local market hours", "error", err)
		return regularHours(time.Now().In(c.tz)), nil
	}
	return clock.IsOpen, nil
}

// regularHours approximates NYSE regular hours in the configured zone,
// ignoring holidays. 6:30-13:00 in Pacific time.
func regularHours(now time.Time) bool {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 6*60+30 && minutes < 13*60
}
