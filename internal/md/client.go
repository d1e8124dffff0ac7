package md

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// Client fetches prices and rolling statistics from the Alpaca data API.
type Client struct {
	api  *marketdata.Client
	feed marketdata.Feed
}

func New(apiKey, apiSecret, feed string, timeout time.Duration) *Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if timeout > 0 {
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		api:  marketdata.NewClient(opts),
		feed: parseFeed(feed),
	}
}

func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	trade, err := c.api.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{
		Feed: c.feed,
	})
	if err != nil {
		slog.Error("fetch latest trade failed", "symbol", symbol, "error", err)
		return 0, fmt.Errorf("latest trade for %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return 0, fmt.Errorf("latest trade for %s: %w", symbol, ErrUnavailable)
	}
	return trade.Price, nil
}

// HistoricalStats returns the mean and sample standard deviation of the
// closing prices over the last lookback daily bars. ErrUnavailable is
// returned when fewer than two closes exist, since the sample stdev is
// undefined for a single point.
func (c *Client) HistoricalStats(ctx context.Context, symbol string, lookback int) (float64, float64, error) {
	// Pull twice the lookback in calendar days so weekends and holidays
	// still leave enough trading-day bars.
	start := time.Now().AddDate(0, 0, -lookback*2)
	bars, err := c.api.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Raw,
		Start:      start,
		TotalLimit: lookback,
		Feed:       c.feed,
	})
	if err != nil {
		slog.Error("fetch bars failed", "symbol", symbol, "lookback", lookback, "error", err)
		return 0, 0, fmt.Errorf("bars for %s: %w", symbol, err)
	}

	closes := make([]float64, 0, len(bars))
	for _, bar := range bars {
		closes = append(closes, bar.Close)
	}
	if len(closes) < 2 {
		return 0, 0, fmt.Errorf("bars for %s: %w", symbol, ErrUnavailable)
	}

	average, err := Mean(closes)
	if err != nil {
		return 0, 0, err
	}
	stdev, err := SampleStdev(closes)
	if err != nil {
		return 0, 0, err
	}
	return average, stdev, nil
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "iex":
		return marketdata.IEX
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}
