package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the process. All values are fixed for the
// process lifetime once Load returns.
type Config struct {
	Watchlist     []string
	WatchlistFile string

	Lookback       int
	EntryZ         float64
	ExitZ          float64
	PanicZ         float64
	HardTakeProfit float64
	MaxHold        time.Duration
	Cooldown       time.Duration
	AllocFraction  float64
	MaxNotional    float64
	KillSwitch     bool

	OpenInterval   time.Duration
	ClosedInterval time.Duration
	Backoff        time.Duration
	RequestTimeout time.Duration
	SummaryAfter   string
	SummaryHour    int
	SummaryMinute  int

	TimeZone string
	TZ       *time.Location

	Feed           string
	DecisionsPath  string
	CheckpointPath string
	JournalPath    string
	StatusAddr     string
	PaperBaseURL   string
	APIKey         string
	APISecret      string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	MailTo       string
	WebhookURL   string
}

func Load() (Config, error) {
	var cfg Config
	var watchlist string

	loadDotEnvIfPresent(".env")

	flag.StringVar(&watchlist, "watchlist", "AAPL,MSFT,KO,PG,JPM,SPY,XLU", "comma-separated symbols to evaluate")
	flag.StringVar(&cfg.WatchlistFile, "watchlist-file", "", "YAML file with a symbols list (overrides -watchlist)")
	flag.IntVar(&cfg.Lookback, "lookback", 20, "daily bars in the rolling statistics window")
	flag.Float64Var(&cfg.EntryZ, "entry-z", 1.5, "z-score at or below -entry-z triggers an entry")
	flag.Float64Var(&cfg.ExitZ, "exit-z", 0.25, "z-score at or above exit-z triggers an exit")
	flag.Float64Var(&cfg.PanicZ, "panic-z", -3.0, "z-score at or below panic-z forces an exit")
	flag.Float64Var(&cfg.HardTakeProfit, "hard-take-profit", 1.05, "price multiple of entry that forces an exit")
	flag.DurationVar(&cfg.MaxHold, "max-hold", 240*time.Hour, "maximum holding duration before a forced exit")
	flag.DurationVar(&cfg.Cooldown, "cooldown", 72*time.Hour, "minimum time between purchases of the same symbol")
	flag.Float64Var(&cfg.AllocFraction, "alloc-fraction", 0.05, "fraction of buying power per entry")
	flag.Float64Var(&cfg.MaxNotional, "max-notional", 0, "cap on notional per order, 0 disables the cap")
	flag.BoolVar(&cfg.KillSwitch, "kill-switch", false, "if true, never place orders")
	flag.DurationVar(&cfg.OpenInterval, "open-interval", 2*time.Minute, "pause between passes while the market is open")
	flag.DurationVar(&cfg.ClosedInterval, "closed-interval", 30*time.Minute, "pause between passes while the market is closed")
	flag.DurationVar(&cfg.Backoff, "backoff", time.Minute, "pause after a failed pass")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", 10*time.Second, "timeout for each broker or data API call")
	flag.StringVar(&cfg.SummaryAfter, "summary-after", "13:05", "local clock time after which the daily summary may fire")
	flag.StringVar(&cfg.TimeZone, "timezone", "America/Los_Angeles", "canonical time zone for entry times and summaries")
	flag.StringVar(&cfg.Feed, "feed", "iex", "market data feed: iex or sip")
	flag.StringVar(&cfg.DecisionsPath, "decisions-path", "decisions.ndjson", "path to decisions log")
	flag.StringVar(&cfg.CheckpointPath, "checkpoint-path", "checkpoint.json", "path to position checkpoint file")
	flag.StringVar(&cfg.JournalPath, "journal-path", "activity.db", "path to activity journal database, empty disables")
	flag.StringVar(&cfg.StatusAddr, "status-addr", "", "listen address for the status API, empty disables")
	flag.StringVar(&cfg.PaperBaseURL, "paper-base-url", "https://paper-api.alpaca.markets", "paper trading base URL")
	flag.StringVar(&cfg.SMTPHost, "smtp-host", "", "SMTP host for summary email, empty disables")
	flag.IntVar(&cfg.SMTPPort, "smtp-port", 587, "SMTP port")
	flag.StringVar(&cfg.SMTPUser, "smtp-user", "", "SMTP user")
	flag.StringVar(&cfg.MailFrom, "mail-from", "", "summary email sender")
	flag.StringVar(&cfg.MailTo, "mail-to", "", "summary email recipient")
	flag.Parse()

	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")
	cfg.SMTPPassword = os.Getenv("MAIL_PASSWORD")
	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")

	if cfg.WatchlistFile != "" {
		symbols, err := loadWatchlistFile(cfg.WatchlistFile)
		if err != nil {
			return cfg, err
		}
		cfg.Watchlist = symbols
	} else {
		cfg.Watchlist = splitSymbols(watchlist)
	}

	hour, minute, err := parseClock(cfg.SummaryAfter)
	if err != nil {
		return cfg, err
	}
	cfg.SummaryHour, cfg.SummaryMinute = hour, minute

	tz, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return cfg, fmt.Errorf("invalid timezone %q: %w", cfg.TimeZone, err)
	}
	cfg.TZ = tz

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if len(cfg.Watchlist) == 0 {
		return fmt.Errorf("watchlist must not be empty")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
	}
	if cfg.Lookback < 2 {
		return fmt.Errorf("lookback must be >= 2")
	}
	if cfg.EntryZ <= 0 {
		return fmt.Errorf("entry-z must be > 0")
	}
	if cfg.HardTakeProfit <= 1 {
		return fmt.Errorf("hard-take-profit must be > 1")
	}
	if cfg.PanicZ >= 0 {
		return fmt.Errorf("panic-z must be < 0")
	}
	if cfg.MaxHold <= 0 {
		return fmt.Errorf("max-hold must be > 0")
	}
	if cfg.Cooldown < 0 {
		return fmt.Errorf("cooldown must be >= 0")
	}
	if cfg.AllocFraction <= 0 || cfg.AllocFraction > 1 {
		return fmt.Errorf("alloc-fraction must be in (0, 1]")
	}
	if cfg.MaxNotional < 0 {
		return fmt.Errorf("max-notional must be >= 0")
	}
	if cfg.OpenInterval <= 0 || cfg.ClosedInterval <= 0 || cfg.Backoff <= 0 {
		return fmt.Errorf("intervals and backoff must be > 0")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be > 0")
	}
	if cfg.Feed != "iex" && cfg.Feed != "sip" {
		return fmt.Errorf("invalid feed: %s", cfg.Feed)
	}
	return nil
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

type watchlistFile struct {
	Symbols []string `yaml:"symbols"`
}

func loadWatchlistFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist file: %w", err)
	}
	var wf watchlistFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse watchlist file: %w", err)
	}
	symbols := make([]string, 0, len(wf.Symbols))
	for _, s := range wf.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols, nil
}

func parseClock(value string) (int, int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", value, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
