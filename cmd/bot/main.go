package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"meanrev/internal/api"
	"meanrev/internal/broker"
	"meanrev/internal/config"
	"meanrev/internal/engine"
	"meanrev/internal/ledger"
	"meanrev/internal/loop"
	"meanrev/internal/md"
	"meanrev/internal/notify"
	"meanrev/internal/risk"
	"meanrev/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	runID := ulid.Make().String()
	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
	if err != nil {
		log.Fatalf("decision logger error: %v", err)
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			log.Printf("failed to close decision logger: %v", err)
		}
	}()

	store := state.NewStore()
	if err := store.Load(cfg.CheckpointPath); err == nil {
		log.Printf("loaded checkpoint from %s", cfg.CheckpointPath)
	}

	activity := ledger.NewLedger()
	var journal engine.Recorder
	if cfg.JournalPath != "" {
		j, err := ledger.OpenJournal(cfg.JournalPath)
		if err != nil {
			log.Printf("journal disabled: %v", err)
		} else {
			journal = j
			defer func() {
				if err := j.Close(); err != nil {
					log.Printf("failed to close journal: %v", err)
				}
			}()
		}
	}

	brokerClient := broker.New(cfg.APIKey, cfg.APISecret, cfg.PaperBaseURL, cfg.RequestTimeout, cfg.TZ)
	marketData := md.New(cfg.APIKey, cfg.APISecret, cfg.Feed, cfg.RequestTimeout)

	var sinks []notify.Sink
	if cfg.SMTPHost != "" && cfg.MailTo != "" {
		sinks = append(sinks, notify.NewEmailSink(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, cfg.MailTo))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.WebhookURL, cfg.RequestTimeout))
	}
	reporter := notify.NewReporter(activity, sinks...)

	controller := engine.NewController(cfg, marketData, brokerClient, store, risk.Gate{}, activity, journal, decisions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Printf("shutdown signal received")
		cancel()
	}()

	if cfg.StatusAddr != "" {
		statusSrv := &http.Server{
			Addr:    cfg.StatusAddr,
			Handler: api.SetupRoutes(api.NewHandler(store, activity, runID)),
		}
		go func() {
			log.Printf("status API listening on %s", cfg.StatusAddr)
			if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("status API stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = statusSrv.Shutdown(shutdownCtx)
		}()
	}

	controller.SyncPositions(ctx)

	tradingLoop := loop.New(controller, brokerClient, reporter, loop.Config{
		OpenInterval:   cfg.OpenInterval,
		ClosedInterval: cfg.ClosedInterval,
		Backoff:        cfg.Backoff,
		SummaryHour:    cfg.SummaryHour,
		SummaryMinute:  cfg.SummaryMinute,
		TZ:             cfg.TZ,
	})

	log.Printf("starting bot run_id=%s symbols=%d feed=%s", runID, len(cfg.Watchlist), cfg.Feed)
	if err := tradingLoop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("trading loop stopped: %v", err)
	}

	if err := store.Save(cfg.CheckpointPath); err != nil {
		log.Printf("failed to save checkpoint: %v", err)
	}
	log.Printf("bot shutdown complete")
}
