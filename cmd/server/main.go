package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/slabwatch/slabwatch/internal/config"
	"github.com/slabwatch/slabwatch/internal/ebay"
	"github.com/slabwatch/slabwatch/internal/fairvalue"
	"github.com/slabwatch/slabwatch/internal/history"
	"github.com/slabwatch/slabwatch/internal/roi"
	"github.com/slabwatch/slabwatch/internal/scanner"
	"github.com/slabwatch/slabwatch/internal/scheduler"
	"github.com/slabwatch/slabwatch/internal/server"
	"github.com/slabwatch/slabwatch/internal/soldprice"
	"github.com/slabwatch/slabwatch/internal/store"
	"github.com/slabwatch/slabwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger not up yet.
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty || cfg.DevMode,
	})
	logger.SetGlobalLogger(log)
	log.Info().Msg("starting slabwatch")

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	var (
		scan      *scanner.Scanner
		collector *history.Collector
	)
	if cfg.MarketplaceConfigured() {
		tokens := ebay.NewTokenProvider(cfg.EbayClientID, cfg.EbayClientSecret, "")
		client := ebay.NewClient(ebay.Config{MarketplaceID: cfg.EbayMarketplace}, tokens, log)

		resolver := fairvalue.NewResolver(st)
		roiModel := roi.NewModel(resolver, roi.DefaultPolicy())

		// One card at a time, paced for the marketplace's usage policy.
		limiter := rate.NewLimiter(rate.Every(cfg.InterCardDelay), 1)
		scan = scanner.New(scanner.Config{
			PerChannelLimit:  cfg.PerChannelLimit,
			MaxOpportunities: cfg.MaxOpportunities,
		}, client, st, st, resolver, roiModel, limiter, log)

		var fallback history.FallbackSource
		if cfg.SoldPriceFallback {
			fallback = soldprice.NewClient(soldprice.Config{})
		}
		collectLimiter := rate.NewLimiter(rate.Every(cfg.InterCardDelay), 1)
		collector = history.NewCollector(client, fallback, st, st, collectLimiter, log)
	} else {
		log.Warn().Msg("marketplace credentials missing, scan and collection disabled")
	}

	srv := server.New(server.Config{
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	}, st, scan, collector, log)

	sched := scheduler.New(log)
	if err := sched.AddJob("@daily", job{"dismissal-cleanup", func() error {
		n, err := st.CleanupExpiredDismissals(time.Now())
		if err != nil {
			return err
		}
		log.Info().Int("removed", n).Msg("expired dismissals cleaned up")
		return nil
	}}); err != nil {
		log.Fatal().Err(err).Msg("failed to register cleanup job")
	}
	if scan != nil {
		if err := sched.AddJob(cfg.ScanSchedule, job{"scan", srv.RunScan}); err != nil {
			log.Fatal().Err(err).Msg("failed to register scan job")
		}
	}
	if collector != nil {
		if err := sched.AddJob(cfg.CollectionSchedule, job{"collect", srv.RunCollection}); err != nil {
			log.Fatal().Err(err).Msg("failed to register collection job")
		}
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("stopped")
}

// job adapts a func to the scheduler's Job interface.
type job struct {
	name string
	run  func() error
}

func (j job) Name() string { return j.name }
func (j job) Run() error   { return j.run() }
