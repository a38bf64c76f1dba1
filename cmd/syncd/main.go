package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/subsync/internal/archive"
	"github.com/edvin/subsync/internal/booking"
	"github.com/edvin/subsync/internal/config"
	"github.com/edvin/subsync/internal/crm"
	"github.com/edvin/subsync/internal/derive"
	"github.com/edvin/subsync/internal/fetch"
	"github.com/edvin/subsync/internal/logging"
	"github.com/edvin/subsync/internal/normalize"
	"github.com/edvin/subsync/internal/ops"
	"github.com/edvin/subsync/internal/payments"
	"github.com/edvin/subsync/internal/reconcile"
	"github.com/edvin/subsync/internal/runner"
	"github.com/edvin/subsync/internal/sheet"
)

func main() {
	once := flag.Bool("once", false, "run a single synchronization and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.SettingsPath).Msg("failed to load settings")
	}

	fetchOpts := fetch.Options{
		PageSize:   settings.Fetch.PageSize,
		MaxRetries: settings.Fetch.MaxRetries,
		BaseDelay:  time.Duration(settings.Fetch.BaseDelaySeconds) * time.Second,
		Timeout:    time.Duration(settings.Fetch.TimeoutSeconds) * time.Second,
	}

	bookingClient := booking.NewClient(logger, settings.Sources.Booking, cfg.BookingAPIKey, cfg.BookingTenant, fetchOpts)
	paymentsClient := payments.NewClient(logger, settings.Sources.Payments, cfg.PaymentsAPIKey, settings.Time.OffsetHours, fetchOpts)

	var contracts runner.ContractSource
	if cfg.CRMEnabled() && settings.Sources.CRM.BaseURL != "" {
		contracts = crm.NewClient(logger, settings.Sources.CRM, cfg.CRMEmail, cfg.CRMPassword, fetchOpts.Timeout)
	}

	tokens, err := sheet.NewAzureTokenProvider(cfg.AzureDirectoryID, cfg.AzureAppID, cfg.AzureClientSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build azure credential")
	}
	sheetClient := sheet.NewClient(logger, tokens, settings.Sheet)

	var snapshots runner.SnapshotStore
	if cfg.ArchiveEnabled() {
		snapshots = archive.NewUploader(logger, cfg.ArchiveS3Endpoint, cfg.ArchiveS3Bucket,
			cfg.ArchiveS3AccessKey, cfg.ArchiveS3SecretKey)
	}

	rules := normalize.NewRules(settings.Rules)
	run := runner.New(logger, prometheus.DefaultRegisterer, runner.Options{
		Booking:   bookingClient,
		Invoices:  paymentsClient,
		Contracts: contracts,
		Sheet:     sheetClient,
		Snapshots: snapshots,
		Joiner:    reconcile.NewJoiner(rules, settings.Time.OffsetHours),
		Engine:    derive.NewEngine(settings.Windows, settings.Labels, settings.Time.Locale),
		Labels:    settings.Labels,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if _, err := run.Run(ctx); err != nil {
			logger.Fatal().Err(err).Msg("synchronization failed")
		}
		return
	}

	server := ops.NewServer(logger, run)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := server.Start(ctx, cfg.HTTPListenAddr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return runLoop(ctx, run, settings.Run.IntervalMinutes, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("syncd exited with error")
	}
}

// runLoop executes a run immediately and then on the configured interval.
// An interval of zero means runs happen only through the trigger endpoint.
func runLoop(ctx context.Context, run *runner.Runner, intervalMinutes int, logger zerolog.Logger) error {
	if _, err := run.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("initial synchronization failed")
	}
	if intervalMinutes <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := run.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("scheduled synchronization failed")
			}
		}
	}
}
