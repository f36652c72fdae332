package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/api"
	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/calib"
	"github.com/coldbrook/fleetwatch/internal/clock"
	"github.com/coldbrook/fleetwatch/internal/config"
	"github.com/coldbrook/fleetwatch/internal/fleet"
	"github.com/coldbrook/fleetwatch/internal/history"
	"github.com/coldbrook/fleetwatch/internal/ingest"
)

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.StringVar(&overrides.MQTTBrokerURL, "mqtt-url", "", "MQTT broker URL (overrides MQTT_BROKER_URL)")
	flag.StringVar(&overrides.StateDir, "state-dir", "", "On-disk state directory (overrides STATE_DIR)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Str("commit", commit).Str("built", buildTime).Msg("fleetwatch starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("state_dir", cfg.StateDir).Msg("failed to create state directory")
	}

	// Bus adapter: exactly one of embedded broker / external MQTT / file
	// bus is used, mirroring cfg.Validate()'s "at least one" requirement.
	var adapter bus.Adapter
	var embedded *bus.EmbeddedBroker
	var mqttClient *bus.MQTTClient
	var fileBus *bus.FileBus
	switch {
	case cfg.MQTTBrokerURL != "":
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqttClient, err = bus.ConnectMQTT(bus.MQTTOptions{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqttClient.Close()
		adapter = mqttClient
		log.Info().Str("broker", cfg.MQTTBrokerURL).Msg("bus: connected to external mqtt broker")
	case cfg.LocalBrokerAddr != "":
		brokerLog := log.With().Str("component", "embedded-broker").Logger()
		embedded, err = bus.NewEmbeddedBroker(cfg.LocalBrokerAddr, brokerLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start embedded broker")
		}
		defer embedded.Close()
		mqttClient, err = bus.ConnectMQTT(bus.MQTTOptions{
			BrokerURL: "tcp://localhost" + cfg.LocalBrokerAddr,
			ClientID:  cfg.MQTTClientID,
			Log:       log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to embedded broker")
		}
		defer mqttClient.Close()
		adapter = mqttClient
	case cfg.WatchDir != "":
		fileBus, err = bus.NewFileBus(cfg.WatchDir, log.With().Str("component", "file-bus").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open file bus")
		}
		defer fileBus.Close()
		adapter = fileBus
		log.Info().Str("dir", cfg.WatchDir).Msg("bus: watching local notefile directory")
	}

	clk := clock.New()

	fleetStore, err := fleet.NewStore(cfg.MaxTankRecords, cfg.MaxDeviceRecords)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize fleet store")
	}

	calibStore := calib.NewStore(cfg.MaxCalibrationEntriesPerTank)

	configCachePath := filepath.Join(cfg.StateDir, "device-config-cache.tsv")
	configCache, err := ingest.LoadConfigCache(configCachePath, log.With().Str("component", "config-cache").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load device config cache")
	}

	var warmStore *history.WarmStore
	if cfg.DatabaseURL != "" {
		warmLog := log.With().Str("component", "warm-store").Logger()
		warmStore, err = history.ConnectWarmStore(ctx, cfg.DatabaseURL, warmLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to warm store")
		}
		defer warmStore.Close()
	}

	var coldArchive *history.ColdArchive
	if cfg.ArchiveEnabled {
		coldArchive, err = history.NewColdArchive(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix, cfg.ArchiveRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize cold archive")
		}
	}

	historyStore := history.NewStore(cfg.HotTierRetentionDays, warmStore, coldArchive, log.With().Str("component", "history").Logger())
	defer historyStore.Close()

	alertEngine := alert.NewEngine(adapter, alert.Policy{
		SMSOnHigh:  cfg.SMSOnHigh,
		SMSOnLow:   cfg.SMSOnLow,
		SMSOnClear: cfg.SMSOnClear,
	}, log.With().Str("component", "alert").Logger())

	scheduler := alert.NewScheduler(cfg.DailyEmailHour, cfg.DailyEmailMinute, cfg.DailyEmailTo, cfg.ViewerSummaryIntervalHours)
	contacts := alert.NewContactsStore(alert.Contacts{})

	pipeline := &ingest.Pipeline{
		Bus:      adapter,
		Clock:    clk,
		Fleet:    fleetStore,
		Calib:    calibStore,
		Config:   configCache,
		History:  historyStore,
		Alert:    alertEngine,
		Sched:    scheduler,
		Contacts: contacts,
		Log:      log.With().Str("component", "ingest").Logger(),
	}

	go pipeline.Run(ctx)

	pinPath := filepath.Join(cfg.StateDir, "admin-pin.sha256")
	bootPIN := cfg.AdminPIN
	if bootPIN == "" {
		if _, err := os.Stat(pinPath); os.IsNotExist(err) {
			generated, genErr := config.GenerateAdminPIN()
			if genErr != nil {
				log.Fatal().Err(genErr).Msg("failed to generate admin pin")
			}
			bootPIN = generated
			log.Warn().Str("pin", generated).Msg("ADMIN_PIN not set — generated a one-time pin, save it now")
		}
	}
	pins, err := api.NewPINStore(bootPIN, pinPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pin store")
	}

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:      cfg,
		Pipeline:    pipeline,
		Bus:         adapter,
		Fleet:       fleetStore,
		Calib:       calibStore,
		History:     historyStore,
		Alert:       alertEngine,
		Sched:       scheduler,
		Contacts:    contacts,
		ConfigCache: configCache,
		PINs:        pins,
		Log:         httpLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().Str("listen", cfg.HTTPAddr).Dur("startup_ms", time.Since(startTime)).Msg("fleetwatch ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if err := configCache.Save(configCachePath); err != nil {
		log.Error().Err(err).Msg("failed to persist device config cache")
	}

	log.Info().Msg("fleetwatch stopped")
}
