package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/mqttgate/internal/api"
	"github.com/nerrad567/mqttgate/internal/history"
	"github.com/nerrad567/mqttgate/internal/infrastructure/config"
	"github.com/nerrad567/mqttgate/internal/infrastructure/database"
	"github.com/nerrad567/mqttgate/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqttgate/internal/infrastructure/logging"
	"github.com/nerrad567/mqttgate/internal/metrics"
	"github.com/nerrad567/mqttgate/internal/publisher"
	"github.com/nerrad567/mqttgate/internal/watch"
	"github.com/nerrad567/mqttgate/migrations"
)

// run is the serve command, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting mqttgate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log.Info("configuration loaded",
		"path", configPath,
		"broker", cfg.Broker.Type,
		"level", cfg.Logging.Level,
	)

	// Metrics registry (private, served on /metrics)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	observers := []publisher.Observer{m}

	// Publish history (optional)
	var historyRepo history.Repository
	var recorder *history.Recorder
	var historyDB *database.DB
	if cfg.History.Enabled {
		db, openErr := openHistory(ctx, cfg.History)
		if openErr != nil {
			return openErr
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing history database", "error", closeErr)
			}
		}()
		log.Info("history database ready", "path", db.Path())

		repo := history.NewSQLiteRepository(db.DB)
		historyRepo = repo
		recorder = history.NewRecorder(repo, log)
		if err := metrics.RegisterHistoryDropped(reg, recorder.Dropped); err != nil {
			return fmt.Errorf("registering history metrics: %w", err)
		}
		observers = append(observers, recorder)
		historyDB = db
	} else {
		log.Info("publish history disabled")
	}

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		observers = append(observers, influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Broker connection
	b, err := connectBackend(cfg, log)
	if err != nil {
		return err
	}

	gw, err := publisher.New(publisher.Deps{
		Transport: b.transport,
		Backend:   cfg.Broker.Type,
		Timeout:   cfg.GetPublishTimeout(),
		Observers: observers,
	})
	if err != nil {
		_ = b.transport.Close()
		return fmt.Errorf("creating publisher gateway: %w", err)
	}
	defer func() {
		log.Info("disconnecting from broker", "backend", cfg.Broker.Type)
		if closeErr := gw.Close(); closeErr != nil {
			log.Error("error closing broker connection", "error", closeErr)
		}
	}()

	status := &brokerStatus{backend: cfg.Broker.Type, metrics: m, log: log}
	if influxClient != nil {
		status.influx = influxClient
	}
	status.set(gw.IsConnected())
	if b.mqtt != nil {
		b.mqtt.SetOnConnect(func() { status.set(true) })
		b.mqtt.SetOnDisconnect(func(error) { status.set(false) })
	}

	// Watch relay (optional, mqtt only)
	var hub *watch.Hub
	var watchHandler api.WatchHandler
	if cfg.Watch.Enabled {
		hub = watch.NewHub(cfg.WebSocket, log)
		if err := hub.Attach(b.mqtt, cfg.Watch.Filter, byte(cfg.Watch.QoS)); err != nil { //nolint:gosec // QoS validated 0-2
			return fmt.Errorf("attaching watch relay: %w", err)
		}
		watchHandler = hub
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		Logger:    log,
		Publisher: gw,
		History:   historyRepo,
		Gatherer:  reg,
		Watch:     watchHandler,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	// Background work stops when the signal context is cancelled.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return server.Close()
	})
	if hub != nil {
		g.Go(func() error { return hub.Run(gctx) })
	}
	if recorder != nil {
		g.Go(func() error { return recorder.Run(gctx) })
	}
	if b.mqtt == nil {
		g.Go(func() error { return status.poll(gctx, gw) })
	}

	if err := healthCheck(ctx, b, server, influxClient, historyDB); err != nil {
		log.Warn("startup health check failed", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	if cfg.Security.JWT.Secret == "" {
		log.Warn("security.jwt.secret not set, /send is unauthenticated")
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", server.Addr(),
	)

	err = g.Wait()

	// Deferred Close() calls run in reverse order:
	// 1. Broker connection
	// 2. InfluxDB (if enabled)
	// 3. History database (if enabled)
	log.Info("shutdown signal received, cleaning up")
	if err != nil {
		return err
	}

	log.Info("mqttgate stopped")
	return nil
}

// openHistory opens the SQLite publish log and applies embedded migrations.
func openHistory(ctx context.Context, cfg config.HistoryConfig) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running history migrations: %w", err)
	}
	return db, nil
}

// healthCheck verifies every started component once at startup.
func healthCheck(ctx context.Context, b *backend, server *api.Server, influxClient *influxdb.Client, db *database.DB) error {
	if err := b.healthCheck(ctx); err != nil {
		return fmt.Errorf("broker: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}

	return nil
}
