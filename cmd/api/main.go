package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"WardWatchAPI/internal/auth"
	"WardWatchAPI/internal/config"
	"WardWatchAPI/internal/database"
	"WardWatchAPI/internal/evaluator"
	"WardWatchAPI/internal/handler"
	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/metrics"
	"WardWatchAPI/internal/mqtt"
	"WardWatchAPI/internal/repository"
	"WardWatchAPI/internal/server"
	"WardWatchAPI/internal/service"
	"WardWatchAPI/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// 2. Initialize Logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Mode:        cfg.Logging.Mode,
		LogFilePath: cfg.Logging.FilePath,
		UseColors:   cfg.Logging.UseColors,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: %v", err)
	}

	cfg.Print()
	log.Info("Starting WardWatch API Server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// 4. Stores
	var (
		alertRepo     repository.IAlertRepository
		thresholdRepo repository.IThresholdRepository
		dbChecker     handler.DatabaseChecker
	)

	if cfg.Database.Enabled() {
		db, err := database.New(&cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			log.Fatal("Database migration failed: %v", err)
		}
		log.Info("Database connected and schema applied")

		alertRepo = repository.NewAlertRepository(db.DB)
		thresholdRepo = repository.NewThresholdRepository(db.DB)
		dbChecker = db
	} else {
		log.Warn("DB_HOST not set, alerts and thresholds are kept in memory")
		alertRepo = repository.NewMemoryAlertRepository()
		thresholdRepo = repository.NewMemoryThresholdRepository()
	}

	// 5. Engine
	eval, err := evaluator.New(evaluator.Policy{
		CriticalMargins: cfg.Alerting.CriticalMargins,
		Combination:     cfg.Alerting.CombinationRule,
	})
	if err != nil {
		log.Fatal("Invalid alerting policy: %v", err)
	}

	hub := websocket.NewHub(log, m)

	thresholdService := service.NewThresholdService(thresholdRepo, log)
	alertService := service.NewAlertService(alertRepo, m, log)
	vitalsService := service.NewVitalsService(
		thresholdService,
		eval,
		alertService,
		service.VitalsConfig{
			AutoInitOrgs:     cfg.Alerting.AutoInitOrgs,
			BatchConcurrency: cfg.Alerting.BatchConcurrency,
		},
		m,
		log,
		hub,
	)

	// 6. MQTT ingestion
	var brokerChecker handler.BrokerChecker
	if cfg.MQTT.Enabled() {
		mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
			MQTT:   &cfg.MQTT,
			Logger: log,
		})
		if err != nil {
			log.Fatal("Failed to create MQTT client: %v", err)
		}
		defer func() {
			if err := mqttClient.Disconnect(); err != nil {
				log.Error("Failed to disconnect MQTT: %v", err)
			}
		}()

		if err := mqttClient.Connect(); err != nil {
			log.Fatal("Failed to connect to MQTT broker: %v", err)
		}
		if err := attachDevices(mqttClient, vitalsService); err != nil {
			log.Fatal("Failed to subscribe to vitals topic: %v", err)
		}
		brokerChecker = mqttClient

		log.Info("MQTT subscriptions active")
	} else {
		log.Warn("MQTT_BROKER not set, device ingestion disabled")
	}

	// 7. Identity
	authn, err := auth.New(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTExpiration)
	if err != nil {
		log.Fatal("Failed to initialize authenticator: %v", err)
	}

	// 8. Initialize Handlers
	handlers := server.Handlers{
		Alerts:     handler.NewAlertHandler(alertService, log),
		Thresholds: handler.NewThresholdHandler(thresholdService, log),
		Vitals:     handler.NewVitalsHandler(vitalsService, log),
		Ws:         handler.NewWsHandler(hub, alertService, cfg.Alerting.SessionQueueSize, log.Component("ws")),
		Health:     handler.NewHealthHandler(dbChecker, brokerChecker, hub, log),
	}

	// 9. Start HTTP Server
	srv := server.New(cfg, log, m)
	srv.RegisterHandlers(ctx, authn, reg, handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(srv.Start)

	log.Info("API server ready on http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	// 10. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Warn("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error: %v", err)
	}

	log.Info("Shutdown complete")
}

// deviceLink is the broker connection as seen by ingestion.
type deviceLink interface {
	service.AlertPublisher
	SubscribeVitals(p mqtt.VitalsProcessor) error
}

// attachDevices registers link as an alert publisher before subscribing, so
// alerts raised by the first delivered reading reach the broker.
func attachDevices(link deviceLink, vitals *service.VitalsService) error {
	vitals.AddPublisher(link)
	return link.SubscribeVitals(vitals)
}
