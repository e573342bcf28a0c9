package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"homepal-gateway/internal/api"
	"homepal-gateway/internal/config"
	"homepal-gateway/internal/dispatch"
	"homepal-gateway/internal/freshness"
	"homepal-gateway/internal/gateway"
	"homepal-gateway/internal/lifecycle"
	"homepal-gateway/internal/logging"
	"homepal-gateway/internal/providers"
	"homepal-gateway/internal/registry"
	"homepal-gateway/internal/store"
	"homepal-gateway/internal/transport"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to the event store
	st, err := store.New(context.Background(), cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer st.Close()

	// Notification fan-out: registry plus the native channels
	reg := registry.New(logger)
	channels := []dispatch.NativeChannel{
		providers.NewTelegram(cfg, logger),
		providers.NewEmail(cfg, logger),
		providers.NewSMS(cfg, logger),
	}
	dispatcher := dispatch.New(reg, channels, cfg.Notify.Icon, logger)
	if dispatcher.RequestPermission() {
		logger.Info("Native notification channels enabled")
	} else {
		logger.Warn("No native notification channel configured, in-app only")
	}

	// Pipeline core
	filter := freshness.New(cfg.Freshness.Window, logger, nil)
	svc := gateway.New(st, filter, dispatcher, cfg.Gateway.QueueSize, cfg.Gateway.MaxWorkers, logger)
	var wg sync.WaitGroup
	svc.Start(&wg)

	// Dashboard hub receives every dispatched notification
	hub := api.NewHub(logger)
	reg.Register(hub.Publish)

	// Transports
	if cfg.Socket.URL != "" {
		sock := transport.NewSocket(logger, lifecycle.DefaultBackoff())
		sock.OnNotification(svc.ForwardNotification)
		svc.Attach(sock)
		svc.SetConnection(sock)
		if !sock.Connect(cfg.Socket.URL) {
			logger.Errorf("Socket connect not initiated for %s", cfg.Socket.URL)
		}
		defer sock.Close()
	}

	var kafka *transport.Kafka
	if cfg.Kafka.Broker != "" {
		kafka = transport.NewKafka(cfg.Kafka.Broker, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger, lifecycle.DefaultBackoff())
		svc.Attach(kafka)
		if cfg.Socket.URL == "" {
			svc.SetConnection(kafka)
		}
		kafka.Start()
	}

	if cfg.Snapshot.Enabled {
		snap := transport.NewSnapshot(st, cfg.Snapshot.Limit, cfg.Snapshot.PollInterval, logger)
		svc.Attach(snap)
	}

	// Start API server
	h := api.NewHandler(st, svc, logger)
	router := api.NewRouter(h, hub, logger, cfg)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API run failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Info("Shutting down...")
	if kafka != nil {
		kafka.Close()
	}
	svc.Close()
	hub.Close()
	wg.Wait()
	logger.Info("Service stopped")
}
