package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"twinguard-lab/internal/api"
	"twinguard-lab/internal/api/handlers"
	"twinguard-lab/internal/config"
	"twinguard-lab/internal/infrastructure/cache"
	"twinguard-lab/internal/infrastructure/database"
	"twinguard-lab/internal/infrastructure/database/repository"
	"twinguard-lab/internal/infrastructure/graph"
	"twinguard-lab/internal/metrics"
	"twinguard-lab/internal/simulation"
	"twinguard-lab/internal/streaming"
	"twinguard-lab/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var log *logger.Logger
	if cfg.App.Environment == "production" {
		log = logger.NewProduction()
	} else {
		log = logger.NewDevelopment()
	}
	logger.SetGlobal(log)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting TwinGuard Lab")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize optional infrastructure
	db, redisCache := initInfrastructure(ctx, cfg, log)
	defer func() {
		if db != nil {
			db.Close()
		}
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	// Snapshot and event log persistence
	var snapshots *repository.SnapshotRepository
	var events *repository.EventRepository
	if db != nil {
		snapshots, err = repository.NewSnapshotRepository(ctx, db, log)
		if err != nil {
			log.Warn().Err(err).Msg("snapshot repository unavailable, continuing without history")
			snapshots = nil
		} else {
			log.Info().Msg("snapshot persistence initialized")
			go runSnapshotRetention(ctx, snapshots, log)
		}
		events, err = repository.NewEventRepository(ctx, db, log)
		if err != nil {
			log.Warn().Err(err).Msg("event repository unavailable, continuing without event log")
			events = nil
		}
	} else {
		log.Warn().Msg("running without database - simulation history unavailable")
	}

	// Streaming infrastructure
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without broker streaming")
		} else {
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
		}
	}

	eventBus := streaming.NewEventBus(natsPublisher, log)
	log.Info().Bool("nats_enabled", natsPublisher != nil).Msg("event bus initialized")

	// Durable event log, fed off the bus like any other subscriber
	if events != nil {
		go runEventLog(ctx, eventBus, events, log)
	}

	wsHub := streaming.NewWebSocketHub(log)
	go wsHub.Run(ctx)

	// Build the twin simulation
	sim, err := simulation.NewContext(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build the digital twin")
	}
	log.Info().
		Int("nodes", cfg.Twin.NodeCount).
		Int64("seed", cfg.Twin.Seed).
		Msg("digital twin built")

	// Wire event publishing
	publisher := streaming.NewEventBusPublisher(eventBus, wsHub, log)
	go publisher.Run(ctx)
	sim.SetPublisher(publisher)

	// Prometheus metrics
	registry := prometheus.NewRegistry()
	tickMetrics := metrics.New(registry)

	// Simulation loop
	orchestrator := simulation.NewOrchestrator(sim, cfg.Simulation.TickInterval, snapshots, tickMetrics, log)

	// Optional Neo4j topology mirror
	if cfg.GraphMirror.Enabled {
		neo4jClient, err := graph.NewNeo4jClient(ctx, cfg.GraphMirror, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Neo4j, topology mirror disabled")
		} else {
			defer neo4jClient.Close(ctx)
			mirror := graph.NewMirror(neo4jClient, log)
			if err := mirror.ExportTopology(ctx, sim.Nodes(), sim.Edges()); err != nil {
				log.Warn().Err(err).Msg("topology export failed")
			} else {
				log.Info().Str("uri", cfg.GraphMirror.URI).Msg("topology mirrored to Neo4j")
			}
			go runMirrorSync(ctx, mirror, sim, log)
		}
	}

	// Handlers and router
	h := handlers.NewHandlers(handlers.Dependencies{
		Sim:          sim,
		Orchestrator: orchestrator,
		Cache:        redisCache,
		Snapshots:    snapshots,
		Events:       events,
		Bus:          eventBus,
		Hub:          wsHub,
		Logger:       log,
	})
	router := api.NewRouter(*cfg, h, redisCache, registry, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	if cfg.Simulation.AutoStart {
		if err := orchestrator.Start(); err != nil {
			log.Error().Err(err).Msg("failed to auto-start the simulation loop")
		}
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	if orchestrator.Running() {
		if err := orchestrator.Stop(); err != nil {
			log.Error().Err(err).Msg("simulation loop stop error")
		}
	}

	// Cancel context to stop background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	eventBus.Close()

	log.Info().Msg("shutdown complete")
}

// initInfrastructure connects to the optional backing stores. Neither is
// required: the twin runs fully in memory.
func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.PostgresDB, *cache.RedisCache) {
	var db *database.PostgresDB
	if cfg.Database.Enabled {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to PostgreSQL, continuing without database")
			db = nil
		}
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		var err error
		redisCache, err = cache.NewRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without cache")
			redisCache = nil
		}
	}

	return db, redisCache
}

// runEventLog drains the bus into the durable event log. A failed write is
// logged and dropped; the log is best-effort by design.
func runEventLog(ctx context.Context, bus *streaming.EventBus, repo *repository.EventRepository, log *logger.Logger) {
	ch, unsubscribe := bus.Subscribe(ctx, nil)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := repo.SaveEvent(saveCtx, event); err != nil {
				log.Warn().Err(err).Str("event_id", event.ID).Msg("event log write failed")
			}
			cancel()
		}
	}
}

// runSnapshotRetention prunes snapshots past the retention window once an hour.
func runSnapshotRetention(ctx context.Context, snapshots *repository.SnapshotRepository, log *logger.Logger) {
	const retention = 24 * time.Hour
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := snapshots.Prune(ctx, retention)
			if err != nil {
				log.Warn().Err(err).Msg("snapshot prune failed")
				continue
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("old snapshots pruned")
			}
		}
	}
}

// runMirrorSync pushes volatile node state to Neo4j on a slow cadence.
func runMirrorSync(ctx context.Context, mirror *graph.Mirror, sim *simulation.Context, log *logger.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := mirror.UpdateStatuses(ctx, sim.Nodes()); err != nil {
				log.Warn().Err(err).Msg("mirror status sync failed")
			}
		}
	}
}
