package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"twinguard-lab/internal/api/handlers"
	apimiddleware "twinguard-lab/internal/api/middleware"
	"twinguard-lab/internal/config"
	"twinguard-lab/internal/infrastructure/cache"
	"twinguard-lab/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	cache    *cache.RedisCache
	registry *prometheus.Registry
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. The cache and registry are
// optional and may be nil.
func NewRouter(cfg config.Config, h *handlers.Handlers, c *cache.RedisCache, reg *prometheus.Registry, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		cache:    c,
		registry: reg,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Rate limiting needs Redis
	if r.config.RateLimit.Enabled && r.cache != nil {
		router.Use(apimiddleware.RateLimiter(r.cache, r.config.RateLimit))
	}

	// Health checks
	router.Get("/health", r.handlers.Health.Check)
	router.Get("/ready", r.handlers.Health.Ready)

	// Prometheus metrics
	if r.registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	}

	// API v1 routes
	router.Route("/api/v1", func(api chi.Router) {
		// Simulation lifecycle
		api.Route("/simulation", func(sim chi.Router) {
			sim.Get("/status", r.handlers.Simulation.Status)
			sim.Get("/history", r.handlers.Simulation.History)
			sim.Post("/start", r.handlers.Simulation.Start)
			sim.Post("/stop", r.handlers.Simulation.Stop)
			sim.Post("/reset", r.handlers.Simulation.Reset)
			sim.Post("/step", r.handlers.Simulation.Step)
		})

		// Twin graph
		api.Route("/nodes", func(nodes chi.Router) {
			nodes.Get("/", r.handlers.Nodes.List)
			nodes.Get("/critical", r.handlers.Nodes.Critical)
			nodes.Get("/compromised", r.handlers.Nodes.Compromised)
			nodes.Get("/{id}", r.handlers.Nodes.Get)
			nodes.Get("/{id}/risk", r.handlers.Nodes.Risk)
			nodes.Get("/{id}/neighbors", r.handlers.Nodes.Neighbors)
			nodes.Get("/{id}/dependencies", r.handlers.Nodes.Dependencies)
			nodes.Get("/{id}/dependents", r.handlers.Nodes.Dependents)
			nodes.Post("/{id}/clear-isolation", r.handlers.Nodes.ClearIsolation)
			nodes.Post("/{id}/predict", r.handlers.Predictions.GenerateForNode)
		})
		api.Get("/edges", r.handlers.Nodes.Edges)

		// Threat injection
		api.Route("/threats", func(threats chi.Router) {
			threats.Get("/", r.handlers.Threats.List)
			threats.Get("/active", r.handlers.Threats.Active)
			threats.Post("/", r.handlers.Threats.Inject)
			threats.Post("/cyber", r.handlers.Threats.InjectCyber)
			threats.Post("/end-all", r.handlers.Threats.EndAll)
			threats.Get("/{id}", r.handlers.Threats.Get)
			threats.Post("/{id}/end", r.handlers.Threats.End)
		})

		// Cascading failures
		api.Route("/cascade", func(cascade chi.Router) {
			cascade.Post("/trigger", r.handlers.Cascade.Trigger)
			cascade.Get("/predict", r.handlers.Cascade.PredictPath)
		})

		// Failure predictions
		api.Route("/predictions", func(predictions chi.Router) {
			predictions.Get("/", r.handlers.Predictions.List)
			predictions.Get("/active", r.handlers.Predictions.Active)
			predictions.Get("/accuracy", r.handlers.Predictions.Accuracy)
			predictions.Post("/generate", r.handlers.Predictions.GenerateAll)
			predictions.Get("/{id}", r.handlers.Predictions.Get)
			predictions.Post("/{id}/outcome", r.handlers.Predictions.RecordOutcome)
		})

		// Mitigations
		api.Route("/mitigations", func(mitigations chi.Router) {
			mitigations.Get("/", r.handlers.Mitigations.List)
			mitigations.Get("/pending", r.handlers.Mitigations.Pending)
			mitigations.Post("/execute", r.handlers.Mitigations.ExecuteAction)
			mitigations.Post("/batch", r.handlers.Mitigations.Batch)
			mitigations.Post("/auto", r.handlers.Mitigations.Auto)
			mitigations.Get("/{id}", r.handlers.Mitigations.Get)
			mitigations.Post("/{id}/approve", r.handlers.Mitigations.Approve)
			mitigations.Post("/{id}/execute", r.handlers.Mitigations.ExecuteRecommendation)
		})

		// Streaming stats and the persisted event log
		api.Route("/streaming", func(stream chi.Router) {
			stream.Get("/stats", r.handlers.Streaming.GetStats)
			stream.Get("/events", r.handlers.Streaming.ListEvents)
			stream.Get("/events/{id}", r.handlers.Streaming.GetEvent)
		})
	})

	// WebSocket streaming endpoint (real-time twin updates for dashboards)
	router.Get("/ws", r.handlers.Streaming.HandleWebSocket)

	return router
}
