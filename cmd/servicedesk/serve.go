package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/agents"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/config"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/dispatch"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/health"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/natsclient"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/pkg/backoff"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/pkg/cache"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/transport"
)

// runServe wires the full pipeline against the configured transport and
// serves until a termination signal arrives.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	registry := metric.NewRegistry()
	metrics := registry.Core()
	tracker := health.NewTracker()

	tr, natsClient, err := buildTransport(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()
	if natsClient != nil {
		defer func() { _ = natsClient.Close(context.Background()) }()
	}

	resultCache, err := buildCache(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	defer func() { _ = resultCache.Close() }()

	router, err := buildRouter(tr, cfg, logger, metrics, tracker)
	if err != nil {
		return err
	}

	rules, err := agents.RulesFromConfig(cfg.Routing)
	if err != nil {
		return err
	}

	stages, err := agents.RegisterAll(agents.Deps{
		Router:     router,
		Classifier: agents.NewRuleClassifier(),
		Searcher:   agents.NewStaticSearcher(),
		Cache:      resultCache,
		CacheTTL:   cfg.Cache.TTL,
		Rules:      rules,
		Tracker:    tracker,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	checker, err := buildChecker(router, tr, natsClient, resultCache, cfg, logger, metrics, tracker)
	if err != nil {
		return err
	}

	if err := router.Start(ctx); err != nil {
		return err
	}

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(metricsPort(cfg.Metrics.Address), "/metrics", registry)
		metricsServer.HandleHealth(healthHandler(checker, cfg.Health.CheckTimeout))
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server started", "address", metricsServer.Address())
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("service desk started",
		"transport", cfg.Transport.Kind,
		"cache", cfg.Cache.Kind,
		"subjects", router.Subjects())

	watchHealth(runCtx, checker, cfg.Health, logger)

	logger.Info("shutting down", "timeout", shutdownTimeout)
	if metricsServer != nil {
		_ = metricsServer.Stop()
	}
	if err := router.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("router shutdown: %w", err)
	}

	summary := stages.Analytics.Summary()
	logger.Info("service desk stopped",
		"tickets_processed", summary.Total,
		"resolved", summary.Resolved,
		"escalated", summary.Escalated)
	return nil
}

// buildTransport creates the configured transport. The NATS client is
// non-nil only for the jetstream kind; the caller owns both.
func buildTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *metric.Metrics) (transport.Transport, *natsclient.Client, error) {
	switch cfg.Transport.Kind {
	case config.TransportMemory:
		opts := []transport.MemoryOption{
			transport.WithMemoryLogger(logger),
			transport.WithMemoryMetrics(metrics),
		}
		if cfg.Transport.LockDuration > 0 {
			opts = append(opts, transport.WithLockDuration(cfg.Transport.LockDuration))
		}
		if cfg.Transport.MaxQueueDepth > 0 {
			opts = append(opts, transport.WithMaxQueueDepth(cfg.Transport.MaxQueueDepth))
		}
		return transport.NewMemory(opts...), nil, nil

	case config.TransportJetStream:
		clientOpts := []natsclient.Option{
			natsclient.WithName(cfg.Transport.Name),
			natsclient.WithClientLogger(logger),
			natsclient.WithClientMetrics(metrics),
		}

		// Credentials come from the environment, never the config file.
		secrets := config.NewEnvSecrets(config.EnvPrefix)
		if token, err := secrets.GetString(ctx, "nats-token"); err == nil {
			clientOpts = append(clientOpts, natsclient.WithToken(token))
		} else if user, err := secrets.GetString(ctx, "nats-username"); err == nil {
			password, err := secrets.GetString(ctx, "nats-password")
			if err != nil {
				return nil, nil, fmt.Errorf("nats username set without password: %w", err)
			}
			clientOpts = append(clientOpts, natsclient.WithCredentials(user, password))
		}

		client, err := natsclient.NewClient(strings.Join(cfg.Transport.URLs, ","), clientOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create nats client: %w", err)
		}
		if err := client.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}

		tr, err := transport.NewJetStream(ctx, client, transport.JetStreamConfig{
			SubjectPrefix: cfg.Transport.SubjectPrefix,
			LockDuration:  cfg.Transport.LockDuration,
			MaxQueueDepth: int64(cfg.Transport.MaxQueueDepth),
			Logger:        logger,
			Metrics:       metrics,
		})
		if err != nil {
			_ = client.Close(ctx)
			return nil, nil, fmt.Errorf("create jetstream transport: %w", err)
		}
		return tr, client, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

// buildCache creates the knowledge result cache.
func buildCache(ctx context.Context, cfg *config.Config, logger *slog.Logger, registry *metric.Registry) (cache.Cache[[]ticket.KnowledgeResult], error) {
	switch cfg.Cache.Kind {
	case config.CacheMemory:
		opts := []cache.Option[[]ticket.KnowledgeResult]{
			cache.WithDefaultTTL[[]ticket.KnowledgeResult](cfg.Cache.TTL),
			cache.WithLogger[[]ticket.KnowledgeResult](logger),
			cache.WithMetrics[[]ticket.KnowledgeResult](registry, "knowledge"),
		}
		if cfg.Cache.CleanupInterval > 0 {
			opts = append(opts, cache.WithCleanupInterval[[]ticket.KnowledgeResult](cfg.Cache.CleanupInterval))
		}
		if cfg.Cache.MaxEntries > 0 {
			opts = append(opts, cache.WithMaxEntries[[]ticket.KnowledgeResult](cfg.Cache.MaxEntries))
		}
		return cache.NewMemory[[]ticket.KnowledgeResult](ctx, opts...)

	case config.CacheRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Cache.Address})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis at %s: %w", cfg.Cache.Address, err)
		}
		return cache.NewRedis[[]ticket.KnowledgeResult](client, cfg.Cache.Namespace,
			cache.WithDefaultTTL[[]ticket.KnowledgeResult](cfg.Cache.TTL),
			cache.WithLogger[[]ticket.KnowledgeResult](logger),
			cache.WithMetrics[[]ticket.KnowledgeResult](registry, "knowledge"),
		)

	default:
		return nil, fmt.Errorf("unknown cache kind %q", cfg.Cache.Kind)
	}
}

// buildRouter creates the dispatch router from the router config section.
func buildRouter(tr transport.Transport, cfg *config.Config, logger *slog.Logger, metrics *metric.Metrics, tracker *health.Tracker) (*dispatch.Router, error) {
	strategy := &backoff.Exponential{
		Initial:    cfg.Router.RetryInitialDelay,
		Max:        cfg.Router.RetryMaxDelay,
		Multiplier: cfg.Router.RetryMultiplier,
		AddJitter:  true,
	}

	return dispatch.NewRouter(tr,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics),
		dispatch.WithTracker(tracker),
		dispatch.WithBackoff(strategy),
		dispatch.WithMaxDeliveryAttempts(cfg.Router.MaxDeliveryAttempts),
		dispatch.WithLockDuration(cfg.Transport.LockDuration),
		dispatch.WithDefaultHandlerOptions(dispatch.HandlerOptions{
			MaxConcurrent:       cfg.Router.MaxConcurrent,
			LockRenewalInterval: cfg.Router.LockRenewalInterval,
		}),
	)
}

// buildChecker assembles the composite health check: the router round trip
// is critical, the cache and NATS connection are dependency probes.
func buildChecker(router *dispatch.Router, tr transport.Transport, natsClient *natsclient.Client, resultCache cache.Cache[[]ticket.KnowledgeResult], cfg *config.Config, logger *slog.Logger, metrics *metric.Metrics, tracker *health.Tracker) (*health.Checker, error) {
	opts := []health.CheckerOption{
		health.WithComponent(appName),
		health.WithTracker(tracker),
		health.WithCheckerLogger(logger),
		health.WithCheckerMetrics(metrics),
	}
	if cfg.Health.LatencyThreshold > 0 {
		opts = append(opts, health.WithLatencyThreshold(cfg.Health.LatencyThreshold))
	}
	if cfg.Health.CheckTimeout > 0 {
		opts = append(opts, health.WithProbeTimeout(cfg.Health.CheckTimeout))
	}

	opts = append(opts, health.WithProbe("cache", func(ctx context.Context) error {
		key := cache.Fingerprint("health", "probe")
		if err := resultCache.Set(ctx, key, nil, time.Minute); err != nil {
			return err
		}
		_, _, err := resultCache.Get(ctx, key)
		return err
	}))

	if natsClient != nil {
		opts = append(opts, health.WithProbe("nats", func(context.Context) error {
			if !natsClient.IsHealthy() {
				return fmt.Errorf("nats connection unhealthy: %s", natsClient.Status())
			}
			return nil
		}))
	}

	if depther, ok := tr.(transport.QueueIntrospector); ok {
		opts = append(opts, health.WithQueueDepths(depther, router.Subjects()...))
	}

	return health.NewChecker(router, opts...)
}

// watchHealth re-checks on the configured interval until ctx is cancelled,
// logging transitions out of healthy.
func watchHealth(ctx context.Context, checker *health.Checker, cfg config.HealthConfig, logger *slog.Logger) {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := checker.Check(ctx)
			if report.State != health.StateHealthy {
				logger.Warn("health degraded",
					"state", report.State,
					"message", report.Status.Message,
					"error_rate", report.ErrorRate)
			}
		}
	}
}

// healthHandler serializes a fresh report for the /health endpoint.
// Unhealthy reports return 503 so load balancers stop routing here.
func healthHandler(checker *health.Checker, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		report := checker.Check(ctx)

		w.Header().Set("Content-Type", "application/json")
		if report.State == health.StateUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}

// metricsPort extracts the port from a host:port address, defaulting to
// 9090 when the address is unparseable.
func metricsPort(address string) int {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		portStr = strings.TrimPrefix(address, ":")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return 9090
	}
	return port
}
