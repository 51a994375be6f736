package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/infra/buildinfo"
	"github.com/mtaadao/mtaa-realtime/internal/infra/confloader"
	"github.com/mtaadao/mtaa-realtime/internal/infra/shutdown"
	"github.com/mtaadao/mtaa-realtime/internal/infra/tlsroots"
	"github.com/mtaadao/mtaa-realtime/internal/realtime"
	"github.com/mtaadao/mtaa-realtime/internal/server/config"
	"github.com/mtaadao/mtaa-realtime/internal/server/httpserver"
	"github.com/mtaadao/mtaa-realtime/internal/server/httpserver/handler"
	"github.com/mtaadao/mtaa-realtime/internal/storage"
	"github.com/mtaadao/mtaa-realtime/internal/storage/inbox"
	"github.com/mtaadao/mtaa-realtime/internal/storage/memory"
	"github.com/mtaadao/mtaa-realtime/internal/telemetry/logger"
	"github.com/mtaadao/mtaa-realtime/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		envFile     = flag.String("env-file", ".env", "Optional .env file read before the environment")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mtaa-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewSlog(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(log)

	log.Info("starting mtaa-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Get().Commit,
		"config", *configFile,
		"settings", config.Sanitize(cfg))

	app, err := build(cfg, log)
	if err != nil {
		return err
	}

	if *configFile != "" {
		if err := app.watchConfig(*configFile); err != nil {
			log.Warn("config watch disabled", "error", err)
		}
	}

	ln, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		app.shutdown.Shutdown()
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := app.http.Serve(ln); err != nil {
			log.Error("http server error", "error", err)
			cancel()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := app.shutdown.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig layers defaults, the YAML file, the .env file and the
// environment, then validates the result.
func loadConfig(configFile, envFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithDotEnv(envFile)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// server holds the running components.
type server struct {
	cfg      *config.ServerConfig
	log      *slog.Logger
	http     *httpserver.Server
	shutdown *shutdown.Handler
}

// build wires every component and registers shutdown hooks so they run
// the hub and HTTP first and storage last.
func build(cfg *config.ServerConfig, log *slog.Logger) (*server, error) {
	sd := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)
	metrics := metric.NewRegistry()

	// Storage is closed last, so its hook is registered first.
	kvCfg := storage.DefaultKVConfig(cfg.Notification.DataDir)
	if cfg.Notification.InMemory {
		kvCfg = storage.InMemoryKVConfig()
	}
	if cfg.Notification.GCInterval > 0 {
		kvCfg.Badger.GCInterval = cfg.Notification.GCInterval
	}
	kv, err := storage.NewBadgerEngine(kvCfg, log)
	if err != nil {
		return nil, fmt.Errorf("open inbox storage: %w", err)
	}
	kv.RegisterMetrics(metrics.Prometheus())
	sd.OnShutdown("inbox", func(context.Context) error {
		return kv.Close()
	})

	hub := realtime.NewHub(
		realtime.WithQueueSize(cfg.Notification.SendQueue),
		realtime.WithMetrics(metrics),
		realtime.WithLogger(log),
	)

	store := memory.New(
		memory.WithTimeout(cfg.Session.Timeout),
		memory.WithMaxSessionsPerUser(cfg.Session.MaxPerUser),
		memory.WithEvictFunc(func(_ *domain.Session, reason memory.EvictReason) {
			metrics.AddSessionsDestroyed(string(reason), 1)
		}),
	)

	svcOpts := []service.Option{service.WithLogger(log), service.WithMetrics(metrics)}
	sessions := service.NewSessionService(store, svcOpts...)
	notifications := service.NewNotificationService(
		inbox.New(kv, inbox.WithMaxPerUser(cfg.Notification.MaxPerUser), inbox.WithLogger(log)),
		hub, svcOpts...)
	limiter := service.NewRateLimiter(cfg.RateLimit.ServicePolicies(), svcOpts...)

	metrics.Prometheus().MustRegister(metric.NewCollector(func() (int, int, int) {
		st := sessions.Stats()
		return st.Sessions, st.Users, hub.Count()
	}))

	sessionSweeper := service.NewSweeper("sessions", cfg.Session.SweepInterval, sessions.Cleanup, log)
	limiterSweeper := service.NewSweeper("ratelimit", cfg.RateLimit.SweepInterval,
		func(context.Context) int { return limiter.SweepIdle() }, log)
	for _, sw := range []*service.Sweeper{sessionSweeper, limiterSweeper} {
		if err := sw.Start(context.Background()); err != nil {
			return nil, err
		}
	}
	sd.OnShutdown("ratelimit-sweeper", func(context.Context) error {
		limiterSweeper.Stop()
		return nil
	})
	sd.OnShutdown("session-sweeper", func(context.Context) error {
		sessionSweeper.Stop()
		return nil
	})

	wsCfg := realtime.DefaultWSConfig()
	wsCfg.AllowedOrigins = cfg.Server.HTTP.WebSocketOrigins

	h := handler.New(handler.Deps{
		Sessions:      sessions,
		Notifications: notifications,
		Limiter:       limiter,
		Hub:           hub,
		Inbox:         kv,
		Logger:        log,
	})

	trusted, err := handler.ParseTrustedProxies(cfg.Server.HTTP.TrustedProxies)
	if err != nil {
		return nil, err
	}
	admin := service.NewAdminAuthenticator(cfg.Security.AdminKeyHash)

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handlers:           h,
		Sessions:           sessions,
		Limiter:            limiter,
		Admin:              admin,
		Service:            service.NewServiceAuthenticator(cfg.Security.ServiceKeyHash, admin),
		TrustedProxies:     trusted,
		WebSocket:          realtime.NewWSHandler(hub, sessions, wsCfg, log),
		Stream:             realtime.NewSSEHandler(hub, sessions, cfg.Notification.HeartbeatInterval, handler.WriteError, log),
		Metrics:            metrics.Handler(),
		RequestMetrics:     metrics,
		Logger:             log,
		CORSAllowedOrigins: cfg.Server.HTTP.CORSAllowedOrigins,
		RateLimitEnabled:   cfg.RateLimit.Enabled,
	})

	httpCfg := httpserver.Config{Addr: cfg.Server.HTTP.Addr}
	if cfg.Server.HTTP.TLSCertFile != "" {
		certs, err := tlsroots.NewWatcher(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			tlsroots.WithLogger(log))
		if err != nil {
			return nil, err
		}
		certs.StartAsync()
		sd.OnShutdown("tls-watcher", func(context.Context) error {
			return certs.Stop()
		})
		httpCfg.TLSConfig = certs.ServerConfig()
	}

	srv := httpserver.New(httpCfg, router, log)
	// Open streams never go idle, so Shutdown would wait them out.
	srv.RegisterOnShutdown(hub.Close)
	sd.OnShutdown("hub", func(context.Context) error {
		hub.Close()
		return nil
	})
	sd.OnShutdown("http", func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("http shutdown timed out, closing streams")
		}
		return err
	})

	log.Info("services initialized",
		"session_timeout", cfg.Session.Timeout,
		"max_sessions_per_user", cfg.Session.MaxPerUser,
		"inbox_in_memory", cfg.Notification.InMemory,
		"rate_limit", cfg.RateLimit.Enabled)

	return &server{cfg: cfg, log: log, http: srv, shutdown: sd}, nil
}

// watchConfig applies log.level changes from the config file without a
// restart. Other settings need one.
func (s *server) watchConfig(path string) error {
	w, err := confloader.NewWatcher(
		confloader.WithWatcherLogger(s.log),
		confloader.WithDebounce(250*time.Millisecond),
	)
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return err
	}

	w.OnChange(func(string) {
		loader := confloader.NewLoader(confloader.WithConfigFile(path))
		next := config.Default()
		if err := loader.Load(next); err != nil {
			s.log.Warn("config reload failed", "error", err)
			return
		}
		if next.Log.Level != logger.GetLevel() {
			logger.SetLevel(next.Log.Level)
			s.log.Info("log level changed", "level", next.Log.Level)
		}
		if next.Session.Timeout != s.cfg.Session.Timeout || next.RateLimit.Enabled != s.cfg.RateLimit.Enabled {
			s.log.Warn("config change requires restart to take effect")
		}
	})

	w.StartAsync()
	s.shutdown.OnShutdown("config-watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}
