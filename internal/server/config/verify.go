package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/server/httpserver/handler"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	if err := verifyNotification(&cfg.Notification); err != nil {
		return err
	}
	if err := verifyRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http: %w", err)
		}
	}
	if _, err := handler.ParseTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return fmt.Errorf("server.http.trusted_proxies: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.Timeout <= 0 {
		return errors.New("session.timeout must be positive")
	}
	if cfg.MaxPerUser < 1 {
		return errors.New("session.max_per_user must be at least 1")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("session.sweep_interval must be positive")
	}
	return nil
}

func verifyNotification(cfg *NotificationSection) error {
	if !cfg.InMemory {
		if cfg.DataDir == "" {
			return errors.New("notification.data_dir is required unless in_memory is set")
		}
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return errors.New("cannot create inbox directory: " + err.Error())
		}
	}
	if cfg.MaxPerUser < 0 {
		return errors.New("notification.max_per_user must not be negative")
	}
	if cfg.HeartbeatInterval <= 0 {
		return errors.New("notification.heartbeat_interval must be positive")
	}
	if cfg.SendQueue < 1 {
		return errors.New("notification.send_queue must be at least 1")
	}
	return nil
}

func verifyRateLimit(cfg *RateLimitSection) error {
	if cfg.SweepInterval <= 0 {
		return errors.New("ratelimit.sweep_interval must be positive")
	}
	for _, name := range []string{service.PolicyGeneral, service.PolicyAuth} {
		if _, ok := cfg.Policies[name]; !ok {
			return fmt.Errorf("ratelimit.policies.%s is required", name)
		}
	}
	for _, p := range cfg.ServicePolicies() {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("ratelimit: %w", err)
		}
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
