package config

import (
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/realtime"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultShutdownTimeout = 15 * time.Second

	DefaultDataDir    = "/var/lib/mtaa-server/inbox"
	DefaultInboxLimit = 500
	DefaultGCInterval = 10 * time.Minute

	DefaultLimiterSweepInterval = 5 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	policies := make(map[string]PolicyConfig)
	for name, p := range service.DefaultPolicies() {
		policies[name] = PolicyConfig{Window: p.Window, Max: p.Max, Key: string(p.KeyBy)}
	}

	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Session: SessionSection{
			Timeout:       domain.DefaultSessionTimeout,
			MaxPerUser:    domain.DefaultMaxSessionsPerUser,
			SweepInterval: domain.DefaultSweepInterval,
		},
		Notification: NotificationSection{
			DataDir:           DefaultDataDir,
			MaxPerUser:        DefaultInboxLimit,
			HeartbeatInterval: realtime.DefaultHeartbeatInterval,
			SendQueue:         realtime.DefaultSendQueue,
			GCInterval:        DefaultGCInterval,
		},
		RateLimit: RateLimitSection{
			Enabled:       true,
			SweepInterval: DefaultLimiterSweepInterval,
			Policies:      policies,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// ServicePolicies converts the configured policies for the rate limiter.
func (s RateLimitSection) ServicePolicies() map[string]service.Policy {
	out := make(map[string]service.Policy, len(s.Policies))
	for name, p := range s.Policies {
		out[name] = service.Policy{
			Name:   name,
			Window: p.Window,
			Max:    p.Max,
			KeyBy:  service.KeyBy(p.Key),
		}
	}
	return out
}
