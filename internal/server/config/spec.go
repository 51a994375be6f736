package config

import "time"

// ServerConfig is the root configuration for mtaa-server.
type ServerConfig struct {
	Server       ServerSection       `koanf:"server"`
	Session      SessionSection      `koanf:"session"`
	Notification NotificationSection `koanf:"notification"`
	RateLimit    RateLimitSection    `koanf:"ratelimit"`
	Security     SecuritySection     `koanf:"security"`
	Log          LogSection          `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// CORSAllowedOrigins lists browser origins; empty allows all.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// WebSocketOrigins restricts the WebSocket upgrade; empty allows all.
	WebSocketOrigins []string `koanf:"websocket_origins"`

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are honored. Empty trusts no one.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// SessionSection configures the session registry.
type SessionSection struct {
	Timeout       time.Duration `koanf:"timeout"`
	MaxPerUser    int           `koanf:"max_per_user"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// NotificationSection configures delivery and the inbox.
type NotificationSection struct {
	// DataDir is the inbox directory. Ignored when InMemory is set.
	DataDir  string `koanf:"data_dir"`
	InMemory bool   `koanf:"in_memory"`

	// MaxPerUser bounds each inbox; 0 keeps everything.
	MaxPerUser int `koanf:"max_per_user"`

	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	SendQueue         int           `koanf:"send_queue"`
	GCInterval        time.Duration `koanf:"gc_interval"`
}

// RateLimitSection configures the named policies.
type RateLimitSection struct {
	Enabled       bool                    `koanf:"enabled"`
	SweepInterval time.Duration           `koanf:"sweep_interval"`
	Policies      map[string]PolicyConfig `koanf:"policies"`
}

// PolicyConfig allows Max requests per Window for each key.
type PolicyConfig struct {
	Window time.Duration `koanf:"window"`
	Max    int           `koanf:"max"`
	// Key is "ip" or "user".
	Key string `koanf:"key"`
}

// SecuritySection configures security settings.
type SecuritySection struct {
	// AdminKeyHash is the argon2id hash of the admin API key. Empty
	// disables the admin API.
	AdminKeyHash string `koanf:"admin_key_hash"`

	// ServiceKeyHash is the argon2id hash of the key backend services
	// present on the session and notification routes. The admin key is
	// accepted there too. With neither set those routes answer 403.
	ServiceKeyHash string `koanf:"service_key_hash"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
