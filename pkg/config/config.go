// Package config provides unified configuration for the streaming runtime.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (STREAMRT_ prefix)
//  4. Backward-compatible env var mapping for legacy variable names
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the streaming runtime.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Buffer        BufferConfig        `yaml:"buffer"`
	Router        RouterConfig        `yaml:"router"`
	SSE           SSEConfig           `yaml:"sse"`
	Session       SessionConfig       `yaml:"session"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1MiB
}

// BufferConfig holds replay-buffer settings.
type BufferConfig struct {
	MaxSize         int           `yaml:"max_size"`         // per-context event cap, default: 1000
	TTL             time.Duration `yaml:"ttl"`              // event retention window, default: 1h
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // sweep period, default: 1m
}

// RouterConfig holds live-subscription routing settings.
type RouterConfig struct {
	DefaultFilterInternal bool `yaml:"default_filter_internal"` // default: true
}

// SSEConfig holds Server-Sent Events transport settings.
type SSEConfig struct {
	// HeartbeatInterval controls how often an off-the-record keepalive comment
	// is written to an idle stream. Zero disables heartbeats.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // default: 15s
}

// SessionConfig holds per-context session lifecycle settings.
type SessionConfig struct {
	IdleTTL time.Duration `yaml:"idle_ttl"` // default: 30m
}

// StorageConfig holds archived-event storage settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	DSNFile         string        `yaml:"dsn_file"` // _file variant for dsn
	MaxConns        int32         `yaml:"max_conns"`         // default: 25
	MinConns        int32         `yaml:"min_conns"`         // default: 5
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"` // default: 5m
	MigrateOnStart  bool          `yaml:"migrate_on_start"`  // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey", "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`      // JWKS settings for type=jwt
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key"`
	KeyFile     string   `yaml:"key_file"` // _file variant for key
	Subject     string   `yaml:"subject"`
	TenantID    string   `yaml:"tenant_id"`
	ServiceTier string   `yaml:"service_tier"`
	Scopes      []string `yaml:"scopes"` // e.g. ["stream:internal"] to see internal: events
}

// JWTConfig holds JWT/OIDC authenticator settings.
type JWTConfig struct {
	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	JWKSURL     string        `yaml:"jwks_url"`
	UserClaim   string        `yaml:"user_claim"`   // default: "sub"
	TenantClaim string        `yaml:"tenant_claim"` // default: "tenant_id"
	ScopesClaim string        `yaml:"scopes_claim"` // default: "scope"
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // default: 1h
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Buffer: BufferConfig{
			MaxSize:         1000,
			TTL:             1 * time.Hour,
			CleanupInterval: 1 * time.Minute,
		},
		Router: RouterConfig{
			DefaultFilterInternal: true,
		},
		SSE: SSEConfig{
			HeartbeatInterval: 15 * time.Second,
		},
		Session: SessionConfig{
			IdleTTL: 30 * time.Minute,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns:        25,
				MinConns:        5,
				MaxConnLifetime: 5 * time.Minute,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			JWT: JWTConfig{
				UserClaim:   "sub",
				TenantClaim: "tenant_id",
				ScopesClaim: "scope",
				CacheTTL:    1 * time.Hour,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
