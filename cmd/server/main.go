// Command server runs the event-streaming runtime.
//
// Configuration can be provided via:
//   - YAML config file (--config flag, STREAMRT_CONFIG env, ./config.yaml, /etc/streamrt/config.yaml)
//   - Environment variables with STREAMRT_ prefix (override config file values)
//
// See config.example.yaml for full documentation of available settings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentrt/streamrt/pkg/auth"
	"github.com/agentrt/streamrt/pkg/auth/apikey"
	"github.com/agentrt/streamrt/pkg/auth/jwt"
	"github.com/agentrt/streamrt/pkg/auth/noop"
	"github.com/agentrt/streamrt/pkg/buffer"
	"github.com/agentrt/streamrt/pkg/config"
	"github.com/agentrt/streamrt/pkg/coordinator"
	"github.com/agentrt/streamrt/pkg/debug"
	"github.com/agentrt/streamrt/pkg/observability"
	"github.com/agentrt/streamrt/pkg/router"
	"github.com/agentrt/streamrt/pkg/storage"
	"github.com/agentrt/streamrt/pkg/storage/memory"
	"github.com/agentrt/streamrt/pkg/storage/postgres"
	transporthttp "github.com/agentrt/streamrt/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init("", "")

	archiver, err := createArchiver(cfg)
	if err != nil {
		return fmt.Errorf("creating archiver: %w", err)
	}
	defer archiver.Close()

	buf := buffer.New(buffer.Config{
		MaxSize:         cfg.Buffer.MaxSize,
		TTL:             cfg.Buffer.TTL,
		CleanupInterval: cfg.Buffer.CleanupInterval,
	})
	buf.StartSweep()
	defer buf.Shutdown()

	rtr := router.New()

	coord := coordinator.New(buf, rtr, nil, coordinator.Config{
		Archiver: archiver,
		IdleTTL:  cfg.Session.IdleTTL,
	})
	coord.StartIdleReaper()
	defer coord.Shutdown()

	authChain := buildAuthChain(cfg)

	serverOpts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithHeartbeatInterval(cfg.SSE.HeartbeatInterval),
		transporthttp.WithAllowInternal(!cfg.Router.DefaultFilterInternal),
	}
	if cfg.Observability.Metrics.Enabled {
		serverOpts = append(serverOpts, transporthttp.WithHTTPMiddleware(observability.MetricsMiddleware))
	}
	if authChain != nil {
		serverOpts = append(serverOpts, transporthttp.WithHTTPMiddleware(authHTTPMiddleware(authChain)))
	}

	srv := transporthttp.NewServer(coord, serverOpts...)

	if cfg.Observability.Metrics.Enabled {
		go serveMetrics(cfg.Observability.Metrics.Path)
	}

	slog.Info("server starting",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
	)

	return srv.ListenAndServe()
}

// createArchiver creates a storage.Archiver from the config.
func createArchiver(cfg *config.Config) (storage.Archiver, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return postgres.New(context.Background(), postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Storage.Postgres.MigrateOnStart,
		})
	default:
		return memory.New(0), nil
	}
}

// buildAuthChain creates an auth chain from config. When auth is disabled
// (type=none), the chain still runs a no-op authenticator so every request
// gets a consistent anonymous identity in context.
func buildAuthChain(cfg *config.Config) *auth.AuthChain {
	switch cfg.Auth.Type {
	case "apikey":
		keys := convertAPIKeys(cfg.Auth.APIKeys)
		if len(keys) == 0 {
			slog.Warn("auth.type=apikey but no api_keys configured")
			return nil
		}
		slog.Info("auth enabled", "type", "apikey", "keys", len(keys))
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.New(keys)},
			DefaultDecision: auth.No,
		}

	case "jwt":
		slog.Info("auth enabled", "type", "jwt", "issuer", cfg.Auth.JWT.Issuer)
		return &auth.AuthChain{
			Authenticators: []auth.Authenticator{jwt.New(jwt.Config{
				Issuer:      cfg.Auth.JWT.Issuer,
				Audience:    cfg.Auth.JWT.Audience,
				JWKSURL:     cfg.Auth.JWT.JWKSURL,
				UserClaim:   cfg.Auth.JWT.UserClaim,
				TenantClaim: cfg.Auth.JWT.TenantClaim,
				ScopesClaim: cfg.Auth.JWT.ScopesClaim,
				CacheTTL:    cfg.Auth.JWT.CacheTTL,
			})},
			DefaultDecision: auth.No,
		}

	case "none", "":
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}

	default:
		slog.Warn("unknown auth type, auth disabled", "type", cfg.Auth.Type)
		return nil
	}
}

// convertAPIKeys converts config API key entries to the apikey package format.
func convertAPIKeys(keys []config.APIKeyConfig) []apikey.RawKeyEntry {
	var entries []apikey.RawKeyEntry
	for _, k := range keys {
		metadata := map[string]string{}
		if k.TenantID != "" {
			metadata["tenant_id"] = k.TenantID
		}
		entries = append(entries, apikey.RawKeyEntry{
			Key: k.Key,
			Identity: auth.Identity{
				Subject:     k.Subject,
				ServiceTier: k.ServiceTier,
				Scopes:      k.Scopes,
				Metadata:    metadata,
			},
		})
	}
	return entries
}

// pingBypassEndpoints extends auth.DefaultBypassEndpoints with /ping, the
// liveness endpoint this server exposes in place of /healthz.
var pingBypassEndpoints = append(append([]string{}, auth.DefaultBypassEndpoints...), "/ping")

// authHTTPMiddleware builds the net/http-level middleware enforcing chain
// ahead of the adapter's mux, so unauthenticated requests never reach
// /invocations. /ping stays open for load balancer liveness checks.
func authHTTPMiddleware(chain *auth.AuthChain) func(http.Handler) http.Handler {
	return auth.Middleware(chain, nil, pingBypassEndpoints)
}

// serveMetrics runs a standalone Prometheus metrics server on path,
// separate from the main SSE server so a slow metrics scrape never
// competes with streaming connections for the same listener's timeouts.
func serveMetrics(path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	if err := http.ListenAndServe(":9090", mux); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server failed", "error", err)
	}
}
