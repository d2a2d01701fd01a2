// Package postgres provides a PostgreSQL implementation of
// storage.Archiver. It uses pgx/v5 for connection pooling and JSONB for
// the event payload, mirroring buffered events past the in-memory
// retention window.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentrt/streamrt/pkg/events"
	"github.com/agentrt/streamrt/pkg/storage"
)

// Store is a PostgreSQL-backed Archiver.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Archiver = (*Store)(nil)

// New creates a PostgreSQL archiver with the given configuration. If
// MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Append mirrors be into the archive, scoped by whatever tenant is
// present in ctx. Duplicate event IDs are tolerated (ON CONFLICT DO
// NOTHING): the archiver is a best-effort mirror, not a source of
// truth, so a producer retry must never surface an error here.
func (s *Store) Append(ctx context.Context, be events.BufferedEvent) error {
	tenantID := storage.GetTenant(ctx)

	var payloadJSON []byte
	if be.Event.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(be.Event.Payload)
		if err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
	}

	_, seq, ok := events.ParseEventID(be.ID)
	if !ok {
		return fmt.Errorf("malformed buffered-event id %q", be.ID)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO archived_events (
			event_id, context_id, tenant_id, seq, kind, task_id,
			payload, event_time, buffered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`,
		be.ID, be.Event.ContextID, tenantID, seq, string(be.Event.Kind), be.Event.TaskID,
		nullJSON(payloadJSON), be.Event.Timestamp, time.UnixMilli(be.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting archived event: %w", err)
	}
	return nil
}

// Events returns every archived event for contextID, ordered by seq,
// scoped by whatever tenant is present in ctx.
func (s *Store) Events(ctx context.Context, contextID string) ([]events.BufferedEvent, error) {
	tenantID := storage.GetTenant(ctx)

	query := `
		SELECT event_id, kind, task_id, payload, event_time, buffered_at
		FROM archived_events
		WHERE context_id = $1
	`
	args := []any{contextID}
	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}
	query += " ORDER BY seq ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archived events: %w", err)
	}
	defer rows.Close()

	var out []events.BufferedEvent
	for rows.Next() {
		var id, kind, taskID string
		var payloadJSON []byte
		var eventTime, bufferedAt time.Time

		if err := rows.Scan(&id, &kind, &taskID, &payloadJSON, &eventTime, &bufferedAt); err != nil {
			return nil, fmt.Errorf("scanning archived event: %w", err)
		}

		ev := events.New(events.Kind(kind), contextID, taskID, nil)
		ev.Timestamp = eventTime
		if len(payloadJSON) > 0 {
			var raw json.RawMessage = payloadJSON
			ev.Payload = raw
		}

		out = append(out, events.BufferedEvent{ID: id, Event: ev, Timestamp: bufferedAt.UnixMilli()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archived events: %w", err)
	}

	return out, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func nullJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
