package postgres

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agentrt/streamrt/pkg/events"
	"github.com/agentrt/streamrt/pkg/storage"
)

func init() {
	// Configure testcontainers to use podman.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if SKIP_INTEGRATION=true, if podman is not on PATH, or
// if the container cannot be started.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("streamrt_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeTestEvent(contextID string, seq uint64) events.BufferedEvent {
	ev := events.New(events.KindContentDelta, contextID, "task-pg", events.ContentDeltaPayload{Delta: "hello"})
	return events.BufferedEvent{
		ID:        events.NewEventID(contextID, seq),
		Event:     ev,
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestPostgres_AppendAndEvents(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	contextID := "ctx-pg-" + time.Now().Format("150405.000000000")
	if err := store.Append(ctx, makeTestEvent(contextID, 1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, makeTestEvent(contextID, 2)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.Events(ctx, contextID)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(got))
	}
	if got[0].Event.Kind != events.KindContentDelta {
		t.Errorf("Kind = %q, want %q", got[0].Event.Kind, events.KindContentDelta)
	}
}

func TestPostgres_EventsUnknownSession(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	got, err := store.Events(ctx, "no-such-context")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty slice for unknown session, got %v", got)
	}
}

func TestPostgres_AppendDeduplicatesByEventID(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	contextID := "ctx-pg-dup-" + time.Now().Format("150405.000000000")
	be := makeTestEvent(contextID, 1)

	if err := store.Append(ctx, be); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, be); err != nil {
		t.Fatalf("duplicate Append should not error: %v", err)
	}

	got, _ := store.Events(ctx, contextID)
	if len(got) != 1 {
		t.Errorf("expected dedup to keep exactly 1 event, got %d", len(got))
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestPostgres_TenantIsolation(t *testing.T) {
	store := setupTestDB(t)

	ctxA := storage.SetTenant(context.Background(), "tenant-a")
	ctxB := storage.SetTenant(context.Background(), "tenant-b")

	contextID := "ctx-pg-tenant-" + time.Now().Format("150405.000000000")
	store.Append(ctxA, makeTestEvent(contextID, 1))

	gotA, _ := store.Events(ctxA, contextID)
	if len(gotA) != 1 {
		t.Errorf("tenant A should see its own archived event, got %d", len(gotA))
	}

	gotB, _ := store.Events(ctxB, contextID)
	if len(gotB) != 0 {
		t.Errorf("tenant B should not see tenant A's archived events, got %d", len(gotB))
	}
}
