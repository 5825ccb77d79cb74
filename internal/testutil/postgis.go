package testutil

import (
	"context"
	_ "embed"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostGISImage is the container image used for integration tests.
const PostGISImage = "postgis/postgis:16-3.4"

//go:embed seed.sql
var seedSQL string

// StartPostGIS starts a PostGIS container seeded with a small slice of the
// data schema (parks, schools, fire_stations) and returns its connection
// string. The container is terminated when the test ends.
//
// Skipped under -short or when no container runtime is available.
func StartPostGIS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostGIS container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		PostGISImage,
		postgres.WithDatabase("geoff"),
		postgres.WithUsername("geoff"),
		postgres.WithPassword("geoff"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("failed to start PostGIS container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, seedSQL); err != nil {
		t.Fatalf("failed to seed database: %v", err)
	}
	return connStr
}
