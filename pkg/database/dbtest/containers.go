// Package dbtest starts a throwaway PostgreSQL for repository integration tests.
package dbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wonny/fleetcast/pkg/config"
	"github.com/wonny/fleetcast/pkg/database"
	"github.com/wonny/fleetcast/pkg/logger"
)

const postgresImage = "postgres:16-alpine"

// TestDB 테스트 실행 동안 공유되는 컨테이너 + 마이그레이션 적용된 풀
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	shared     *TestDB
	sharedOnce sync.Once
	sharedErr  error
)

// GetTestDB returns a migrated PostgreSQL shared across the test binary.
// Skipped under -short (requires Docker).
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedOnce.Do(func() {
		shared, sharedErr = setup()
	})
	if sharedErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedErr)
	}
	return shared
}

func setup() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "fleetcast_test",
			"POSTGRES_USER":     "fleetcast",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://fleetcast:test_password@%s:%s/fleetcast_test?sslmode=disable", host, port.Port())

	if err := database.Migrate(connStr, logger.Nop().Zerolog()); err != nil {
		return nil, err
	}

	db, err := database.New(ctx, config.DatabaseConfig{URL: connStr, MaxConns: 8})
	if err != nil {
		return nil, err
	}

	return &TestDB{Container: container, DB: db, ConnStr: connStr}, nil
}

// Truncate empties the given tables between tests
func (tdb *TestDB) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := tdb.DB.Pool.Exec(context.Background(), "TRUNCATE TABLE "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}
