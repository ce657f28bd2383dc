// Package testdb provides a Postgres for integration tests: TEST_DATABASE_URL
// when set, otherwise a throwaway container shared by the test binary.
package testdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	once      sync.Once
	url       string
	startErr  error
	container testcontainers.Container
)

// URL returns a database URL or skips t when none can be provided.
func URL(t *testing.T) string {
	t.Helper()
	if u := os.Getenv("TEST_DATABASE_URL"); u != "" {
		return u
	}
	if testing.Short() {
		t.Skip("integration test: set TEST_DATABASE_URL or run without -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		url, startErr = startPostgres(ctx)
	})
	if startErr != nil {
		t.Skipf("postgres container: %v", startErr)
	}
	return url
}

// Terminate stops the container started by URL, if any. Call it from TestMain.
func Terminate() {
	if container != nil {
		_ = container.Terminate(context.Background())
	}
}

func startPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "triage",
			"POSTGRES_PASSWORD": "triage",
			"POSTGRES_DB":       "triage",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	container = c

	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgres://triage:triage@%s:%s/triage?sslmode=disable", host, port.Port()), nil
}
