// Package testutil provides shared test helpers used across integration,
// e2e, and unit test packages.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"registry-core/internal/adapters"
)

const (
	mysqlImage    = "mysql:8.4"
	mysqlPassword = "registry"
	mysqlDatabase = "registry"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// RegistrySnapshot copies the shared registry snapshot fixture into a
// temporary directory and returns the copy's path. The file backend writes
// proxy cache changes back, so tests never touch the fixture itself.
func RegistrySnapshot(t *testing.T) string {
	t.Helper()
	source := filepath.Join(RepoRoot(t), "tests", "testdata", "registry.yaml")
	data, err := os.ReadFile(source)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// WriteDistFiles creates an empty file below root for every relative path.
func WriteDistFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, path := range paths {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("{}"), 0o644))
	}
}

// StartMySQL runs a disposable MySQL server and returns its connection
// settings. The container is terminated when the test ends.
func StartMySQL(ctx context.Context, t *testing.T) adapters.MySQLConfig {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        mysqlImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": mysqlPassword,
			"MYSQL_DATABASE":      mysqlDatabase,
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(120 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return adapters.MySQLConfig{
		Addr:     host,
		Port:     uint(port.Int()),
		User:     "root",
		Password: mysqlPassword,
		Database: mysqlDatabase,
	}
}
