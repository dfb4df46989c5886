package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lab-reservations/internal/config"
	"github.com/example/lab-reservations/internal/testfixtures"
)

const testCatalog = `
[[owners]]
id = "c1"
name = "Facultad de Ciencias"
kind = "centre"

[[owners]]
id = "o1"
name = "Dept A"
kind = "department"
parent = "c1"

[[rooms]]
id = "r1"
name = "Lab 1"
owner = "o1"
capacity = 24
computers = 12
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.toml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o600))

	return config.Config{
		HTTPPort:         8080,
		DBDriver:         "sqlite",
		DBDSN:            testfixtures.SQLiteDSN(filepath.Join(dir, "labs.db")),
		CatalogPath:      catalogPath,
		Location:         time.UTC,
		QueryParallelism: 2,
		LockTTL:          time.Second,
		AMQPQueue:        "reservations.changed",
		LogLevel:         slog.LevelInfo,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewApp_SeedsCatalogAndServes(t *testing.T) {
	cfg := testConfig(t)

	app, err := newApp(context.Background(), cfg, discard())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms?owner=Dept+A", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"r1"`)
	assert.Contains(t, rec.Body.String(), `"owner_name":"Dept A"`)
}

func TestNewApp_SeedingIsIdempotent(t *testing.T) {
	cfg := testConfig(t)

	first, err := newApp(context.Background(), cfg, discard())
	require.NoError(t, err)
	first.Close()

	second, err := newApp(context.Background(), cfg, discard())
	require.NoError(t, err)
	t.Cleanup(second.Close)

	rec := httptest.NewRecorder()
	second.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/owners", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, strings.Count(rec.Body.String(), `"kind":`))
}

func TestNewApp_Failures(t *testing.T) {
	t.Run("invalid catalog", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.WriteFile(cfg.CatalogPath, []byte("[[rooms]]\nid = \"r1\"\nname = \"Lab\"\nowner = \"ghost\"\n"), 0o600))

		_, err := newApp(context.Background(), cfg, discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "room r1: unknown owner ghost")
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.DBDriver = "oracle"

		_, err := newApp(context.Background(), cfg, discard())
		assert.Error(t, err)
	})
}
