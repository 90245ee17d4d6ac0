package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openworld/physync/internal/config"
	"github.com/openworld/physync/internal/storage"
	"github.com/openworld/physync/internal/storage/memory"
	pgstorage "github.com/openworld/physync/internal/storage/postgres"
	sqlitestorage "github.com/openworld/physync/internal/storage/sqlite"
	wsstorage "github.com/openworld/physync/internal/storage/websocket"
)

// createStorageBackend builds the backend selected by storageCfg.Type.
// "none" runs without a journal.
func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger, dbLogger zerolog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "none":
		logger.Info("Running without storage backend")
		return nil, nil

	case "postgres":
		logger.Info("Postgres storage backend selected", "host", storageCfg.Postgres.Host)
		return pgstorage.New(pgstorage.Dependencies{
			Config:   storageCfg.Postgres,
			Logger:   logger,
			DBLogger: dbLogger,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     storageCfg.SQLite.DumpPath,
		}, logger, dbLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend selected", "dumpPath", storageCfg.SQLite.DumpPath)
		return backend, nil

	case "websocket":
		wsURL := httpToWS(storageCfg.WebSocket.URL)
		logger.Info("WebSocket storage backend selected", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: storageCfg.WebSocket.Secret,
		}, logger), nil

	case "memory", "":
		logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
