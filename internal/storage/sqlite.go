package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type SQLiteStorage struct {
	*sqlStore
	logger *zap.Logger
}

// NewSQLiteStorage opens (or creates) the database file at path.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		sqlStore: &sqlStore{db: db},
		logger:   logger,
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		logger.Warn("Failed to enable WAL mode", zap.Error(err))
	}
	if err := applyMigrations(ctx, db, "migrations/sqlite.sql"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	if err := storage.initializeProfile(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage ready", zap.String("path", path))
	return storage, nil
}
