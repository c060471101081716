package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	*sqlStore
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{
		sqlStore: &sqlStore{db: db, dollarArgs: true},
		logger:   logger,
	}

	if err := storage.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("PostgreSQL storage ready",
		zap.String("host", config.Host),
		zap.String("db", config.DBName))
	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	if err := applyMigrations(ctx, s.db, "migrations/postgres.sql"); err != nil {
		return err
	}
	return s.initializeProfile(ctx)
}

func applyMigrations(ctx context.Context, db *sql.DB, name string) error {
	migrationSQL, err := migrations.ReadFile(name)
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}
