package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"league-matchmaker/internal/config"
	"league-matchmaker/internal/constants"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// tables the services expect once migrations have run
var requiredTables = []string{"players", "matches", "match_players", "rating_history"}

// per-database settings; connection settings live in the DSN
var pragmas = []struct {
	name  string
	value string
}{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"cache_size", "-64000"},
	{"temp_store", "MEMORY"},
	{"mmap_size", "268435456"}, // 256MB https://sqlite.org/mmap.html
}

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBPath, logger)
}

// Open connects to the SQLite file at path, applies the pragmas and
// migrations, and checks the schema. Every pooled connection gets the busy
// timeout, foreign keys and immediate write transactions from the DSN.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	logger = logger.With().Str("component", "database").Logger()
	logger.Info().Str("path", path).Msg("opening database")

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	steps := []struct {
		name string
		run  func(*sql.DB, zerolog.Logger) error
	}{
		{"apply pragmas", applyPragmas},
		{"run migrations", runMigrations},
		{"verify schema", verifySchema},
	}
	for _, step := range steps {
		if err := step.run(db, logger); err != nil {
			logger.Error().Err(err).Str("step", step.name).Msg("database setup failed")
			db.Close()
			return nil, fmt.Errorf("failed to %s: %w", step.name, err)
		}
	}

	logger.Info().Msg("database ready")
	return db, nil
}

// Ping reports whether the database answers within the database timeout.
func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

func applyPragmas(db *sql.DB, logger zerolog.Logger) error {
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("PRAGMA %s: %w", p.name, err)
		}
		logger.Debug().Str("pragma", p.name).Str("value", p.value).Msg("pragma set")
	}
	return nil
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return err
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info().Int64("version", version).Msg("migrations applied")
	return nil
}

func verifySchema(db *sql.DB, _ zerolog.Logger) error {
	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			return fmt.Errorf("table %s missing: %w", table, err)
		}
	}
	return nil
}
