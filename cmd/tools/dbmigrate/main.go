// cmd/tools/dbmigrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/config"
	"github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

func main() {
	var (
		configPath = flag.String("config", "config/app.yaml", "Path to the YAML config file")
		command    = flag.String("command", "", "Command to run (up, down, version, force)")
		steps      = flag.Int("steps", 0, "Number of migrations to roll back with down (0 rolls back all)")
		version    = flag.Int("version", -1, "Version to force with the force command")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *command == "" {
		log.Error().Msg("The -command flag is required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	m, err := newMigrate(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	switch *command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Info().Msg("Successfully ran migrations up")

	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Failed to roll back migrations")
		}
		log.Info().Int("steps", *steps).Msg("Successfully ran migrations down")

	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("Failed to get version")
		}
		log.Info().Uint("version", v).Bool("dirty", dirty).Msg("Current migration version")

	case "force":
		if *version < 0 {
			log.Fatal().Msg("force requires -version")
		}
		if err := m.Force(*version); err != nil {
			log.Fatal().Err(err).Int("version", *version).Msg("Failed to force version")
		}
		log.Info().Int("version", *version).Msg("Forced migration version")

	default:
		log.Fatal().Str("command", *command).Msg("Unknown command")
	}
}

func newMigrate(cfg *config.Config) (*migrate.Migrate, error) {
	var (
		dialect     dbgen.Dialect
		databaseURL string
	)
	switch cfg.Database.Driver {
	case "sqlite":
		absDB, err := filepath.Abs(cfg.Database.Filename)
		if err != nil {
			return nil, fmt.Errorf("invalid database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absDB), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dialect = dbgen.DialectSQLite
		databaseURL = "sqlite3://" + absDB + "?_fk=1"
	case "postgres":
		dialect = dbgen.DialectPostgres
		databaseURL = cfg.Database.URL
		for _, scheme := range []string{"postgresql://", "postgres://"} {
			if strings.HasPrefix(databaseURL, scheme) {
				databaseURL = "pgx5://" + strings.TrimPrefix(databaseURL, scheme)
				break
			}
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	migrations, err := db.MigrationsFS(dialect)
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	source, err := iofs.New(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", source, databaseURL)
}
