// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rcl-league/portal/internal/api/auth"
	"github.com/rcl-league/portal/internal/api/clubs"
	"github.com/rcl-league/portal/internal/api/dashboard"
	"github.com/rcl-league/portal/internal/api/events"
	"github.com/rcl-league/portal/internal/api/leaderboard"
	"github.com/rcl-league/portal/internal/api/nav"
	"github.com/rcl-league/portal/internal/api/points"
	"github.com/rcl-league/portal/internal/api/seasons"
	"github.com/rcl-league/portal/internal/api/sports"
	"github.com/rcl-league/portal/internal/api/tournaments"
	"github.com/rcl-league/portal/internal/config"
	"github.com/rcl-league/portal/internal/db"
	"github.com/rcl-league/portal/internal/email"
	"github.com/rcl-league/portal/internal/leagues"
	"github.com/rcl-league/portal/internal/membership"
	"github.com/rcl-league/portal/internal/ratelimit"
	"github.com/rcl-league/portal/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	configPath := flag.String("config", "config/app.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}
	setupLogger(cfg.App.Environment)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()
	log.Info().Str("driver", cfg.Database.Driver).Msg("Database ready")

	var sender email.EmailSender
	sesClient, err := email.NewSESClient(ctx, cfg.Email)
	if err != nil {
		return fmt.Errorf("email client: %w", err)
	}
	if sesClient != nil {
		sender = sesClient
		log.Info().Str("region", cfg.Email.Region).Msg("Email notifications enabled")
	}

	var (
		authenticator auth.Authenticator
		rosterCounter scheduler.RosterCounter
	)
	if cfg.MembershipEnabled() {
		client, err := membership.NewClient(membership.Config{
			BaseURL:           cfg.Membership.BaseURL,
			APIKey:            cfg.Membership.APIKey,
			Timeout:           cfg.Membership.Timeout,
			RequestsPerSecond: cfg.Membership.RequestsPerSecond,
			Burst:             cfg.Membership.Burst,
		})
		if err != nil {
			return fmt.Errorf("membership client: %w", err)
		}
		authenticator = client
		rosterCounter = client
	} else {
		log.Warn().Msg("Membership API not configured; only local accounts can sign in")
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	defer limiter.Close()

	scoring := leagues.ScoringFromConfig(cfg.Scoring)

	auth.InitHandlers(database.Queries, cfg, authenticator, limiter)
	nav.InitHandlers(database.Queries)
	clubs.InitHandlers(database.Queries, cfg.App.PhoneRegion)
	sports.InitHandlers(database.Queries)
	seasons.InitHandlers(database.Queries)
	events.InitHandlers(database, scoring, sender)
	tournaments.InitHandlers(database, scoring, sender)
	points.InitHandlers(database.Queries, scoring.Deductions, sender)
	leaderboard.InitHandlers(database)
	dashboard.InitHandlers(database)

	if err := scheduler.Init(); err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	if err := scheduler.RegisterParticipationSweepJob(database, scoring.Tiers, cfg.Jobs.ParticipationSweep, sender); err != nil {
		return err
	}
	if err := scheduler.RegisterRosterSyncJob(database, rosterCounter, cfg.Jobs.RosterSync); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	server := newServer(cfg)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}
