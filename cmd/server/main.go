package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"league-matchmaker/internal/config"
	"league-matchmaker/internal/constants"
	fxmodules "league-matchmaker/internal/fx"
	"league-matchmaker/internal/middleware"
	"league-matchmaker/internal/server"
	"league-matchmaker/internal/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
		fx.Invoke(runSweeper),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	apiServer *server.Server,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.RequestID(logger)(c.Handler(apiServer.Handler())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			err := srv.Shutdown(shutdownCtx)
			if cerr := db.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("error closing database connection")
			}
			if err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

// runSweeper cancels matches whose vote window has closed, including those
// left pending by a previous run.
func runSweeper(lc fx.Lifecycle, matchSvc *service.MatchService, logger zerolog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sweep := func() {
		if _, err := matchSvc.SweepExpired(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to sweep expired matches")
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if _, err := matchSvc.ResumePending(startCtx); err != nil {
				return err
			}
			go func() {
				defer close(done)
				sweep()
				ticker := time.NewTicker(constants.SweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						sweep()
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
