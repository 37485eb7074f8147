package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/RoomChat/internal/adapters/http"
	wssignal "github.com/dkeye/RoomChat/internal/adapters/signal"
	"github.com/dkeye/RoomChat/internal/app"
	"github.com/dkeye/RoomChat/internal/app/orch"
	"github.com/dkeye/RoomChat/internal/config"
	"github.com/dkeye/RoomChat/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad flags")
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(cfg.Level())

	policy, err := app.PolicyByName(cfg.Backpressure)
	if err != nil {
		log.Fatal().Err(err).Msg("bad backpressure policy")
	}
	reg := app.NewRegistry(policy)
	o := &orch.Orchestrator{
		Registry:    reg,
		DefaultRoom: domain.RoomName(cfg.DefaultRoom),
	}
	ctl := wssignal.NewSignalWSController(o, cfg)

	r := router.SetupRouter(ctx, cfg, reg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router.WithCORS(cfg, r),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("RoomChat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := ctl.Wait(cfg.ShutdownTimeout); err != nil {
			log.Warn().Err(err).Int("sessions", reg.Count()).Msg("sessions still open at exit")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}
