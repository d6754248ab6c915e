package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/skypass/internal/api"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/stream"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve positions, pass predictions and catalog status over HTTP.

The catalog is restored from the disk cache at startup and refreshed from
the configured sources in the background when fetching is enabled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := tle.NewStore()
		loader := newLoader(store)
		if err := loader.LoadCache(); err != nil {
			logger.Info("no TLE cache found, starting without TLE data", "error", err)
		}
		if cfg.TLE.EnableFetch {
			go loader.Run(ctx, cfg.TLE.RefreshInterval, cfg.TLE.MaxAge)
		} else {
			loader = nil
		}

		prop := propagation.NewPropagator(store, cfg.PropConfig(), logger)
		tr := tracker.New(ctx, cfg.PassOptions(), cfg.ModelFactory(), logger)
		defer tr.Close()

		srv := api.NewServer(cfg, logger, api.Deps{
			Store:      store,
			Loader:     loader,
			Propagator: prop,
			Tracker:    tr,
			Stream: stream.NewHandler(prop, store, stream.Config{
				MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
				KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
				TrustProxy:         cfg.HTTP.TrustProxy,
			}, logger),
		})

		errc := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				"addr", cfg.HTTP.Addr,
				"auth_enabled", cfg.Auth.Enabled,
				"tle_fetch_enabled", cfg.TLE.EnableFetch,
				"model", cfg.Propagation.Model,
				"workers", cfg.Propagation.Workers,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()

		select {
		case err := <-errc:
			logger.Error("server listen error", "error", err)
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}

		logger.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides http.addr)")
}
