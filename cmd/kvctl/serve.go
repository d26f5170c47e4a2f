package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leafsii/kvconn/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect, then serve health, readiness and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.client.WaitUntilConnected(ctx); err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			handler := api.NewHandler(a.client, a.logger)
			middleware := api.NewMiddleware(a.logger, a.metrics)
			router := handler.Routes(middleware, a.cfg.Security.RateLimitRPM, a.metricsHandler)

			server := &http.Server{
				Addr:         a.cfg.HTTPAddr,
				Handler:      router,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 20 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				a.logger.Infow("Probe server starting", "addr", server.Addr)
				serverErrors <- server.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server startup failed: %w", err)
				}
				return nil
			case <-ctx.Done():
				a.logger.Infow("Shutdown signal received")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					a.logger.Errorw("Graceful shutdown failed", "error", err)
					server.Close()
				}

				a.logger.Infow("Server stopped")
				return nil
			}
		},
	}
}
