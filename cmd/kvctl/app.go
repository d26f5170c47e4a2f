package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leafsii/kvconn/internal/config"
	"github.com/leafsii/kvconn/internal/log"
	"github.com/leafsii/kvconn/internal/metrics"
	"github.com/leafsii/kvconn/pkg/kv"

	// Import topologies to register them
	_ "github.com/leafsii/kvconn/pkg/kv/cluster"
	_ "github.com/leafsii/kvconn/pkg/kv/standalone"
)

// app is the composition root shared by every command
type app struct {
	cfg            *config.Config
	logger         *zap.SugaredLogger
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	client         kv.Client
}

// newApp loads configuration and builds an unconnected client. One-shot commands
// log through the default client logger; serve uses the environment's logger.
func newApp(cmd *cobra.Command, oneShot bool) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var logger *zap.SugaredLogger
	if oneShot {
		logger, err = log.NewDefaultClientLogger()
	} else {
		logger, err = log.NewSugar(cfg.Env)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log.InstallRedisLogger(logger)

	metricsObj, metricsHandler, err := metrics.Setup("kvctl")
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	opts := append(cfg.ClientOptions(), kv.WithLogger(logger), kv.WithRecorder(metricsObj))
	client, err := kv.NewClient(cfg.KV(), cfg.Client.ConnectionName, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	logger.Infow("Redis client configured",
		"connectionName", client.Name(),
		"redis", cfg.KV().String(),
	)

	return &app{
		cfg:            cfg,
		logger:         logger,
		metrics:        metricsObj,
		metricsHandler: metricsHandler,
		client:         client,
	}, nil
}

// close shuts the client down unless a command already did
func (a *app) close() {
	if a.client.Status() != kv.StatusClosed {
		if err := a.client.Shutdown(); err != nil {
			a.logger.Warnw("Redis shutdown failed", "error", err)
		}
	}
	_ = a.logger.Sync()
}
