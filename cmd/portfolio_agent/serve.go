package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/portfolio-pipeline/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that accepts resume uploads and returns portfolio layouts.

Endpoints:
  POST /portfolio          multipart upload, JSON result
  POST /portfolio/stream   multipart upload, progress as server-sent events
  GET  /submissions/{id}   stored submission (requires DATABASE_URL)
  GET  /health             dependency status
  GET  /metrics            Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := appConfig
	if servePort > 0 {
		cfg.Port = servePort
	}
	logger := slog.Default()

	a, err := newApp(ctx, cfg, appOptions{WithMetrics: true, RateLimit: true}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srvCfg := server.Config{
		Port:      cfg.Port,
		Processor: a.orchestrator,
		Metrics:   a.metrics,
		Pingers:   a.pingers,
		Logger:    logger,

		TrustedProxies: cfg.TrustedProxies,
	}
	// a nil *db.Gateway must not become a non-nil interface
	if a.gateway != nil {
		srvCfg.Submissions = a.gateway
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
