package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/metrics"
	mcpserver "github.com/smpawlowski/covid19/internal/mcp"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run datasets on their schedules and file changes",
	Long: `Starts the cron schedules and file watchers of every dataset and
serves Prometheus metrics on the configured address until interrupted.
In-flight runs are allowed to finish on shutdown.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the datasets over MCP on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, closeOutputs, err := openService(ctx, nil)
		if err != nil {
			return err
		}
		defer closeOutputs()
		return mcpserver.New(svc, logger.Named("mcp")).ServeStdio()
	},
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	recorder := metrics.NewRecorder()
	svc, closeOutputs, err := openService(ctx, recorder)
	if err != nil {
		return err
	}
	defer closeOutputs()

	// Triggered runs outlive the signal so they can finish during shutdown.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	if err := svc.StartTriggers(runCtx); err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	svc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	svc.WaitRunning(shutdownCtx)
	if srv != nil {
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}
