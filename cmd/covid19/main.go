// Command covid19 builds and publishes the COVID-19 chart datasets.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/config"
	"github.com/smpawlowski/covid19/internal/logging"
	"github.com/smpawlowski/covid19/internal/metrics"
	"github.com/smpawlowski/covid19/internal/service"
	"github.com/smpawlowski/covid19/internal/storage"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "covid19",
	Short: "Build COVID-19 case charts from public snapshots",
	Long: `covid19 downloads cumulative case snapshots, repairs them into daily
monotonic series and publishes chart pages and tables.

Datasets, sources and outputs are read from the config file. A missing
config file means the built-in global and cantonal datasets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if logger, err = logging.New(cfg.Logging, verbose); err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "covid19.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(initCmd, runCmd, topCmd, serveCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openService connects the outputs and the run history and wires a report
// service. The returned func releases both.
func openService(ctx context.Context, recorder *metrics.Recorder) (*service.ReportService, func(), error) {
	outputs, err := service.OpenOutputs(ctx, cfg.Output, logger.Named("outputs"))
	if err != nil {
		return nil, nil, err
	}
	opts := service.Options{
		Outputs: outputs,
		Emitter: service.LogEmitter{Logger: logger.Named("events")},
		Metrics: recorder,
		Logger:  logger.Named("service"),
	}

	var state *storage.DB
	if cfg.Service.StateDB != "" {
		if state, err = storage.New(cfg.Service.StateDB); err != nil {
			outputs.Close()
			return nil, nil, fmt.Errorf("open state db: %w", err)
		}
		opts.Runs = storage.NewRunLogStore(state)
	}

	closeFn := func() {
		if err := outputs.Close(); err != nil {
			logger.Warn("close outputs", zap.Error(err))
		}
		if state != nil {
			if err := state.Close(); err != nil {
				logger.Warn("close state db", zap.Error(err))
			}
		}
	}
	return service.NewReportService(cfg, opts), closeFn, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}
