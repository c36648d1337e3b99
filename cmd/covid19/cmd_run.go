package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run [dataset...]",
	Short: "Build and publish datasets once",
	Long: `Builds each named dataset (all configured datasets when none are
given) and publishes its page and tables. A failed dataset publishes
nothing; the others still run.`,
	RunE: runDatasets,
}

var topN int

var topCmd = &cobra.Command{
	Use:   "top <dataset>",
	Short: "Print the regions with the most confirmed cases",
	Args:  cobra.ExactArgs(1),
	RunE:  printTop,
}

func init() {
	topCmd.Flags().IntVarP(&topN, "limit", "n", 10, "number of regions")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runDatasets(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, closeOutputs, err := openService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeOutputs()

	names := args
	if len(names) == 0 {
		for _, ds := range svc.Datasets() {
			names = append(names, ds.Name)
		}
	}

	var errs []error
	for _, name := range names {
		res, err := svc.Run(ctx, name, domain.TriggerManual)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows read, %d rows published, page %s (%s)\n",
			name, res.Log.RowsRead, res.Log.RowsPublished, res.PageKey, res.Log.Duration())
	}
	if len(errs) > 0 {
		logger.Error("some datasets failed", zap.Int("failed", len(errs)), zap.Int("total", len(names)))
	}
	return errors.Join(errs...)
}

func printTop(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, closeOutputs, err := openService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeOutputs()

	r, _, err := svc.Build(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, r.SummaryTitle())
	for i, rr := range r.Regions {
		if topN > 0 && i >= topN {
			break
		}
		fmt.Fprintln(out, rr.Title())
	}
	return nil
}
