package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/app"
	"github.com/t77yq/trendloop/internal/config"
	"github.com/t77yq/trendloop/internal/pipeline"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           "oneshot",
	Short:         "Run the keyword -> article -> promotion pipeline once",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		logger, err := app.NewLogger(cfg.LogFormat)
		if err != nil {
			return err
		}
		defer logger.Sync()

		out := cmd.OutOrStdout()
		printSafeguards(out, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.MaxTotalRuntime)
		defer cancel()

		c := app.New(cfg, nil, logger)
		orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorDeps{
			Backup:   c.Backup,
			Keywords: c.Analyst,
			Writer:   c.Writer,
			Sitemap:  c.Site,
			Twitter:  c.Twitter,
			Indexer:  c.Indexer,
			Tracker:  c.Tracker,
		}, cfg.MaxConsecutiveErrors, out, logger)

		report, err := orchestrator.Run(ctx)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				logger.Error("Maximum runtime exceeded", zap.Duration("limit", cfg.MaxTotalRuntime))
			case errors.Is(err, pipeline.ErrAbnormal):
				logger.Error("Abnormal behavior detected, stopping", zap.Int("consecutive_errors", c.Tracker.ConsecutiveErrors()))
			default:
				logger.Error("Run failed", zap.Error(err))
			}
			c.Tracker.Report(out)
			return err
		}

		report.Print(out)
		c.Tracker.Report(out)
		return nil
	},
}

func printSafeguards(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Active safeguards:")
	fmt.Fprintf(w, "  - Max runtime:            %s\n", cfg.MaxTotalRuntime)
	fmt.Fprintf(w, "  - Max consecutive errors: %d\n", cfg.MaxConsecutiveErrors)
	fmt.Fprintf(w, "  - Deletions move to:      %s/\n", cfg.DeletedDir)
	fmt.Fprintf(w, "  - Backup before run:      %s/ snapshot\n", cfg.DocsDir)
	fmt.Fprintln(w)
}

func init() {
	rootCmd.Flags().StringVar(&configDir, "config", "./config", "Directory holding config.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
