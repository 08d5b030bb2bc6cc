package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/app"
	"github.com/t77yq/trendloop/internal/config"
	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/queue"
)

var (
	generate  bool
	publish   bool
	status    bool
	count     int
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate, publish and inspect the post queue",
	Long:  `Generates a week of posts into the queue in one run, publishes the entries due today and reports queue status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !generate && !publish && !status {
			return cmd.Help()
		}

		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		logger, err := app.NewLogger(cfg.LogFormat)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, closeEvents, err := app.Events(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("Events disabled", zap.Error(err))
			events = nil
		}
		defer closeEvents()

		c := app.New(cfg, events, logger)

		if generate {
			n, err := c.Batch.BatchGenerate(ctx, count)
			if err != nil {
				return fmt.Errorf("batch generation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d posts\n", n)
			c.Tracker.Report(cmd.OutOrStdout())
		}

		if publish {
			today := time.Now().UTC().Format(model.DateLayout)
			n := c.Publisher.PublishDue(ctx, today)
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d posts for %s\n", n, today)
		}

		if status {
			entries, err := c.Queue.Load()
			if errors.Is(err, queue.ErrNoQueue) {
				fmt.Fprintln(cmd.OutOrStdout(), "No queue found. Run --generate first.")
				return nil
			}
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), queue.Summarize(entries))
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().BoolVar(&generate, "generate", false, "Generate a batch of posts into the queue")
	rootCmd.Flags().BoolVar(&publish, "publish", false, "Publish the queue entries due today")
	rootCmd.Flags().BoolVar(&status, "status", false, "Show queue status")
	rootCmd.Flags().IntVar(&count, "count", 0, "Number of posts to generate (default posts_per_day x days_ahead)")
	rootCmd.Flags().StringVar(&configDir, "config", "./config", "Directory holding config.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
