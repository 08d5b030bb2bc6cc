package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/app"
	"github.com/t77yq/trendloop/internal/config"
	"github.com/t77yq/trendloop/internal/logfile"
	"github.com/t77yq/trendloop/internal/monitor"
)

const alertLogRetention = 30 * 24 * time.Hour

var (
	configDir string
	diskPath  string
)

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check host CPU, memory and disk usage and raise alerts",
	Long:  `Samples host usage, sends alerts over the configured webhook, appends them to the alert log and writes the status snapshot. Meant to run from cron; it always exits 0.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configDir)
		if err != nil {
			log.Printf("Failed to load config: %v", err)
			return
		}
		logger, err := app.NewLogger(cfg.LogFormat)
		if err != nil {
			log.Printf("Failed to create logger: %v", err)
			return
		}
		defer logger.Sync()

		events, closeEvents, err := app.Events(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("Events disabled", zap.Error(err))
			events = nil
		}
		defer closeEvents()

		alerts := monitor.NewAlertManager(events, logger)
		for _, rule := range monitor.DefaultRules() {
			if err := alerts.AddRule(rule); err != nil {
				logger.Error("Failed to add alert rule", zap.Error(err))
			}
		}
		alertLog, err := logfile.Daily(cfg.AlertLogPath(), alertLogRetention)
		if err != nil {
			logger.Error("Failed to open alert log", zap.Error(err))
		} else {
			defer alertLog.Close()
			alerts.AddChannel("log", monitor.NewFileChannel(alertLog))
		}
		if cfg.WebhookURL != "" {
			alerts.AddChannel("webhook", monitor.NewWebhookChannel(cfg.WebhookURL, nil))
		}

		checker := monitor.NewHealthChecker(monitor.NewCollector(diskPath, logger), alerts, cfg.StatusPath(), logger)
		status, err := checker.CheckHealth(context.Background())
		if err != nil {
			logger.Error("Health check failed", zap.Error(err))
		}

		out := cmd.OutOrStdout()
		health := "OK"
		if !status.Healthy() {
			health = "WARNING"
		}
		fmt.Fprintf(out, "[Monitor] Health: %s | CPU: %.1f%% | MEM: %.1f%% | DISK: %.1f%%\n",
			health, status.CPUPercent, status.MemoryPercent, status.DiskPercent)
		if status.Healthy() {
			fmt.Fprintln(out, "\nAll systems normal.")
		} else {
			fmt.Fprintf(out, "\n%d alert(s) triggered!\n", len(status.Alerts))
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&configDir, "config", "./config", "Directory holding config.yaml")
	rootCmd.Flags().StringVar(&diskPath, "disk", "/", "Mount point whose usage is checked")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
	}
	os.Exit(0)
}
