// Package main implements the mailagent CLI: run natural-language tasks
// against a mailbox, inspect run history, and manage credentials.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/app"
	"github.com/nhle/mailagent/internal/logging"
	"github.com/nhle/mailagent/internal/model"
)

var (
	// configPath is the YAML config file location
	configPath string
	// logLevel overrides log.level when set
	logLevel string
	// metricsAddr serves Prometheus metrics when non-empty
	metricsAddr string
	// outputJSON prints machine-readable output
	outputJSON bool

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if app.IsAuthError(err) {
			fmt.Fprintln(os.Stderr, "credentials missing or expired; run `mailagent login`")
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailagent",
	Short: "Run natural-language tasks against your mailbox",
	Long: `mailagent turns a plain-language request into a plan of mailbox
operations (list recent mail, categorize, send) and executes it.

Examples:
  # Read and categorize the five newest emails
  mailagent run "Read my last 5 emails and categorize them"

  # Show recent runs
  mailagent history`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// setup loads config and builds the logger, starting the metrics
// endpoint when requested.
func setup() (*model.AppConfig, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	if metricsAddr != "" {
		startMetricsServer(metricsAddr, logger)
	}

	return cfg, logger, nil
}

func startMetricsServer(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}
