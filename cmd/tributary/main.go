package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tributary-io/tributary/internal/ingest"
	"github.com/tributary-io/tributary/pkg/config"
	"github.com/tributary-io/tributary/pkg/connector/registry"
	"github.com/tributary-io/tributary/pkg/logger"
	"github.com/tributary-io/tributary/pkg/observability"

	// Import all connectors to register them.
	_ "github.com/tributary-io/tributary/pkg/connector/api"
	_ "github.com/tributary-io/tributary/pkg/connector/database"
	_ "github.com/tributary-io/tributary/pkg/connector/file"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var logLevel string
	var metricsAddr string

	root := &cobra.Command{
		Use:   "tributary",
		Short: "Tributary - document ingestion for retrieval pipelines",
		Long: `Tributary syncs documents from external data sources (REST APIs, local
files, SQL databases) into a retrieval pipeline, normalizing heterogeneous
payloads into a canonical document representation.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, Encoding: "console"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tributary v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sources",
		Short: "List available source connector types",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available source types:")
			for _, t := range registry.RegisteredTypes() {
				fmt.Printf("  - %s\n", t)
			}
		},
	})

	var manifestFile string
	var incremental bool
	var timeout time.Duration

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync documents from configured sources",
		Long: `Sync documents from every source in the manifest. With --incremental,
only items changed since each source's last successful sync are requested.

Example:
  tributary sync --sources sources.yaml --incremental`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), manifestFile, incremental, timeout, metricsAddr)
		},
	}
	syncCmd.Flags().StringVarP(&manifestFile, "sources", "s", "sources.yaml", "Path to the sources manifest YAML file")
	syncCmd.Flags().BoolVar(&incremental, "incremental", false, "Request only items changed since the last successful sync")
	syncCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Per-source sync timeout")
	syncCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	root.AddCommand(syncCmd)

	var healthManifest string
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Health-check every configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), healthManifest)
		},
	}
	healthCmd.Flags().StringVarP(&healthManifest, "sources", "s", "sources.yaml", "Path to the sources manifest YAML file")
	root.AddCommand(healthCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSync(ctx context.Context, manifestFile string, incremental bool, timeout time.Duration, metricsAddr string) error {
	manifest, err := config.LoadManifest(manifestFile)
	if err != nil {
		return err
	}

	shutdown, err := observability.Init("tributary", version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	svc := ingest.NewService(nil, timeout)
	results := svc.SyncAll(ctx, manifest, incremental)

	failed := 0
	for id, result := range results {
		status := "ok"
		if !result.Success {
			status = "failed"
			failed++
		}
		fmt.Printf("%-20s %-8s documents=%d duration=%s\n",
			id, status, result.DocumentsProcessed, result.Duration.Round(time.Millisecond))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}

func runHealth(ctx context.Context, manifestFile string) error {
	manifest, err := config.LoadManifest(manifestFile)
	if err != nil {
		return err
	}

	svc := ingest.NewService(nil, time.Minute)
	unhealthy := 0
	for id, h := range svc.CheckAll(ctx, manifest) {
		if h.IsHealthy {
			fmt.Printf("%-20s healthy   response=%s\n", id, h.ResponseTime.Round(time.Millisecond))
			continue
		}
		unhealthy++
		fmt.Printf("%-20s unhealthy %s\n", id, h.LastError)
	}

	if unhealthy > 0 {
		return fmt.Errorf("%d sources unhealthy", unhealthy)
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}
