package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hydroclim/daymet-pipeline/internal/config"
	"github.com/hydroclim/daymet-pipeline/internal/downloader"
	"github.com/hydroclim/daymet-pipeline/internal/fetch"
	"github.com/hydroclim/daymet-pipeline/internal/logging"
	"github.com/hydroclim/daymet-pipeline/internal/metrics"
	"github.com/hydroclim/daymet-pipeline/internal/process"
	"github.com/hydroclim/daymet-pipeline/internal/storage"
)

var (
	logLevel    string
	logFormat   string
	metricsAddr string
)

func main() {
	root := &cobra.Command{
		Use:           "daymet",
		Short:         "Download and process Daymet climate rasters",
		Version:       fmt.Sprintf("%s (%s)", downloader.Version, downloader.GitSHA),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logging.Config{Format: logFormat, Level: logLevel})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (off when empty)")

	root.AddCommand(downloadCmd(), processCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <config>",
		Short: "Fetch Daymet subsets per the given download config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDownload(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			store, err := storage.NewStore(ctx, cfg.OutputDir)
			if err != nil {
				return fmt.Errorf("create storage: %w", err)
			}
			defer store.Close()

			m := serveMetrics()
			client := fetch.NewClient(cfg.Version, cfg.ReadTimeout, m, logging.Component("fetch"))
			_, err = downloader.New(cfg, client, store, m, logging.Component("downloader")).Run(ctx)
			return err
		},
	}
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "process {merge|clip|aggregate} <config>",
		Short:     "Run one processing operation over downloaded files",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"merge", "clip", "aggregate"},
		RunE: func(cmd *cobra.Command, args []string) error {
			operation := args[0]
			cfg, err := config.LoadProcessing(args[1])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			store, err := storage.NewStore(ctx, cfg.OutputDir)
			if err != nil {
				return fmt.Errorf("create storage: %w", err)
			}
			defer store.Close()

			p := process.New(cfg, store, serveMetrics(), logging.Component("process"))
			switch operation {
			case "merge":
				return p.Combine(ctx)
			case "clip":
				return p.Clip(ctx)
			case "aggregate":
				return p.Aggregate(ctx)
			default:
				return fmt.Errorf("unknown operation %q (want merge, clip or aggregate)", operation)
			}
		},
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serveMetrics registers the pipeline metrics and exposes them when a
// metrics address is configured.
func serveMetrics() *metrics.Metrics {
	m := metrics.Init("")
	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(metricsAddr); err != nil {
				slog.Error("metrics server failed", "addr", metricsAddr, "error", err)
			}
		}()
	}
	return m
}
