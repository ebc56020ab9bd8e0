package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evswap/stationd/api/stations"
	"github.com/evswap/stationd/api/swaps"
	"github.com/evswap/stationd/config"
	"github.com/evswap/stationd/core/notifier"
	"github.com/evswap/stationd/core/store"
	"github.com/evswap/stationd/core/swap"
	"github.com/evswap/stationd/infra/logger"
	"github.com/evswap/stationd/infra/mqtt"
	"github.com/evswap/stationd/infra/storage/memory"
	"github.com/evswap/stationd/infra/storage/sqlite"
	"github.com/evswap/stationd/internal/realtime"
	"github.com/evswap/stationd/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the swap API server",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.NewWithLevel("serve", cfg.Logging.Level)

	var st store.Runner
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logg.Errorf("close store: %v", cerr)
			}
		}()
		st = db
	default:
		st = memory.New()
	}

	hub := realtime.NewHub(logg)
	defer hub.Close()
	notifs := notifier.Multi{hub}
	if cfg.MQTT.Enabled {
		n, err := mqtt.NewNotifier(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt notifier: %w", err)
		}
		defer n.Close()
		notifs = append(notifs, n)
	}

	var sinks metrics.MultiSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
		go func() {
			if err := metrics.StartPromServer(ctx, cfg.Metrics.PrometheusAddr); err != nil {
				logg.Errorf("prom server: %v", err)
			}
		}()
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink metrics.SwapSink = metrics.NopSink{}
	if len(sinks) > 0 {
		sink = sinks
	}

	engine, err := swap.NewEngine(st, notifs, sink, logg)
	if err != nil {
		return fmt.Errorf("swap engine: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/swaps/commit", swaps.NewCommitHandler(engine, logg))
	mux.Handle("/api/swaps/cancel", swaps.NewCancelHandler(engine, logg))
	mux.Handle("/api/stations/inventory", stations.NewInventoryHandler(st))

	srv := &http.Server{Addr: cfg.API.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logg.Errorf("api shutdown: %v", err)
		}
	}()
	logg.Infof("serving swap API on %s (storage: %s)", cfg.API.Addr, cfg.Storage.Driver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
