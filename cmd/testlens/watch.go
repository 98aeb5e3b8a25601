package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jward/testlens/internal/metrics"
	"github.com/jward/testlens/internal/watch"
)

func (a *app) watchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Print impacted tests whenever Python files change",
		Long: "Records a snapshot if none exists, then watches the workspace and prints the impacted tests " +
			"after each burst of changes, advancing the snapshot each time.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTargetDir(args)
			if err != nil {
				return err
			}
			if metricsAddr == "" {
				metricsAddr = a.cfg.Watch.MetricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := a.newEngine(dir)
			if err != nil {
				return err
			}
			defer engine.Close()

			has, err := engine.Query().Root(dir).HasSnapshot()
			if err != nil {
				return err
			}
			if !has {
				if _, err := engine.Snapshot(ctx, dir); err != nil {
					return err
				}
			}

			if metricsAddr != "" {
				srv := a.serveMetrics(metricsAddr)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			changes := make(chan []string, 1)
			w, err := watch.NewWatcher(watch.Options{
				Debounce:    a.cfg.Watch.Debounce,
				ExcludeDirs: watch.DefaultExcludeDirs,
				Logger:      a.logger,
			}, func(paths []string) {
				select {
				case changes <- paths:
				case <-ctx.Done():
				}
			})
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Watch([]string{dir}); err != nil {
				return err
			}
			a.logger.WithField("root", dir).Info("watching for changes")

			for {
				select {
				case <-ctx.Done():
					return nil
				case paths := <-changes:
					a.logger.WithField("files", len(paths)).Debug("change batch")
					impact, err := engine.Impacted(ctx, dir, true)
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return nil
						}
						// A half-written file fails to parse; wait for the next save.
						a.logger.WithError(err).Warn("impact analysis failed")
						continue
					}
					a.logRemoved(impact)
					if err := a.output(toCLIImpact(impact)); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func (a *app) serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("metrics server stopped")
		}
	}()
	a.logger.WithFields(logrus.Fields{"addr": addr}).Info("serving metrics")
	return srv
}
