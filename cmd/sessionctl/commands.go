package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creastat/storage/config"
	"github.com/creastat/storage/metrics"
	"github.com/creastat/storage/session"
	"github.com/creastat/storage/session/drivers"
)

// openFunc opens the configured backend. drivers.Open in production.
type openFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*drivers.Backend, error)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	open       openFunc
	configPath string

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	backend  *drivers.Backend
	store    *session.Store
}

func newRootCmd(open openFunc) *cobra.Command {
	a := &app{open: open}

	rootCmd := &cobra.Command{
		Use:   "sessionctl",
		Short: "Inspect and expire stored sessions",
		Long: `sessionctl drives the session lifecycle (read, write, destroy, gc)
against a MongoDB, Redis, Supabase or in-memory session backend.

Configuration is read from --config, then SESSIONSTORE_* environment
variables, then flags.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.String("driver", "", "session backend: memory, mongo, redis or supabase")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		a.readCmd(),
		a.writeCmd(),
		a.createCmd(),
		a.destroyCmd(),
		a.gcCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.logger = logger

	backend, err := a.open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	a.backend = backend

	a.registry = prometheus.NewRegistry()
	coll, err := metrics.NewCollection(backend.Collection, a.registry)
	if err != nil {
		return err
	}

	a.store, err = session.NewStore(
		session.WithCollection(coll),
		session.WithLogger(logger.Named("session")),
	)
	return err
}

func (a *app) teardown(ctx context.Context) error {
	var err error
	if a.backend != nil {
		err = a.backend.Close(ctx)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, &session.ConfigurationError{Option: "log.level", Reason: err.Error()}
	}

	cfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func (a *app) readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Print a session payload and refresh its modified time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.store.Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}

func (a *app) writeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <id> <payload>",
		Short: "Store a session payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.store.Write(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <payload>",
		Short: "Store a payload under a new session id and print the id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := session.NewID()
			if _, err := a.store.Write(cmd.Context(), id, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func (a *app) destroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.store.Destroy(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func (a *app) gcCmd() *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete sessions idle for longer than the max lifetime",
		Long: `gc deletes every session whose modified time is at or before
now minus --max-lifetime. With --interval it keeps running and repeats the
sweep until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			maxLifetime := int64(a.cfg.GC.MaxLifetime / time.Second)

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", zap.Error(err))
					}
				}()
				defer func() { _ = srv.Shutdown(context.WithoutCancel(ctx)) }()
			}

			if interval <= 0 {
				return a.sweep(cmd, maxLifetime)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := a.sweep(cmd, maxLifetime); err != nil {
					a.logger.Warn("gc sweep failed", zap.Error(err))
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().Duration("max-lifetime", 0, "idle time after which a session is deleted (default from config, 24m)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the sweep at this interval until interrupted")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

func (a *app) sweep(cmd *cobra.Command, maxLifetime int64) error {
	ok, err := a.store.GC(cmd.Context(), maxLifetime)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ok)
	return nil
}
