package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hupe1980/gatemesh"
	"github.com/hupe1980/gatemesh/connector"
	"github.com/hupe1980/gatemesh/core"
	"github.com/hupe1980/gatemesh/internal/config"
	"github.com/hupe1980/gatemesh/logging"
	"github.com/hupe1980/gatemesh/metrics"
	"github.com/hupe1980/gatemesh/store"
	redisstore "github.com/hupe1980/gatemesh/store/redis"
)

type rootFlags struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:          "gateway",
		Short:        "Messaging gateway middleware host with session length tracking",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Printf("warning: failed to load %s: %v", flags.envFile, err)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to a YAML config file (defaults to $"+config.FileEnv+")")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newSessionCmd(flags))
	return rootCmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the connector HTTP and websocket endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the configured address")
	return cmd
}

func newSessionCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "session <connector> <address>",
		Short: "Print the open session between a connector and an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			kv, closeStore, err := openStore(cmd.Context(), cfg.Store, logger)
			if err != nil {
				return fmt.Errorf("failed to open session store: %w", err)
			}
			defer closeStore()

			gw, err := gatemesh.New(func(o *gatemesh.Options) {
				o.Store = kv
				o.Session = cfg.Session
				o.Logger = logger
			})
			if err != nil {
				return fmt.Errorf("failed to create gateway: %w", err)
			}

			info, err := gw.Session(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			ttl := info.TTL.Seconds()
			if info.TTL == core.NoExpiry {
				ttl = -1
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"key":           info.Key,
				"session_start": info.Start,
				"started_at":    core.FromUnixSeconds(info.Start).UTC().Format(time.RFC3339Nano),
				"ttl_seconds":   ttl,
			})
		},
	}
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configFile != "" {
		cfg, err = config.LoadFile(flags.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.GatewayLogger {
	return logging.NewSlogLogger(cfg.Log.Level, cfg.Log.Format, false).WithComponent("gateway")
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	kv, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer closeStore()

	var (
		recorder   core.Recorder = core.NoOpRecorder{}
		routerOpts []func(o *connector.RouterOptions)
	)
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics.Namespace, func(o *metrics.CollectorOptions) {
			o.Connectors = cfg.Metrics.Connectors
		})
		recorder = collector
		routerOpts = append(routerOpts, func(o *connector.RouterOptions) { o.Metrics = collector.Handler() })
	}

	gw, err := gatemesh.New(func(o *gatemesh.Options) {
		o.Store = kv
		o.Session = cfg.Session
		o.Logger = logger
		o.Recorder = recorder
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	defer func() {
		if err := gw.Close(context.Background()); err != nil {
			logger.Error("gateway.close.failed", "error", err)
		}
	}()

	router := connector.NewRouter(gw, logger.WithComponent("connector"), routerOpts...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("gateway listening", "addr", cfg.Server.Addr, "store", cfg.Store.Backend, "metrics", cfg.Metrics.Enabled)
	return runServer(ctx, srv)
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger logging.Logger) (core.KVStore, func(), error) {
	if cfg.Backend != config.BackendRedis {
		logger.Warn("using in-memory session store; sessions are not shared between workers", "cleanup_interval", cfg.CleanupInterval)
		ms := store.NewInMemoryStore(func(o *store.InMemoryOptions) {
			o.CleanupInterval = cfg.CleanupInterval
		})
		return ms, func() { _ = ms.Close() }, nil
	}

	rs := redisstore.NewFromConfig(redisstore.Config{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.KeyPrefix,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		_ = rs.Close()
		return nil, nil, err
	}
	return rs, func() { _ = rs.Close() }, nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
