package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
	"github.com/JeanGrijp/go-csrf/v2/csrfprom"
	"github.com/JeanGrijp/go-csrf/v2/internal/config"
	"github.com/JeanGrijp/go-csrf/v2/internal/demo"
	"github.com/JeanGrijp/go-csrf/v2/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "csrfdemo",
		Short: "Serve the CSRF protection demo forms",
		Long: `csrfdemo serves two small HTML forms protected against CSRF.

Settings come from the environment (and a .env file); flags override them.

Example usage:
  csrfdemo                          # blanket middleware, cookie storage
  csrfdemo --mode manual            # per-handler protection
  csrfdemo --storage redis          # tokens in Redis-backed sessions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("addr", "", "listen address (env ADDR)")
	cmd.Flags().String("mode", "", "middleware or manual (env CSRF_MODE)")
	cmd.Flags().String("policy", "", "form, header or both (env CSRF_POLICY)")
	cmd.Flags().String("storage", "", "cookie, session or redis (env CSRF_STORAGE)")
	cmd.Flags().Bool("metrics", true, "expose /metrics (env METRICS_ENABLED)")
	return cmd
}

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"addr":    &cfg.Addr,
		"mode":    &cfg.Mode,
		"policy":  &cfg.Policy,
		"storage": &cfg.Storage,
	} {
		if flags.Changed(name) {
			if *dst, err = flags.GetString(name); err != nil {
				return nil, err
			}
		}
	}
	if flags.Changed("metrics") {
		if cfg.MetricsEnabled, err = flags.GetBool("metrics"); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newServerHandler builds the demo application and, when enabled, the
// /metrics endpoint on reg.
func newServerHandler(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (http.Handler, func() error, error) {
	storage, closeStorage, err := demo.NewStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	policy, err := demo.NewPolicy(cfg.Policy)
	if err != nil {
		_ = closeStorage()
		return nil, nil, err
	}

	var observer csrf.Observer
	if cfg.MetricsEnabled {
		col, err := csrfprom.New(reg, "csrfdemo")
		if err != nil {
			_ = closeStorage()
			return nil, nil, err
		}
		observer = col
	}

	app, err := demo.NewHandler(demo.Options{
		Mode:     cfg.Mode,
		Policy:   policy,
		Storage:  storage,
		Logger:   logger,
		Observer: observer,
	})
	if err != nil {
		_ = closeStorage()
		return nil, nil, err
	}

	mux := http.NewServeMux()
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", app)
	return mux, closeStorage, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)

	handler, closeStorage, err := newServerHandler(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.Error("closing storage", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "mode", cfg.Mode, "policy", cfg.Policy, "storage", cfg.Storage)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
