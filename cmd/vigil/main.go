package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/vigil/pkg/config"
	"github.com/cuemby/vigil/pkg/filestore"
	"github.com/cuemby/vigil/pkg/log"
	"github.com/cuemby/vigil/pkg/metrics"
	"github.com/cuemby/vigil/pkg/notify"
	"github.com/cuemby/vigil/pkg/probe"
	"github.com/cuemby/vigil/pkg/registry"
	"github.com/cuemby/vigil/pkg/store"
	"github.com/cuemby/vigil/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil - Uptime and cron job monitoring daemon",
	Long: `Vigil watches HTTP endpoints and scheduled tasks, opens incidents
when they misbehave and notifies operators over e-mail, SMS and push.

All state lives in PostgreSQL; any number of vigil instances can run
against the same database.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Vigil version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrationsCmd)
	migrationsCmd.AddCommand(migrationsRunCmd)
	migrationsCmd.AddCommand(migrationsUndoCmd)
}

// loadConfig builds the effective configuration and initializes logging
func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			return cfg, err
		}
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return cfg, cfg.Validate()
}

// buildRegistry wires the collaborators selected by the configuration
func buildRegistry(ctx context.Context, cfg config.Config, st store.Store) (*registry.Registry, error) {
	reg := &registry.Registry{Store: st}

	if cfg.BrowserServiceGRPCAddress != "" {
		browser, err := probe.NewBrowserProber(cfg.BrowserServiceGRPCAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to connect browser service: %w", err)
		}
		reg.Prober = browser
	} else {
		reg.Prober = probe.NewHTTPProber()
	}

	if cfg.SMTP.Host != "" {
		reg.Mailer = notify.NewSMTPMailer(cfg.SMTP)
	}
	if cfg.SMS.Region != "" {
		sms, err := notify.NewSNSSender(ctx, cfg.SMS)
		if err != nil {
			return nil, fmt.Errorf("failed to set up SMS channel: %w", err)
		}
		reg.SMS = sms
	}
	if cfg.Push.GatewayURL != "" {
		reg.Push = notify.NewWebhookPushSender(cfg.Push)
	}
	if cfg.S3.Bucket != "" {
		files, err := filestore.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to set up file store: %w", err)
		}
		reg.Files = files
	}
	return reg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring daemon",
	Long: `Run migrations, start every worker and serve Prometheus metrics
until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		logger := log.WithComponent("serve")

		if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
		st, err := store.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConnections)
		if err != nil {
			return err
		}
		defer st.Close()

		reg, err := buildRegistry(ctx, cfg, st)
		if err != nil {
			return err
		}

		supervisor := worker.NewSupervisor(worker.All(reg, cfg)...)
		supervisor.Start()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer := &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		logger.Info().Str("address", cfg.MetricsAddress).Msg("Vigil started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")

		supervisor.Stop()
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <worker>",
	Short: "Run one worker cycle synchronously",
	Long: `Run a single cycle of the named worker and exit. Useful for
operational diagnostics and cron-driven deployments.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()

		st, err := store.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConnections)
		if err != nil {
			return err
		}
		defer st.Close()

		reg, err := buildRegistry(ctx, cfg, st)
		if err != nil {
			return err
		}

		supervisor := worker.NewSupervisor(worker.All(reg, cfg)...)
		w, err := supervisor.Worker(args[0])
		if err != nil {
			return fmt.Errorf("%w (available: %v)", err, supervisor.Names())
		}

		claimed, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: processed %d rows\n", w.Name(), claimed)
		return nil
	},
}

var migrationsCmd = &cobra.Command{
	Use:   "migrations",
	Short: "Manage database migrations",
}

var migrationsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := store.Migrate(context.Background(), cfg.DatabaseURL); err != nil {
			return err
		}
		fmt.Println("Migrations applied")
		return nil
	},
}

var migrationsUndoCmd = &cobra.Command{
	Use:   "undo <n>",
	Short: "Roll back the last n migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid migration count %q", args[0])
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := store.MigrateDown(context.Background(), cfg.DatabaseURL, n); err != nil {
			return err
		}
		fmt.Printf("Rolled back %d migration(s)\n", n)
		return nil
	},
}
