// Command smartdine runs the SmartDine ordering, kitchen and tracking
// services and their operator tooling.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"smartdine/internal/config"
	"smartdine/internal/logger"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "smartdine"

	defaultConfigPath = "config.yaml"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Restaurant table ordering services",
		Long: `SmartDine lets guests order from their table and the kitchen work
through the resulting order queue.

Services:
- ordering: menu, guest sessions, carts and checkout
- kitchen:  live order board and status advancement
- tracker:  order status history from the event bus
- serve:    ordering and kitchen in one process`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath, "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		orderingCmd(flags),
		kitchenCmd(flags),
		serveCmd(flags),
		trackerCmd(flags),
		migrateCmd(flags),
		seedMenuCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

func orderingCmd(flags *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "ordering",
		Short: "Run the guest ordering API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(flags, "ordering-service", func(ctx context.Context, a *app) error {
				if port > 0 {
					a.cfg.HTTP.OrderingPort = port
				}
				return a.runOrdering(ctx)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides config)")
	return cmd
}

func kitchenCmd(flags *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "kitchen",
		Short: "Run the kitchen order board API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(flags, "kitchen-service", func(ctx context.Context, a *app) error {
				if port > 0 {
					a.cfg.HTTP.KitchenPort = port
				}
				return a.runKitchen(ctx)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides config)")
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run ordering and kitchen in one process over a shared store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(flags, "smartdine", func(ctx context.Context, a *app) error {
				return a.runAll(ctx)
			})
		},
	}
}

func trackerCmd(flags *globalFlags) *cobra.Command {
	var (
		port     int
		prefetch int
	)
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Record order events and serve order history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(flags, "tracking-service", func(ctx context.Context, a *app) error {
				if port > 0 {
					a.cfg.HTTP.TrackerPort = port
				}
				return a.runTracker(ctx, prefetch)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides config)")
	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "RabbitMQ prefetch count")
	return cmd
}

func migrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(flags, "migrate", func(ctx context.Context, a *app) error {
				return a.migrate(ctx)
			})
		},
	}
}

func seedMenuCmd(flags *globalFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-menu",
		Short: "Load menu items from a YAML file into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(flags, "seed-menu", func(ctx context.Context, a *app) error {
				return a.seedMenu(ctx, file)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "menu.yaml", "Menu seed file")
	return cmd
}

// runService loads config, builds the logger and runs fn until SIGINT or
// SIGTERM.
func runService(flags *globalFlags, service string, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewWithWriter(service, os.Stdout, parseLevel(flags.logLevel))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, log)
	defer a.close()

	log.Info("service_starting", fmt.Sprintf("Starting %s", service), "startup", map[string]interface{}{
		"version":       Version,
		"store_backend": cfg.Store.Backend,
		"rabbitmq":      cfg.RabbitMQ.Enabled,
	})

	if err := fn(ctx, a); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("service_failed", fmt.Sprintf("%s failed", service), "shutdown", err, nil)
		return err
	}
	log.Info("service_stopped", fmt.Sprintf("%s stopped", service), "shutdown", nil)
	return nil
}

// loadConfig reads path; the default path may be absent, in which case
// defaults and environment apply.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
