package cli

import (
	"context"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-visualizer/internal/config"
	"stock-visualizer/internal/logging"
	"stock-visualizer/internal/market"
	"stock-visualizer/internal/resilience"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-03-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	// NewProvider builds the market data provider. Tests replace it.
	NewProvider func() market.Provider
}

// NewApp creates an App with the Yahoo provider and a disabled logger.
// Config and logger are filled in by the root command before any subcommand runs.
func NewApp() *App {
	return &App{
		Logger:      zerolog.Nop(),
		NewProvider: func() market.Provider { return market.NewYahooProvider() },
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockviz",
		Short: "Stock Visualizer - live quotes, charts and price alerts",
		Long: `Stock Visualizer tracks a watchlist of stock symbols, polls current prices
and rolling price history on a fixed interval, and raises threshold alerts.

Use 'stockviz watch AAPL MSFT' to start an interactive session.
Use 'stockviz examples' to see common workflows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-visualizer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newExamplesCmd())

	return rootCmd
}

// Execute runs the CLI with a context that subcommands observe for shutdown.
func Execute(ctx context.Context, app *App, args []string) error {
	rootCmd := NewRootCmd(app)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// init loads configuration and builds the logger. A Config set ahead of
// time (tests) is kept.
func (app *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = app.ConfigDir
	}
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	app.ConfigDir = dir

	if app.Config == nil {
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		app.Config = cfg

		logCfg := logging.DefaultLogConfig()
		logCfg.Level = cfg.Logging.Level
		logCfg.File = cfg.Logging.File
		logCfg.FilePath = cfg.Logging.FilePath
		logCfg.MaxSize = cfg.Logging.MaxSize
		logCfg.MaxBackups = cfg.Logging.MaxBackups
		logCfg.MaxAge = cfg.Logging.MaxAge
		// Below warn, console logs would scroll the interactive tables away.
		if logCfg.Level == "info" || logCfg.Level == "debug" {
			logCfg.Console = false
		}
		app.Logger = logging.NewLoggerWithConfig(logCfg)
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}
	if !app.Config.UI.ColorEnabled {
		color.NoColor = true
	}
	return nil
}

// newFetcher builds a fetcher over a fresh provider with the configured
// timeout and per-symbol circuit breakers.
func (app *App) newFetcher(poll config.PollConfig) *market.Fetcher {
	return market.NewFetcher(app.NewProvider(), app.Logger,
		market.WithTimeout(poll.FetchTimeout),
		market.WithBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: poll.BreakerThreshold,
			Cooldown:         poll.BreakerCooldown,
		}),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Stock Visualizer v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := filepath.Join(app.ConfigDir, "config.toml")
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Polling")
	output.Printf("  Interval:        %ds\n", cfg.Poll.IntervalSeconds)
	output.Printf("  History days:    %d\n", cfg.Poll.HistoryDays)
	output.Printf("  Concurrency:     %d\n", cfg.Poll.Concurrency)
	output.Printf("  Fetch timeout:   %s\n", cfg.Poll.FetchTimeout)
	output.Printf("  Breaker:         %d failures, %s cooldown\n", cfg.Poll.BreakerThreshold, cfg.Poll.BreakerCooldown)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Archive:         %v (%s)\n", cfg.Archive.Enabled, cfg.Archive.Path)
	output.Printf("  Export dir:      %s\n", cfg.Export.Dir)
	output.Println()

	output.Bold("Live Feed")
	output.Printf("  Enabled:         %v\n", cfg.Feed.Enabled)
	output.Printf("  Address:         %s\n", cfg.Feed.Addr)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Bell:            %v\n", cfg.Notifications.Bell)
	output.Printf("  Webhook:         %v (%d attempts)\n", cfg.Notifications.Webhook.Enabled, cfg.Notifications.Webhook.RetryAttempts)
	output.Printf("  Telegram:        %v\n", cfg.Notifications.Telegram.Enabled)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %s\n", cfg.Logging.FilePath)
}
