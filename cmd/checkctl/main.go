package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaki95/check-engine/config"
	"github.com/jaki95/check-engine/internal/controller"
	"github.com/jaki95/check-engine/internal/transport"
)

var (
	configPath string
	serverURL  string
	verbose    bool

	cfg    *config.Config
	client *transport.HTTP
)

var rootCmd = &cobra.Command{
	Use:   "checkctl",
	Short: "Run and inspect project checks",
	Long: `checkctl talks to a running check service.

It starts checks and follows their progress, pauses, resumes and cancels
running tasks, pages through reported errors and draws image annotations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if serverURL != "" {
			cfg.Server.BaseURL = serverURL
		}

		client = transport.NewHTTP(cfg.Server.BaseURL,
			transport.WithRateLimit(cfg.Poll.RequestsPerSecond, 1),
		)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Check service URL (overrides the configuration)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func controllerOptions(listeners ...controller.Listener) controller.Options {
	return controller.Options{
		PollInterval: cfg.Poll.Interval,
		MaxBackoff:   cfg.Poll.MaxBackoff,
		Listeners:    listeners,
	}
}
