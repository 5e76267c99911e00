package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"FxSignal/internal/di"
	"FxSignal/pkg/config"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "fxsignal",
	Short: "Forex signal inference, meta ranking and backtesting",
	Long: `fxsignal scores configured forex pairs with the trained classifiers,
ranks currencies with the meta models, replays history, backtests the
recorded signals and serves the results over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config (ignored when absent)")

	rootCmd.AddCommand(serveCmd, inferCmd, metaCmd, backtestCmd, historyCmd, labelsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies the dotenv file, then YAML, then FXSIGNAL_* overrides.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// withPipeline wires the batch use cases, runs fn and releases connections.
func withPipeline(fn func(ctx context.Context, p *di.Pipeline) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, cleanup, err := di.InitializePipeline(cfg)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		defer cleanup()
		return fn(cmd.Context(), p)
	}
}
