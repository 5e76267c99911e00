package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"FxSignal/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the Kafka bar consumer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		defer cleanup()
		return app.Run(cmd.Context())
	},
}
