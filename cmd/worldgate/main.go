package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/pawaret/worldgate/pkg/config"
	"github.com/pawaret/worldgate/pkg/prettylog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "worldgate",
	Short:        "World ID sign-in and proof verification backend",
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Path(), nil)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	var handler slog.Handler
	if cfg.PrettyLogs {
		handler = prettylog.NewHandler(cfg.SlogLevel())
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	}
	slog.SetDefault(slog.New(handler))
}
