// Package main provides the entry point for the prediction engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/fantasy-edge/internal/config"
	"github.com/yourusername/fantasy-edge/internal/ensemble"
	"github.com/yourusername/fantasy-edge/internal/features"
	"github.com/yourusername/fantasy-edge/internal/logger"
	"github.com/yourusername/fantasy-edge/internal/ml"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	cfg        *config.Config
	appLog     *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(serveCmd, predictCmd, evaluateCmd, statusCmd)
}

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "Sports prediction and bankroll risk engine",
	Long: `Runs the ensemble prediction engine, the continuous learning tracker and
the bankroll risk manager. Use "serve" for the long-running service or the
offline subcommands against local files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	secretsCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := config.LoadSecretsFromAWS(secretsCtx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLog = logger.NewLoggerForEnvironment(cfg.App.LogLevel, cfg.App.Environment)
	return nil
}

// buildRegistry loads every configured artifact and dials every remote model.
// Artifacts that fail to load are logged and skipped.
func buildRegistry(ctx context.Context) (*ml.Registry, error) {
	var opts []ml.RegistryOption
	if cfg.Inference.CacheTTL() > 0 {
		opts = append(opts, ml.WithOutputCache(ml.NewOutputCache(cfg.Inference.CacheTTL(), cfg.Inference.CacheMaxSize)))
	}
	registry := ml.NewRegistry(ml.NewFileArtifactLoader(cfg.Inference.ArtifactDir), appLog, opts...)

	if err := registry.LoadAll(ctx, cfg.Inference.Models); err != nil {
		appLog.WithError(err).Warn("Some model artifacts failed to load")
	}

	for _, remote := range cfg.Inference.Remote {
		adapter, err := ml.NewRemoteAdapter(remote, appLog)
		if err != nil {
			appLog.WithError(err).WithField("model", remote.Name).Warn("Failed to create remote model client")
			continue
		}
		if err := registry.Register(adapter); err != nil {
			_ = adapter.Close()
			return nil, err
		}
	}

	if registry.Len() == 0 {
		_ = registry.Close()
		return nil, fmt.Errorf("%w: no models loaded from %s", ml.ErrModelUnavailable, cfg.Inference.ArtifactDir)
	}
	return registry, nil
}

func buildCombiner(registry *ml.Registry) *ensemble.Combiner {
	return ensemble.NewCombiner(
		registry,
		features.NewExtractor(cfg.Inference.SequenceLength),
		ensemble.NewWeightTable(cfg.Ensemble.Weights),
		ensemble.NewPatternBooster(cfg.Patterns),
		cfg.Ensemble,
		cfg.Inference.PerModelTimeout(),
		appLog,
	)
}

func readJSON(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
