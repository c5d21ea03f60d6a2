package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/fantasy-edge/internal/learning"
	"github.com/yourusername/fantasy-edge/internal/ml"
	"github.com/yourusername/fantasy-edge/internal/models"
	"github.com/yourusername/fantasy-edge/internal/risk"
	"github.com/yourusername/fantasy-edge/internal/service"
)

var (
	gameFile    string
	profileFile string
	betFile     string
)

func init() {
	predictCmd.Flags().StringVar(&gameFile, "context", "", "Path to a game context JSON file")
	_ = predictCmd.MarkFlagRequired("context")

	evaluateCmd.Flags().StringVar(&profileFile, "profile", "", "Path to a risk profile JSON file (defaults apply when omitted)")
	evaluateCmd.Flags().StringVar(&betFile, "bet", "", "Path to an evaluation request JSON file")
	_ = evaluateCmd.MarkFlagRequired("bet")
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run the ensemble once against a game context file",
	RunE: func(cmd *cobra.Command, args []string) error {
		appLog.SetOutput(os.Stderr)

		var game models.GameContext
		if err := readJSON(gameFile, &game); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		registry, err := buildRegistry(ctx)
		if err != nil {
			return err
		}
		defer registry.Close()

		tracker := learning.NewTracker(cfg.Learning, nil, appLog)
		record, err := service.NewPredictionService(buildCombiner(registry), tracker, appLog).PredictGame(ctx, game)
		if err != nil {
			return err
		}
		return printJSON(record)
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a proposed bet against a risk profile file",
	RunE: func(cmd *cobra.Command, args []string) error {
		appLog.SetOutput(os.Stderr)

		var req risk.EvaluationRequest
		if err := readJSON(betFile, &req); err != nil {
			return err
		}

		store := risk.NewMemoryProfileStore()
		if profileFile != "" {
			var profile models.RiskProfile
			if err := readJSON(profileFile, &profile); err != nil {
				return err
			}
			if req.UserID == "" {
				req.UserID = profile.UserID
			}
			if profile.StartingBankroll == 0 {
				profile.StartingBankroll = profile.Bankroll
			}
			store = risk.NewMemoryProfileStore(profile)
		}

		manager := risk.NewManager(cfg.Risk, store, &risk.MemoryAlertSink{}, appLog)
		return printJSON(manager.EvaluateBet(cmd.Context(), req))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the training service and the model artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		fmt.Printf("Prediction engine %s (%s, built %s)\n\n", Version, GitCommit, BuildDate)

		fmt.Print("Training service: ")
		trainer := ml.NewTrainingClient(cfg.Training, appLog)
		defer trainer.Close()
		if err := trainer.HealthCheck(ctx); err != nil {
			fmt.Println("UNAVAILABLE")
			fmt.Printf("  Error: %v\n", err)
		} else {
			fmt.Println("ONLINE")
		}

		fmt.Println("\nModels:")
		registry, err := buildRegistry(ctx)
		if err != nil {
			fmt.Printf("  Error: %v\n", err)
		} else {
			defer registry.Close()
			for _, a := range registry.Adapters() {
				fmt.Printf("  %-20s %-16s v%-10s %s[%d]\n", a.Name(), a.Family(), a.Version(), a.FeatureSet(), a.InputSize())
			}
		}

		fmt.Println("\nConfiguration:")
		fmt.Printf("  Artifact dir: %s\n", cfg.Inference.ArtifactDir)
		fmt.Printf("  Per-model timeout: %s\n", cfg.Inference.PerModelTimeout())
		fmt.Printf("  Minimum responders: %d\n", cfg.Ensemble.MinResponders)
		fmt.Printf("  Retrain threshold: %.2f over %d samples\n", cfg.Learning.RetrainThreshold, cfg.Learning.MinimumSampleSize)
		fmt.Printf("  Retrain sweep: %s\n", cfg.Learning.SweepSchedule)
		return nil
	},
}
