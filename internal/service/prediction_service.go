// Package service wires the prediction core into request-level workflows.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/fantasy-edge/internal/models"
	"github.com/yourusername/fantasy-edge/internal/tracing"
)

// ErrInvalidGame indicates a game context that cannot be predicted
var ErrInvalidGame = errors.New("invalid game context")

// Predictor produces an ensemble prediction for a game
type Predictor interface {
	Predict(ctx context.Context, game models.GameContext) (*models.EnsemblePrediction, error)
}

// PredictionTracker records predictions and settles them
type PredictionTracker interface {
	Record(ctx context.Context, record *models.PredictionRecord) error
	UpdateWithResult(ctx context.Context, id uuid.UUID, actualWinner string) (*models.PredictionRecord, error)
}

// PredictionService turns a game context into a tracked prediction record
type PredictionService struct {
	predictor Predictor
	tracker   PredictionTracker
	validate  *validator.Validate
	logger    *logrus.Logger
}

// NewPredictionService creates a new prediction service
func NewPredictionService(predictor Predictor, tracker PredictionTracker, logger *logrus.Logger) *PredictionService {
	return &PredictionService{
		predictor: predictor,
		tracker:   tracker,
		validate:  validator.New(),
		logger:    logger,
	}
}

// PredictGame runs the ensemble for a game and registers the result with the
// tracker. Predictions without model quorum are returned unrecorded so they
// never count toward accuracy.
func (s *PredictionService) PredictGame(ctx context.Context, game models.GameContext) (*models.PredictionRecord, error) {
	if err := s.validateGame(game); err != nil {
		return nil, err
	}

	tracing.AddAnnotation(ctx, "game_id", game.GameID)

	var prediction *models.EnsemblePrediction
	err := tracing.Capture(ctx, "ensemble.predict", func(ctx context.Context) error {
		var err error
		prediction, err = s.predictor.Predict(ctx, game)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to predict game %s: %w", game.GameID, err)
	}

	home, away := teamLabel(game.Home), teamLabel(game.Away)
	winner := away
	if prediction.Probability >= 0.5 {
		winner = home
	}

	record := &models.PredictionRecord{
		Prediction:      *prediction,
		HomeTeam:        home,
		AwayTeam:        away,
		PredictedWinner: winner,
		Sport:           game.Sport,
		GameDate:        game.StartTime.UTC(),
	}

	if prediction.NoModelQuorum {
		s.logger.WithFields(logrus.Fields{
			"game_id":    game.GameID,
			"responders": prediction.Responders(),
		}).Warn("Prediction has no model quorum, not tracking")
		return record, nil
	}

	if err := s.tracker.Record(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record prediction: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"prediction_id":    record.ID,
		"game_id":          game.GameID,
		"predicted_winner": winner,
		"probability":      prediction.Probability,
		"confidence":       prediction.Confidence,
	}).Info("Prediction recorded")

	return record, nil
}

// SettleGame attaches the actual winner to a recorded prediction
func (s *PredictionService) SettleGame(ctx context.Context, id uuid.UUID, actualWinner string) (*models.PredictionRecord, error) {
	record, err := s.tracker.UpdateWithResult(ctx, id, actualWinner)
	if err != nil {
		return nil, fmt.Errorf("failed to settle prediction %s: %w", id, err)
	}
	return record, nil
}

func (s *PredictionService) validateGame(game models.GameContext) error {
	if err := s.validate.Struct(game); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGame, err)
	}
	home, away := teamLabel(game.Home), teamLabel(game.Away)
	if home == "" || away == "" {
		return fmt.Errorf("%w: both teams need an id or name", ErrInvalidGame)
	}
	if home == away {
		return fmt.Errorf("%w: home and away are both %q", ErrInvalidGame, home)
	}
	return nil
}

// teamLabel identifies a side by id, falling back to its name
func teamLabel(t models.TeamContext) string {
	if t.TeamID != "" {
		return t.TeamID
	}
	return t.Name
}
