package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// PostgresPredictionRepository stores prediction records and their settlement
type PostgresPredictionRepository struct {
	db Connector
}

// NewPostgresPredictionRepository creates a new prediction repository
func NewPostgresPredictionRepository(db Connector) *PostgresPredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

// Create inserts a new unsettled prediction
func (r *PostgresPredictionRepository) Create(ctx context.Context, record *models.PredictionRecord) error {
	payload, err := json.Marshal(storedPrediction(record.Prediction))
	if err != nil {
		return fmt.Errorf("failed to encode prediction: %w", err)
	}

	query := `
		INSERT INTO predictions (id, game_id, sport, home_team, away_team, predicted_winner,
		                         probability, confidence, prediction, game_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	createdAt := record.Prediction.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.Conn(ctx).Exec(ctx, query,
		record.ID, record.Prediction.GameID, string(record.Sport), record.HomeTeam, record.AwayTeam,
		record.PredictedWinner, record.Prediction.Probability, record.Prediction.Confidence,
		payload, record.GameDate, createdAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: prediction %s", models.ErrDuplicateKey, record.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}

	return nil
}

// Settle records the outcome of a prediction exactly once
func (r *PostgresPredictionRepository) Settle(ctx context.Context, id uuid.UUID, actualWinner string, correct bool, settledAt time.Time) error {
	query := `
		UPDATE predictions
		SET actual_winner = $2, correct = $3, settled_at = $4
		WHERE id = $1 AND settled_at IS NULL
	`

	conn := r.db.Conn(ctx)
	tag, err := conn.Exec(ctx, query, id, actualWinner, correct, settledAt)
	if err != nil {
		return fmt.Errorf("failed to settle prediction: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var settled bool
	err = conn.QueryRow(ctx, `SELECT settled_at IS NOT NULL FROM predictions WHERE id = $1`, id).Scan(&settled)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: prediction %s", models.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check prediction: %w", err)
	}
	if settled {
		return fmt.Errorf("%w: %s", models.ErrAlreadySettled, id)
	}
	return fmt.Errorf("failed to settle prediction %s: no rows updated", id)
}

// ListAll returns every stored prediction, oldest first, for tracker restore
func (r *PostgresPredictionRepository) ListAll(ctx context.Context) ([]*models.PredictionRecord, error) {
	query := `
		SELECT id, sport, home_team, away_team, predicted_winner, prediction, game_date,
		       actual_winner, correct, settled_at
		FROM predictions
		ORDER BY created_at
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var records []*models.PredictionRecord
	for rows.Next() {
		var (
			record  models.PredictionRecord
			sport   string
			payload []byte
		)
		err := rows.Scan(
			&record.ID, &sport, &record.HomeTeam, &record.AwayTeam, &record.PredictedWinner, &payload,
			&record.GameDate, &record.ActualWinner, &record.Correct, &record.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if err := json.Unmarshal(payload, &record.Prediction); err != nil {
			return nil, fmt.Errorf("failed to decode prediction %s: %w", record.ID, err)
		}
		record.Sport = models.Sport(sport)
		records = append(records, &record)
	}

	return records, rows.Err()
}

// storedPrediction drops per-family details, which only matter at inference time
// and cannot be decoded back into their interface type
func storedPrediction(p models.EnsemblePrediction) models.EnsemblePrediction {
	outputs := make(map[string]models.ModelOutput, len(p.PerModelOutputs))
	for name, out := range p.PerModelOutputs {
		out.Detail = nil
		outputs[name] = out
	}
	p.PerModelOutputs = outputs
	return p
}
