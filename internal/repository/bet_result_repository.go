package repository

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// PostgresBetResultRepository stores settled bets so the risk ledgers can be
// rebuilt at startup
type PostgresBetResultRepository struct {
	db       Connector
	validate *validator.Validate
}

// NewPostgresBetResultRepository creates a new bet result repository
func NewPostgresBetResultRepository(db Connector) *PostgresBetResultRepository {
	return &PostgresBetResultRepository{db: db, validate: validator.New()}
}

// Create validates and inserts a settled bet. A bet is stored once.
func (r *PostgresBetResultRepository) Create(ctx context.Context, result *models.BetResult) error {
	if err := r.validate.Struct(result); err != nil {
		return fmt.Errorf("invalid bet result: %w", err)
	}

	query := `
		INSERT INTO bet_results (bet_id, user_id, game_id, pattern, stake, odds, outcome, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		result.BetID, result.UserID, result.GameID, result.Pattern,
		result.Stake, result.Odds, string(result.Outcome), result.SettledAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: bet %s", models.ErrDuplicateKey, result.BetID)
	}
	if err != nil {
		return fmt.Errorf("failed to create bet result: %w", err)
	}

	return nil
}

// ListAll returns every settled bet, oldest first
func (r *PostgresBetResultRepository) ListAll(ctx context.Context) ([]models.BetResult, error) {
	query := `
		SELECT bet_id, user_id, game_id, pattern, stake, odds, outcome, settled_at
		FROM bet_results
		ORDER BY settled_at, bet_id
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bet results: %w", err)
	}
	defer rows.Close()

	var results []models.BetResult
	for rows.Next() {
		var (
			result  models.BetResult
			outcome string
		)
		err := rows.Scan(
			&result.BetID, &result.UserID, &result.GameID, &result.Pattern,
			&result.Stake, &result.Odds, &outcome, &result.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet result: %w", err)
		}
		result.Outcome = models.BetOutcome(outcome)
		results = append(results, result)
	}

	return results, rows.Err()
}
