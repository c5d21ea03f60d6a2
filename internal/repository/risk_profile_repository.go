package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// PostgresRiskProfileRepository stores users' risk profiles
type PostgresRiskProfileRepository struct {
	db       Connector
	validate *validator.Validate
}

// NewPostgresRiskProfileRepository creates a new risk profile repository
func NewPostgresRiskProfileRepository(db Connector) *PostgresRiskProfileRepository {
	return &PostgresRiskProfileRepository{db: db, validate: validator.New()}
}

// GetByUserID retrieves a profile. Unknown users yield models.ErrProfileMissing.
func (r *PostgresRiskProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.RiskProfile, error) {
	query := `
		SELECT user_id, bankroll, starting_bankroll, max_bet_percent, max_daily_loss_percent,
		       max_weekly_loss_percent, stop_loss_enabled, kelly_multiplier, updated_at
		FROM risk_profiles WHERE user_id = $1
	`

	p := &models.RiskProfile{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Bankroll, &p.StartingBankroll, &p.MaxBetPercent, &p.MaxDailyLossPercent,
		&p.MaxWeeklyLossPercent, &p.StopLossEnabled, &p.KellyMultiplier, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrProfileMissing, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk profile: %w", err)
	}

	return p, nil
}

// UpdateBankroll stores a user's current bankroll
func (r *PostgresRiskProfileRepository) UpdateBankroll(ctx context.Context, userID string, bankroll float64) error {
	query := `UPDATE risk_profiles SET bankroll = $2, updated_at = NOW() WHERE user_id = $1`

	tag, err := r.db.Conn(ctx).Exec(ctx, query, userID, bankroll)
	if err != nil {
		return fmt.Errorf("failed to update bankroll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrProfileMissing, userID)
	}
	return nil
}

// Upsert validates and stores a profile, replacing any existing one
func (r *PostgresRiskProfileRepository) Upsert(ctx context.Context, p *models.RiskProfile) error {
	if err := r.validate.Struct(p); err != nil {
		return fmt.Errorf("invalid risk profile: %w", err)
	}

	query := `
		INSERT INTO risk_profiles (user_id, bankroll, starting_bankroll, max_bet_percent, max_daily_loss_percent,
		                           max_weekly_loss_percent, stop_loss_enabled, kelly_multiplier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			bankroll = EXCLUDED.bankroll,
			starting_bankroll = EXCLUDED.starting_bankroll,
			max_bet_percent = EXCLUDED.max_bet_percent,
			max_daily_loss_percent = EXCLUDED.max_daily_loss_percent,
			max_weekly_loss_percent = EXCLUDED.max_weekly_loss_percent,
			stop_loss_enabled = EXCLUDED.stop_loss_enabled,
			kelly_multiplier = EXCLUDED.kelly_multiplier,
			updated_at = NOW()
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		p.UserID, p.Bankroll, p.StartingBankroll, p.MaxBetPercent, p.MaxDailyLossPercent,
		p.MaxWeeklyLossPercent, p.StopLossEnabled, p.KellyMultiplier,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert risk profile: %w", err)
	}
	return nil
}
