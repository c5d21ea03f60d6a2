package database

import (
	"context"
	"fmt"

	"github.com/yourusername/fantasy-edge/internal/config"
)

// Schema creates the tables the prediction and risk stores use
const Schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id               UUID PRIMARY KEY,
	game_id          TEXT NOT NULL,
	sport            TEXT NOT NULL,
	home_team        TEXT NOT NULL,
	away_team        TEXT NOT NULL,
	predicted_winner TEXT NOT NULL,
	probability      DOUBLE PRECISION NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	prediction       JSONB NOT NULL,
	game_date        TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	actual_winner    TEXT,
	correct          BOOLEAN,
	settled_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_predictions_unsettled ON predictions (game_date) WHERE settled_at IS NULL;

CREATE TABLE IF NOT EXISTS risk_profiles (
	user_id                 TEXT PRIMARY KEY,
	bankroll                NUMERIC(14, 2) NOT NULL CHECK (bankroll >= 0),
	starting_bankroll       NUMERIC(14, 2) NOT NULL CHECK (starting_bankroll > 0),
	max_bet_percent         DOUBLE PRECISION NOT NULL,
	max_daily_loss_percent  DOUBLE PRECISION NOT NULL,
	max_weekly_loss_percent DOUBLE PRECISION NOT NULL,
	stop_loss_enabled       BOOLEAN NOT NULL DEFAULT TRUE,
	kelly_multiplier        DOUBLE PRECISION NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bet_results (
	bet_id     TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	game_id    TEXT NOT NULL DEFAULT '',
	pattern    TEXT NOT NULL DEFAULT '',
	stake      DOUBLE PRECISION NOT NULL CHECK (stake > 0),
	odds       TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	settled_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bet_results_user ON bet_results (user_id, settled_at);
`

// Initialize creates a connection pool and applies the schema
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	err = db.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := db.Conn(ctx).Exec(ctx, Schema)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
