// Package repository persists predictions, risk profiles and settled bets in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/fantasy-edge/internal/database"
)

// uniqueViolation is the PostgreSQL error code for a duplicate key
const uniqueViolation = "23505"

// Connector hands out the connection a query should run on
type Connector interface {
	Conn(ctx context.Context) database.DBTX
}

// Repositories holds all repository implementations
type Repositories struct {
	Prediction  *PostgresPredictionRepository
	RiskProfile *PostgresRiskProfileRepository
	BetResult   *PostgresBetResultRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Prediction:  NewPostgresPredictionRepository(db),
		RiskProfile: NewPostgresRiskProfileRepository(db),
		BetResult:   NewPostgresBetResultRepository(db),
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
