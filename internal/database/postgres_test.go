package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/fantasy-edge/internal/config"
)

type fakeTx struct {
	pgx.Tx
	id int
}

// TestConnPrefersTransaction tests that a transaction in ctx wins over the pool
func TestConnPrefersTransaction(t *testing.T) {
	db := &DB{}

	tx := fakeTx{id: 7}
	ctx := context.WithValue(context.Background(), txKey{}, tx)
	assert.Equal(t, tx, db.Conn(ctx))

	assert.IsType(t, (*pgxpool.Pool)(nil), db.Conn(context.Background()))
}

// TestNewDBRejectsBadConfig tests configuration errors surface before dialing
func TestNewDBRejectsBadConfig(t *testing.T) {
	_, err := NewDB(context.Background(), &config.DatabaseConfig{
		Host:               "localhost",
		Port:               5432,
		Name:               "fantasy_edge",
		User:               "fantasy",
		Password:           "secret",
		SSLMode:            "sometimes",
		MaxConnections:     4,
		MaxIdleConnections: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse database config")
}
