package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/fantasy-edge/internal/database"
	"github.com/yourusername/fantasy-edge/internal/models"
)

const skipIntegrationMsg = "Integration test - requires database setup"

// fakeConn records statements and replays canned results
type fakeConn struct {
	execTags []pgconn.CommandTag
	execErr  error
	rows     [][]any
	rowErr   error
	queryErr error
	execs    []string
	args     [][]any
}

func (f *fakeConn) Conn(context.Context) database.DBTX { return f }

func (f *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	tag := f.execTags[0]
	f.execTags = f.execTags[1:]
	return tag, nil
}

func (f *fakeConn) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

func (f *fakeConn) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if f.rowErr != nil {
		return fakeRow{err: f.rowErr}
	}
	return fakeRow{values: f.rows[0]}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	pgx.Rows
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.rows[r.idx])
}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() {}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

func testRecord() *models.PredictionRecord {
	return &models.PredictionRecord{
		ID: uuid.New(),
		Prediction: models.EnsemblePrediction{
			GameID: "g1",
			Sport:  models.SportNBA,
			PerModelOutputs: map[string]models.ModelOutput{
				"nn": {
					ModelName:   "nn",
					Family:      models.FamilyNeuralNetwork,
					Probability: 0.66,
					Confidence:  0.32,
					Detail:      models.NeuralNetDetail{Logit: 0.66},
				},
			},
			Probability: 0.66,
			Confidence:  0.32,
		},
		HomeTeam:        "BOS",
		AwayTeam:        "NYK",
		PredictedWinner: "BOS",
		Sport:           models.SportNBA,
		GameDate:        time.Date(2026, 11, 2, 0, 30, 0, 0, time.UTC),
	}
}

// TestPredictionCreate tests the insert and the stored payload
func TestPredictionCreate(t *testing.T) {
	conn := &fakeConn{execTags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 1")}}
	repo := NewPostgresPredictionRepository(conn)
	record := testRecord()

	require.NoError(t, repo.Create(context.Background(), record))
	require.Len(t, conn.args, 1)

	args := conn.args[0]
	assert.Equal(t, record.ID, args[0])
	assert.Equal(t, "nba", args[2])

	var stored models.EnsemblePrediction
	require.NoError(t, json.Unmarshal(args[8].([]byte), &stored))
	assert.InDelta(t, 0.66, stored.PerModelOutputs["nn"].Probability, 1e-9)
	assert.Nil(t, stored.PerModelOutputs["nn"].Detail)
	assert.NotNil(t, record.Prediction.PerModelOutputs["nn"].Detail, "caller's record is untouched")
}

// TestPredictionCreate_Duplicate tests mapping of a unique violation
func TestPredictionCreate_Duplicate(t *testing.T) {
	conn := &fakeConn{execErr: &pgconn.PgError{Code: uniqueViolation}}
	repo := NewPostgresPredictionRepository(conn)

	err := repo.Create(context.Background(), testRecord())
	assert.ErrorIs(t, err, models.ErrDuplicateKey)
}

// TestPredictionSettle tests the settle-once update and its error mapping
func TestPredictionSettle(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC()

	tests := []struct {
		name    string
		conn    *fakeConn
		wantErr error
	}{
		{
			name: "settled",
			conn: &fakeConn{execTags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 1")}},
		},
		{
			name: "already settled",
			conn: &fakeConn{
				execTags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")},
				rows:     [][]any{{true}},
			},
			wantErr: models.ErrAlreadySettled,
		},
		{
			name: "unknown prediction",
			conn: &fakeConn{
				execTags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")},
				rowErr:   pgx.ErrNoRows,
			},
			wantErr: models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewPostgresPredictionRepository(tt.conn)
			err := repo.Settle(context.Background(), id, "BOS", true, now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestPredictionListAll tests decoding of stored rows
func TestPredictionListAll(t *testing.T) {
	record := testRecord()
	payload, err := json.Marshal(storedPrediction(record.Prediction))
	require.NoError(t, err)

	winner := "NYK"
	correct := false
	settledAt := time.Date(2026, 11, 2, 3, 0, 0, 0, time.UTC)

	conn := &fakeConn{rows: [][]any{
		{record.ID, "nba", "BOS", "NYK", "BOS", payload, record.GameDate, nil, nil, nil},
		{uuid.New(), "nba", "BOS", "NYK", "BOS", payload, record.GameDate, &winner, &correct, &settledAt},
	}}
	repo := NewPostgresPredictionRepository(conn)

	records, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, record.ID, records[0].ID)
	assert.Equal(t, models.SportNBA, records[0].Sport)
	assert.False(t, records[0].IsSettled())
	assert.InDelta(t, 0.66, records[0].Prediction.Probability, 1e-9)

	assert.True(t, records[1].IsSettled())
	assert.Equal(t, "NYK", *records[1].ActualWinner)
}

// TestPredictionListAll_QueryError tests that query failures are wrapped
func TestPredictionListAll_QueryError(t *testing.T) {
	repo := NewPostgresPredictionRepository(&fakeConn{queryErr: errors.New("conn closed")})

	_, err := repo.ListAll(context.Background())
	assert.ErrorContains(t, err, "conn closed")
}

// TestRiskProfileGetByUserID tests lookup and the missing-profile mapping
func TestRiskProfileGetByUserID(t *testing.T) {
	updated := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	conn := &fakeConn{rows: [][]any{{"u1", 2500.0, 2000.0, 2.0, 5.0, 10.0, true, 0.25, updated}}}
	repo := NewPostgresRiskProfileRepository(conn)

	p, err := repo.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.InDelta(t, 2500, p.Bankroll, 1e-9)
	assert.InDelta(t, 0.25, p.KellyMultiplier, 1e-9)
	assert.True(t, p.StopLossEnabled)

	repo = NewPostgresRiskProfileRepository(&fakeConn{rowErr: pgx.ErrNoRows})
	_, err = repo.GetByUserID(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrProfileMissing)
}

// TestRiskProfileUpdateBankroll tests the update and the missing-profile mapping
func TestRiskProfileUpdateBankroll(t *testing.T) {
	conn := &fakeConn{execTags: []pgconn.CommandTag{
		pgconn.NewCommandTag("UPDATE 1"),
		pgconn.NewCommandTag("UPDATE 0"),
	}}
	repo := NewPostgresRiskProfileRepository(conn)

	require.NoError(t, repo.UpdateBankroll(context.Background(), "u1", 2400))
	assert.Equal(t, []any{"u1", 2400.0}, conn.args[0])

	err := repo.UpdateBankroll(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, models.ErrProfileMissing)
}

// TestRiskProfileUpsert_Validation tests that invalid profiles never reach the database
func TestRiskProfileUpsert_Validation(t *testing.T) {
	conn := &fakeConn{execTags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 1")}}
	repo := NewPostgresRiskProfileRepository(conn)

	bad := &models.RiskProfile{UserID: "u1", Bankroll: 100, StartingBankroll: 100, MaxBetPercent: 150,
		MaxDailyLossPercent: 5, MaxWeeklyLossPercent: 10, KellyMultiplier: 0.25}
	assert.Error(t, repo.Upsert(context.Background(), bad))
	assert.Empty(t, conn.execs)

	good := *bad
	good.MaxBetPercent = 2
	require.NoError(t, repo.Upsert(context.Background(), &good))
	assert.Len(t, conn.execs, 1)
}

// TestBetResultCreate tests the insert, validation and duplicate mapping
func TestBetResultCreate(t *testing.T) {
	settledAt := time.Date(2026, 11, 2, 4, 0, 0, 0, time.UTC)
	result := &models.BetResult{BetID: "b1", UserID: "u1", Stake: 25.5, Odds: "-110",
		Outcome: models.OutcomeLoss, SettledAt: settledAt}

	conn := &fakeConn{execTags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 1")}}
	repo := NewPostgresBetResultRepository(conn)
	require.NoError(t, repo.Create(context.Background(), result))
	assert.Equal(t, []any{"b1", "u1", "", "", 25.5, "-110", "loss", settledAt}, conn.args[0])

	bad := *result
	bad.Outcome = "void"
	assert.Error(t, repo.Create(context.Background(), &bad))
	assert.Len(t, conn.execs, 1)

	repo = NewPostgresBetResultRepository(&fakeConn{execErr: &pgconn.PgError{Code: uniqueViolation}})
	assert.ErrorIs(t, repo.Create(context.Background(), result), models.ErrDuplicateKey)
}

// TestBetResultListAll tests decoding of stored settlements
func TestBetResultListAll(t *testing.T) {
	settledAt := time.Date(2026, 11, 2, 4, 0, 0, 0, time.UTC)
	conn := &fakeConn{rows: [][]any{
		{"b1", "u1", "g1", "home_dog", 25.5, "-110", "win", settledAt},
		{"b2", "u2", "", "", 10.0, "2.5", "push", settledAt.Add(time.Hour)},
	}}
	repo := NewPostgresBetResultRepository(conn)

	results, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.OutcomeWin, results[0].Outcome)
	assert.Equal(t, "home_dog", results[0].Pattern)
	assert.Equal(t, models.OutcomePush, results[1].Outcome)
	assert.Equal(t, settledAt.Add(time.Hour), results[1].SettledAt)

	_, err = NewPostgresBetResultRepository(&fakeConn{queryErr: errors.New("conn closed")}).ListAll(context.Background())
	assert.ErrorContains(t, err, "conn closed")
}

// TestPredictionRepositoryIntegration tests the repository against a live database
func TestPredictionRepositoryIntegration(t *testing.T) {
	// db, err := database.Initialize(ctx, cfg)
	// repos, err := NewRepositories(db)
	// record := testRecord()
	// require.NoError(t, repos.Prediction.Create(ctx, record))
	// require.NoError(t, repos.Prediction.Settle(ctx, record.ID, "BOS", true, time.Now()))
	// assert.ErrorIs(t, repos.Prediction.Settle(ctx, record.ID, "BOS", true, time.Now()), models.ErrAlreadySettled)
	t.Skip(skipIntegrationMsg)
}
