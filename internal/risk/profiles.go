package risk

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// ProfileStore supplies risk profiles and persists settled bankrolls.
// GetByUserID returns models.ErrProfileMissing for unknown users.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.RiskProfile, error)
	UpdateBankroll(ctx context.Context, userID string, bankroll float64) error
}

// MemoryProfileStore is a ProfileStore backed by a map
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]models.RiskProfile
}

// NewMemoryProfileStore creates a store seeded with profiles
func NewMemoryProfileStore(profiles ...models.RiskProfile) *MemoryProfileStore {
	s := &MemoryProfileStore{profiles: make(map[string]models.RiskProfile, len(profiles))}
	for _, p := range profiles {
		s.profiles[p.UserID] = p
	}
	return s
}

// GetByUserID returns a copy of the user's profile
func (s *MemoryProfileStore) GetByUserID(_ context.Context, userID string) (*models.RiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrProfileMissing, userID)
	}
	return &p, nil
}

// UpdateBankroll stores a new bankroll for an existing profile
func (s *MemoryProfileStore) UpdateBankroll(_ context.Context, userID string, bankroll float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrProfileMissing, userID)
	}
	p.Bankroll = bankroll
	s.profiles[userID] = p
	return nil
}

// ResultStore persists settled bets. Create returns models.ErrDuplicateKey for a
// bet that is already stored.
type ResultStore interface {
	Create(ctx context.Context, result *models.BetResult) error
	ListAll(ctx context.Context) ([]models.BetResult, error)
}

// MemoryResultStore is a ResultStore backed by a slice
type MemoryResultStore struct {
	mu      sync.RWMutex
	results []models.BetResult
	ids     map[string]bool
}

// NewMemoryResultStore creates an empty result store
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{ids: make(map[string]bool)}
}

// Create appends a result unless its bet is already stored
func (s *MemoryResultStore) Create(_ context.Context, result *models.BetResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[result.BetID] {
		return fmt.Errorf("%w: bet %s", models.ErrDuplicateKey, result.BetID)
	}
	s.ids[result.BetID] = true
	s.results = append(s.results, *result)
	return nil
}

// ListAll returns a copy of every stored result in insertion order
func (s *MemoryResultStore) ListAll(context.Context) ([]models.BetResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.BetResult, len(s.results))
	copy(out, s.results)
	return out, nil
}
