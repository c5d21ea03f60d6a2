package learning

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/fantasy-edge/internal/config"
	"github.com/yourusername/fantasy-edge/internal/logger"
	"github.com/yourusername/fantasy-edge/internal/metrics"
	"github.com/yourusername/fantasy-edge/internal/models"
)

// PredictionStore persists prediction records. Settle is the single mutation a
// record ever receives.
type PredictionStore interface {
	Create(ctx context.Context, record *models.PredictionRecord) error
	Settle(ctx context.Context, id uuid.UUID, actualWinner string, correct bool, settledAt time.Time) error
}

// RetrainSignal is raised by a sweep for a bucket that needs retraining
type RetrainSignal struct {
	Key        models.BucketKey
	Correct    int64
	Total      int64
	Accuracy   float64
	Generation int
}

type trackedRecord struct {
	mu     sync.Mutex
	record *models.PredictionRecord
}

// Tracker records predictions, reconciles outcomes and evaluates the retrain
// condition. Only Tick moves buckets through the evaluation states, so tests and
// the scheduler drive it the same way.
type Tracker struct {
	cfg    config.LearningConfig
	store  PredictionStore
	logger *logger.AuditLogger
	now    func() time.Time

	// rebuild is held exclusively by Recompute and shared by everything that counts
	rebuild sync.RWMutex

	mu      sync.RWMutex
	records map[uuid.UUID]*trackedRecord
	buckets map[models.BucketKey]*bucket
}

// NewTracker creates a tracker. store may be nil for an in-memory tracker.
func NewTracker(cfg config.LearningConfig, store PredictionStore, log *logrus.Logger) *Tracker {
	return &Tracker{
		cfg:     cfg,
		store:   store,
		logger:  logger.NewAuditLogger(log),
		now:     time.Now,
		records: make(map[uuid.UUID]*trackedRecord),
		buckets: make(map[models.BucketKey]*bucket),
	}
}

// TierFor maps a confidence value to its tier
func (t *Tracker) TierFor(confidence float64) models.ConfidenceTier {
	switch {
	case confidence >= t.cfg.HighTierConfidence:
		return models.TierHigh
	case confidence >= t.cfg.MediumTierConfidence:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// Record registers a new unsettled prediction and persists it
func (t *Tracker) Record(ctx context.Context, record *models.PredictionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.IsSettled() {
		return fmt.Errorf("%w: %s", models.ErrAlreadySettled, record.ID)
	}

	t.mu.Lock()
	if _, exists := t.records[record.ID]; exists {
		t.mu.Unlock()
		return fmt.Errorf("%w: prediction %s", models.ErrDuplicateKey, record.ID)
	}
	tracked := &trackedRecord{record: record}
	t.records[record.ID] = tracked
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Create(ctx, record); err != nil {
			t.mu.Lock()
			delete(t.records, record.ID)
			t.mu.Unlock()
			return fmt.Errorf("failed to persist prediction: %w", err)
		}
	}
	return nil
}

// UpdateWithResult attaches the actual winner to a prediction and updates every
// bucket it belongs to. A second call for the same id fails with ErrAlreadySettled
// and leaves the counters untouched.
func (t *Tracker) UpdateWithResult(ctx context.Context, id uuid.UUID, actualWinner string) (*models.PredictionRecord, error) {
	t.rebuild.RLock()
	defer t.rebuild.RUnlock()

	t.mu.RLock()
	tracked, ok := t.records[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: prediction %s", models.ErrNotFound, id)
	}

	tracked.mu.Lock()
	defer tracked.mu.Unlock()

	record := tracked.record
	if record.IsSettled() {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadySettled, id)
	}
	if actualWinner != record.HomeTeam && actualWinner != record.AwayTeam {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidOutcome, actualWinner)
	}

	correct := actualWinner == record.PredictedWinner
	settledAt := t.now().UTC()

	if t.store != nil {
		if err := t.store.Settle(ctx, id, actualWinner, correct, settledAt); err != nil {
			return nil, fmt.Errorf("failed to persist settlement: %w", err)
		}
	}

	winner := actualWinner
	record.ActualWinner = &winner
	record.Correct = &correct
	record.SettledAt = &settledAt

	t.apply(record)

	metrics.RecordSettlement(string(record.Sport), correct)
	t.logger.LogPredictionSettled(id.String(), record.Prediction.GameID, actualWinner, correct)

	settled := *record
	return &settled, nil
}

// apply counts a settled record into its buckets
func (t *Tracker) apply(record *models.PredictionRecord) {
	correct := *record.Correct
	t.bucket(models.BucketKey{Scope: models.ScopeOverall}).record(correct)
	t.bucket(models.BucketKey{Scope: models.ScopeSport, Sport: record.Sport}).record(correct)
	t.bucket(models.BucketKey{Scope: models.ScopeTier, Tier: t.TierFor(record.Prediction.Confidence)}).record(correct)

	for name, out := range record.Prediction.PerModelOutputs {
		modelCorrect, ok := record.ModelPickedCorrectly(name)
		if !ok {
			continue
		}
		t.bucket(models.BucketKey{Scope: models.ScopeModel, Model: name}).record(modelCorrect)
		t.bucket(models.BucketKey{
			Scope: models.ScopeModelSportTier,
			Model: name,
			Sport: record.Sport,
			Tier:  t.TierFor(out.Confidence),
		}).record(modelCorrect)
	}
}

func (t *Tracker) bucket(key models.BucketKey) *bucket {
	t.mu.RLock()
	b, ok := t.buckets[key]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok = t.buckets[key]; ok {
		return b
	}
	b = newBucket(key)
	t.buckets[key] = b
	return b
}

// Tick evaluates every collecting model/sport/tier bucket and returns the ones that
// crossed into RetrainTriggered. A bucket is flagged when its sample size reaches the
// minimum and its accuracy is below the retrain threshold.
func (t *Tracker) Tick() []RetrainSignal {
	var signals []RetrainSignal
	for _, b := range t.bucketList() {
		correct, total := b.counts()
		acc := accuracy(correct, total)
		metrics.UpdateBucket(b.key.String(), acc, total)

		if b.key.Scope != models.ScopeModelSportTier {
			continue
		}

		b.mu.Lock()
		if b.state != StateCollecting {
			b.mu.Unlock()
			continue
		}
		b.state = StateEvaluating
		if total >= t.cfg.MinimumSampleSize && acc < t.cfg.RetrainThreshold {
			b.state = StateRetrainTriggered
			signals = append(signals, RetrainSignal{
				Key:        b.key,
				Correct:    correct,
				Total:      total,
				Accuracy:   acc,
				Generation: b.generation,
			})
		} else {
			b.state = StateCollecting
		}
		b.mu.Unlock()
	}

	for _, s := range signals {
		metrics.RecordRetrainTrigger(s.Key.Model)
		t.logger.LogRetrainTriggered(s.Key.String(), s.Accuracy, s.Total)
	}
	return signals
}

// MarkRetraining records that a triggered bucket has been handed to the trainer
func (t *Tracker) MarkRetraining(key models.BucketKey) error {
	return t.transition(key, func(b *bucket) error {
		if b.state != StateRetrainTriggered {
			return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, key, b.state)
		}
		b.state = StateRetraining
		return nil
	})
}

// CompleteRetraining returns a bucket to Collecting with its counters reset. No
// other bucket is affected.
func (t *Tracker) CompleteRetraining(key models.BucketKey) error {
	return t.transition(key, func(b *bucket) error {
		if b.state != StateRetraining && b.state != StateRetrainTriggered {
			return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, key, b.state)
		}
		b.reset()
		b.generation++
		b.state = StateCollecting
		return nil
	})
}

// FailRetraining returns a bucket to Collecting with its history intact, so the
// next sweep re-raises the signal if accuracy is still low
func (t *Tracker) FailRetraining(key models.BucketKey) error {
	return t.transition(key, func(b *bucket) error {
		if b.state != StateRetraining && b.state != StateRetrainTriggered {
			return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, key, b.state)
		}
		b.state = StateCollecting
		return nil
	})
}

func (t *Tracker) transition(key models.BucketKey, fn func(b *bucket) error) error {
	t.mu.RLock()
	b, ok := t.buckets[key]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBucket, key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b)
}

// Restore loads persisted records, counting the settled ones. Records already
// tracked are skipped.
func (t *Tracker) Restore(records []*models.PredictionRecord) int {
	t.rebuild.RLock()
	defer t.rebuild.RUnlock()

	restored := 0
	for _, record := range records {
		t.mu.Lock()
		if _, exists := t.records[record.ID]; exists || record.ID == uuid.Nil {
			t.mu.Unlock()
			continue
		}
		t.records[record.ID] = &trackedRecord{record: record}
		t.mu.Unlock()

		if record.IsSettled() {
			t.apply(record)
		}
		restored++
	}
	return restored
}

// Recompute discards every bucket and rebuilds the counters from all retained
// settled records. Retrain resets and generations are discarded with them.
func (t *Tracker) Recompute() {
	t.rebuild.Lock()
	defer t.rebuild.Unlock()

	t.mu.Lock()
	t.buckets = make(map[models.BucketKey]*bucket)
	tracked := make([]*trackedRecord, 0, len(t.records))
	for _, r := range t.records {
		tracked = append(tracked, r)
	}
	t.mu.Unlock()

	for _, r := range tracked {
		if r.record.IsSettled() {
			t.apply(r.record)
		}
	}
}

// Bucket returns a snapshot of one bucket
func (t *Tracker) Bucket(key models.BucketKey) (models.AccuracyBucket, bool) {
	t.mu.RLock()
	b, ok := t.buckets[key]
	t.mu.RUnlock()
	if !ok {
		return models.AccuracyBucket{}, false
	}
	return b.snapshot(), true
}

// Snapshot returns every bucket ordered by key
func (t *Tracker) Snapshot() []models.AccuracyBucket {
	buckets := t.bucketList()
	out := make([]models.AccuracyBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.snapshot())
	}
	return out
}

// Get returns a copy of a tracked record
func (t *Tracker) Get(id uuid.UUID) (*models.PredictionRecord, error) {
	t.mu.RLock()
	tracked, ok := t.records[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: prediction %s", models.ErrNotFound, id)
	}

	tracked.mu.Lock()
	defer tracked.mu.Unlock()
	record := *tracked.record
	return &record, nil
}

func (t *Tracker) bucketList() []*bucket {
	t.mu.RLock()
	out := make([]*bucket, 0, len(t.buckets))
	for _, b := range t.buckets {
		out = append(out, b)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].key.Scope != out[j].key.Scope {
			return out[i].key.Scope < out[j].key.Scope
		}
		return out[i].key.String() < out[j].key.String()
	})
	return out
}
