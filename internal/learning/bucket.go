package learning

import (
	"sync"
	"sync/atomic"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// State is a bucket's position in the retrain lifecycle
type State string

const (
	StateCollecting       State = "collecting"
	StateEvaluating       State = "evaluating"
	StateRetrainTriggered State = "retrain_triggered"
	StateRetraining       State = "retraining"
)

// bucket holds one set of counters. Counters are atomics so the sweep can read
// them without taking the reconciliation path's locks. Writers bump total before
// correct and readers load correct before total, so a reader never sees more
// correct than total.
type bucket struct {
	key     models.BucketKey
	correct atomic.Int64
	total   atomic.Int64

	mu         sync.Mutex
	state      State
	generation int
}

func newBucket(key models.BucketKey) *bucket {
	return &bucket{key: key, state: StateCollecting}
}

func (b *bucket) record(correct bool) {
	b.total.Add(1)
	if correct {
		b.correct.Add(1)
	}
}

func (b *bucket) counts() (correct, total int64) {
	correct = b.correct.Load()
	total = b.total.Load()
	return correct, total
}

func (b *bucket) reset() {
	b.total.Store(0)
	b.correct.Store(0)
}

func (b *bucket) snapshot() models.AccuracyBucket {
	correct, total := b.counts()

	b.mu.Lock()
	state, generation := b.state, b.generation
	b.mu.Unlock()

	return models.AccuracyBucket{
		Key:        b.key,
		Correct:    correct,
		Total:      total,
		Accuracy:   accuracy(correct, total),
		State:      string(state),
		Generation: generation,
	}
}

func accuracy(correct, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
