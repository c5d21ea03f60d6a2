package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/fantasy-edge/internal/learning"
	"github.com/yourusername/fantasy-edge/internal/logger"
	"github.com/yourusername/fantasy-edge/internal/ml"
	"github.com/yourusername/fantasy-edge/internal/models"
)

// RetrainTracker is the slice of the learning tracker the coordinator drives
type RetrainTracker interface {
	Tick() []learning.RetrainSignal
	MarkRetraining(key models.BucketKey) error
	CompleteRetraining(key models.BucketKey) error
	FailRetraining(key models.BucketKey) error
}

// TrainingService submits and tracks retrain jobs
type TrainingService interface {
	SubmitRetrain(ctx context.Context, req ml.RetrainRequest) (*ml.TrainingJob, error)
	JobStatus(ctx context.Context, jobID string) (*ml.TrainingJob, error)
}

// ModelReloader swaps in a freshly trained artifact
type ModelReloader interface {
	Reload(ctx context.Context, name string) error
}

// pendingJob is one in-flight training job and the buckets waiting on it
type pendingJob struct {
	jobID string
	model string
	keys  []models.BucketKey
}

// RetrainCoordinator turns retrain signals into training jobs and reloads models
// when the jobs finish. One job runs per model at a time; further buckets for the
// same model wait on it.
type RetrainCoordinator struct {
	tracker  RetrainTracker
	trainer  TrainingService
	reloader ModelReloader
	logger   *logrus.Logger
	audit    *logger.AuditLogger

	mu      sync.Mutex
	byModel map[string]*pendingJob
}

// NewRetrainCoordinator creates a new retrain coordinator
func NewRetrainCoordinator(tracker RetrainTracker, trainer TrainingService, reloader ModelReloader, log *logrus.Logger) *RetrainCoordinator {
	return &RetrainCoordinator{
		tracker:  tracker,
		trainer:  trainer,
		reloader: reloader,
		logger:   log,
		audit:    logger.NewAuditLogger(log),
		byModel:  make(map[string]*pendingJob),
	}
}

// Sweep runs one tracker tick and submits a job for each triggered bucket. It
// returns the number of buckets handed to the trainer.
func (c *RetrainCoordinator) Sweep(ctx context.Context) (int, error) {
	signals := c.tracker.Tick()
	if len(signals) == 0 {
		c.logger.Debug("Retrain sweep found no buckets below threshold")
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	handed := 0
	for _, signal := range signals {
		if err := ctx.Err(); err != nil {
			c.release(signal.Key)
			continue
		}

		if job, ok := c.byModel[signal.Key.Model]; ok {
			if err := c.tracker.MarkRetraining(signal.Key); err != nil {
				c.logger.WithError(err).WithField("bucket", signal.Key.String()).Warn("Failed to mark bucket retraining")
				continue
			}
			job.keys = append(job.keys, signal.Key)
			handed++
			continue
		}

		job, err := c.trainer.SubmitRetrain(ctx, ml.RetrainRequest{
			Model:    signal.Key.Model,
			Sport:    string(signal.Key.Sport),
			Tier:     string(signal.Key.Tier),
			Accuracy: signal.Accuracy,
			Samples:  signal.Total,
			Reason:   fmt.Sprintf("accuracy %.3f over %d predictions", signal.Accuracy, signal.Total),
		})
		if err != nil {
			c.logger.WithError(err).WithField("bucket", signal.Key.String()).Error("Failed to submit retrain job")
			c.release(signal.Key)
			continue
		}

		// the job exists upstream from here on; track it even if the bucket
		// cannot be marked so PollJobs still reloads the model
		pending := &pendingJob{jobID: job.JobID, model: signal.Key.Model}
		c.byModel[signal.Key.Model] = pending

		if err := c.tracker.MarkRetraining(signal.Key); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"bucket": signal.Key.String(),
				"job_id": job.JobID,
			}).Warn("Failed to mark bucket retraining")
			continue
		}
		pending.keys = append(pending.keys, signal.Key)
		handed++

		c.logger.WithFields(logrus.Fields{
			"job_id": job.JobID,
			"model":  signal.Key.Model,
			"bucket": signal.Key.String(),
		}).Info("Retrain job submitted")
	}

	if err := ctx.Err(); err != nil {
		return handed, err
	}
	return handed, nil
}

// release returns a triggered bucket to collecting so the next sweep retries it
func (c *RetrainCoordinator) release(key models.BucketKey) {
	if err := c.tracker.FailRetraining(key); err != nil {
		c.logger.WithError(err).WithField("bucket", key.String()).Warn("Failed to release bucket")
	}
}

// PollJobs checks every pending job and settles the finished ones. It returns the
// number of jobs that reached a terminal state.
func (c *RetrainCoordinator) PollJobs(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	finished := 0
	for _, model := range c.pendingModels() {
		if err := ctx.Err(); err != nil {
			return finished, err
		}
		pending := c.byModel[model]

		job, err := c.trainer.JobStatus(ctx, pending.jobID)
		if err != nil {
			c.logger.WithError(err).WithField("job_id", pending.jobID).Warn("Failed to poll retrain job")
			continue
		}
		if !job.Done() {
			continue
		}

		delete(c.byModel, model)
		finished++

		status := job.Status
		if status == ml.JobStatusCompleted {
			if err := c.reloader.Reload(ctx, model); err != nil {
				c.logger.WithError(err).WithField("model", model).Error("Failed to reload retrained model")
				status = "reload_failed"
			}
		}

		for _, key := range pending.keys {
			var err error
			if status == ml.JobStatusCompleted {
				err = c.tracker.CompleteRetraining(key)
			} else {
				err = c.tracker.FailRetraining(key)
			}
			if err != nil {
				c.logger.WithError(err).WithField("bucket", key.String()).Warn("Failed to close retrain transition")
			}
			c.audit.LogRetrainCompleted(key.String(), pending.jobID, status)
		}

		c.logger.WithFields(logrus.Fields{
			"job_id":           pending.jobID,
			"model":            model,
			"status":           status,
			"artifact_version": job.ArtifactVersion,
		}).Info("Retrain job finished")
	}
	return finished, nil
}

// Pending returns the models with a training job in flight
func (c *RetrainCoordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingModels()
}

func (c *RetrainCoordinator) pendingModels() []string {
	out := make([]string, 0, len(c.byModel))
	for model := range c.byModel {
		out = append(out, model)
	}
	sort.Strings(out)
	return out
}
