package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/fantasy-edge/internal/config"
	"github.com/yourusername/fantasy-edge/internal/metrics"
)

// Training job statuses reported by the training service
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// RetrainRequest asks the training service to retrain a model
type RetrainRequest struct {
	Model    string  `json:"model"`
	Sport    string  `json:"sport"`
	Tier     string  `json:"tier"`
	Accuracy float64 `json:"accuracy"`
	Samples  int64   `json:"samples"`
	Reason   string  `json:"reason"`
}

// TrainingJob is the training service's view of a retrain job
type TrainingJob struct {
	JobID           string     `json:"job_id"`
	Status          string     `json:"status"`
	Model           string     `json:"model"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ArtifactVersion string     `json:"artifact_version,omitempty"`
	Message         string     `json:"message,omitempty"`
}

// Done reports whether the job reached a terminal status
func (j *TrainingJob) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// TrainingClient submits retrain jobs to the external training service
type TrainingClient struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	baseURL string
	logger  *logrus.Entry
}

// NewTrainingClient creates a rate-limited, retrying client for the training service
func NewTrainingClient(cfg config.TrainingConfig, log *logrus.Logger) *TrainingClient {
	entry := log.WithField("component", "training_client")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	retryClient.RetryMax = cfg.RetryAttempts
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.CheckRetry = trainingRetryPolicy
	retryClient.Logger = leveledLogger{entry}

	return &TrainingClient{
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), 1),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		logger:  entry,
	}
}

// SubmitRetrain posts a retrain request and returns the queued job
func (c *TrainingClient) SubmitRetrain(ctx context.Context, reqBody RetrainRequest) (*TrainingJob, error) {
	start := time.Now()

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var job TrainingJob
	if err := c.do(ctx, http.MethodPost, "/api/v1/models/retrain", jsonData, &job); err != nil {
		metrics.RecordTrainingJob(reqBody.Model, "error")
		return nil, err
	}
	if job.Model == "" {
		job.Model = reqBody.Model
	}

	c.logger.WithFields(logrus.Fields{
		"job_id":   job.JobID,
		"model":    job.Model,
		"sport":    reqBody.Sport,
		"tier":     reqBody.Tier,
		"duration": time.Since(start),
	}).Info("Retrain job submitted")

	metrics.RecordTrainingJob(job.Model, "submitted")
	return &job, nil
}

// JobStatus retrieves the current status of a retrain job
func (c *TrainingClient) JobStatus(ctx context.Context, jobID string) (*TrainingJob, error) {
	var job TrainingJob
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/models/train/%s/status", jobID), nil, &job); err != nil {
		return nil, err
	}
	if job.Done() {
		metrics.RecordTrainingJob(job.Model, job.Status)
	}
	return &job, nil
}

// HealthCheck verifies the training service is reachable
func (c *TrainingClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Close closes idle connections
func (c *TrainingClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *TrainingClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTrainingServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrTrainingServiceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("training request failed with status %d: %s", resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// trainingRetryPolicy retries network errors, 429 and 5xx
func trainingRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return true, nil
	}
	return false, nil
}

// leveledLogger routes retryablehttp logs through logrus
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Warn(msg)
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
