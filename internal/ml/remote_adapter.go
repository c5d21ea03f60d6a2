package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourusername/fantasy-edge/internal/config"
	"github.com/yourusername/fantasy-edge/internal/models"
)

// PredictMethod is the full gRPC method name served by external inference processes.
// Requests and responses are google.protobuf.Struct messages.
const PredictMethod = "/fantasyedge.inference.v1.InferenceService/Predict"

// RemoteAdapter calls a model hosted by an external inference process over gRPC
type RemoteAdapter struct {
	name       string
	family     models.ModelFamily
	featureSet models.FeatureSet
	inputSize  int
	conn       *grpc.ClientConn
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Entry
}

// NewRemoteAdapter creates the client connection lazily; no RPC is made until Predict.
// Extra dial options are appended after the defaults.
func NewRemoteAdapter(cfg config.RemoteModelConfig, log *logrus.Logger, opts ...grpc.DialOption) (*RemoteAdapter, error) {
	creds := grpc.WithTransportCredentials(insecure.NewCredentials())
	if strings.HasPrefix(cfg.Address, "https://") {
		creds = grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, ""))
	}

	dialOpts := []grpc.DialOption{
		creds,
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  1 * time.Second,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   5 * time.Second,
			},
			MinConnectTimeout: 5 * time.Second,
		}),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	dialOpts = append(dialOpts, opts...)

	target := strings.TrimPrefix(strings.TrimPrefix(cfg.Address, "https://"), "http://")
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, cfg.Name, err)
	}

	entry := log.WithFields(logrus.Fields{"component": "inference", "model": cfg.Name, "address": cfg.Address})

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	reset := time.Duration(cfg.BreakerResetSeconds) * time.Second
	if reset == 0 {
		reset = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     reset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			entry.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("Remote model breaker changed state")
		},
		IsSuccessful: breakerSuccess,
	})

	return &RemoteAdapter{
		name:       cfg.Name,
		family:     models.ModelFamily(cfg.Family),
		featureSet: models.FeatureSet(cfg.FeatureSet),
		inputSize:  cfg.InputSize,
		conn:       conn,
		breaker:    breaker,
		logger:     entry,
	}, nil
}

func (r *RemoteAdapter) Name() string                  { return r.name }
func (r *RemoteAdapter) Version() string               { return "remote" }
func (r *RemoteAdapter) Family() models.ModelFamily    { return r.family }
func (r *RemoteAdapter) FeatureSet() models.FeatureSet { return r.featureSet }
func (r *RemoteAdapter) InputSize() int                { return r.inputSize }

// Predict sends {"model", "features"} and expects {"probability", "confidence"}
func (r *RemoteAdapter) Predict(ctx context.Context, features models.FeatureVector) (*models.ModelOutput, error) {
	started := time.Now()
	if len(features) != r.inputSize {
		return nil, fmt.Errorf("%w: %s expects %d features, got %d", ErrFeatureShapeMismatch, r.name, r.inputSize, len(features))
	}

	values := make([]interface{}, len(features))
	for i, v := range features {
		values[i] = v
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"model":    r.name,
		"features": values,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFeatureShapeMismatch, r.name, err)
	}

	resp := &structpb.Struct{}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.conn.Invoke(ctx, PredictMethod, req, resp)
	})
	if err != nil {
		return nil, r.classify(err)
	}

	return r.decode(resp, started)
}

// breakerSuccess reports whether an invoke error leaves the breaker counts
// alone. Caller cancellation and shape errors say nothing about backend health;
// grpc reports cancellation as a status, not as context.Canceled.
func breakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		status.Code(err) == codes.Canceled ||
		errors.Is(err, ErrFeatureShapeMismatch)
}

func (r *RemoteAdapter) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: circuit open", ErrModelUnavailable, r.name)
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", r.name, context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%s: %w", r.name, context.Canceled)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s: %v", ErrFeatureShapeMismatch, r.name, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrModelUnavailable, r.name, err)
	}
}

func (r *RemoteAdapter) decode(resp *structpb.Struct, started time.Time) (*models.ModelOutput, error) {
	fields := resp.GetFields()
	p, okP := fields["probability"]
	c, okC := fields["confidence"]
	if !okP || !okC {
		return nil, fmt.Errorf("%w: %s: response missing probability or confidence", ErrInvalidOutput, r.name)
	}

	probability, confidence := p.GetNumberValue(), c.GetNumberValue()
	if math.IsNaN(probability) || probability < 0 || probability > 1 || math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: %s: values out of range", ErrInvalidOutput, r.name)
	}

	out := &models.ModelOutput{
		ModelName:    r.name,
		ModelVersion: "remote",
		Family:       r.family,
		Probability:  probability,
		Confidence:   confidence,
		Latency:      time.Since(started),
	}
	if v, ok := fields["version"]; ok && v.GetStringValue() != "" {
		out.ModelVersion = v.GetStringValue()
	}
	return out, nil
}

// Close releases the client connection
func (r *RemoteAdapter) Close() error {
	return r.conn.Close()
}
