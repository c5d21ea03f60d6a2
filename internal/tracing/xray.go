// Package tracing provides AWS X-Ray distributed tracing integration.
package tracing

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/aws/aws-xray-sdk-go/strategy/sampling"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/aws/aws-xray-sdk-go/xraylog"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/fantasy-edge/internal/config"
)

var enabled atomic.Bool

// Logger adapter for X-Ray SDK.
type xrayLoggerAdapter struct {
	logger *logrus.Logger
}

func (l *xrayLoggerAdapter) Log(level xraylog.LogLevel, msg fmt.Stringer) {
	switch level {
	case xraylog.LogLevelDebug:
		l.logger.Debug(msg.String())
	case xraylog.LogLevelInfo:
		l.logger.Info(msg.String())
	case xraylog.LogLevelWarn:
		l.logger.Warn(msg.String())
	case xraylog.LogLevelError:
		l.logger.Error(msg.String())
	}
}

// samplingRules renders a single default rule: one traced request per second
// plus the given fraction of the rest.
func samplingRules(rate float64) []byte {
	return []byte(fmt.Sprintf(`{"version": 2, "default": {"fixed_target": 1, "rate": %g}, "rules": []}`, rate))
}

// Initialize initializes AWS X-Ray with the given configuration. Tracing stays
// off, and every helper in this package is a pass-through, unless cfg.Enabled.
func Initialize(cfg config.TracingConfig, logger *logrus.Logger) error {
	if !cfg.Enabled {
		enabled.Store(false)
		return nil
	}

	strategy, err := sampling.NewLocalizedStrategyFromJSONBytes(samplingRules(cfg.SamplingRate))
	if err != nil {
		return fmt.Errorf("invalid sampling rate %v: %w", cfg.SamplingRate, err)
	}

	xray.SetLogger(&xrayLoggerAdapter{logger: logger})

	if err := xray.Configure(xray.Config{
		DaemonAddr:       cfg.DaemonAddr,
		SamplingStrategy: strategy,
	}); err != nil {
		return fmt.Errorf("failed to configure x-ray: %w", err)
	}
	enabled.Store(true)

	logger.WithFields(logrus.Fields{
		"daemon_addr":   cfg.DaemonAddr,
		"sampling_rate": cfg.SamplingRate,
	}).Info("AWS X-Ray initialized")

	return nil
}

// Enabled reports whether segments are being recorded
func Enabled() bool {
	return enabled.Load()
}

// Middleware opens a segment named serviceName for every request
func Middleware(serviceName string, next http.Handler) http.Handler {
	if !Enabled() {
		return next
	}
	return xray.Handler(xray.NewFixedSegmentNamer(serviceName), next)
}

// Capture runs fn inside a subsegment of the segment carried by ctx
func Capture(ctx context.Context, name string, fn func(context.Context) error) error {
	if !Enabled() || xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}
	return xray.Capture(ctx, name, fn)
}

// AddAnnotation adds an indexed annotation to the current segment.
func AddAnnotation(ctx context.Context, key string, value interface{}) {
	if !Enabled() {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddAnnotation(key, value)
	}
}
