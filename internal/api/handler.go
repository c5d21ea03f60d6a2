// Package api exposes the prediction and risk contracts as JSON over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/fantasy-edge/internal/ml"
	"github.com/yourusername/fantasy-edge/internal/models"
	"github.com/yourusername/fantasy-edge/internal/risk"
	"github.com/yourusername/fantasy-edge/internal/service"
)

// RiskEvaluator is the risk manager surface served over HTTP
type RiskEvaluator interface {
	EvaluateBet(ctx context.Context, req risk.EvaluationRequest) *models.BetRecommendation
	GetPortfolioAnalysis(ctx context.Context, userID string) *models.PortfolioAnalysis
	RecordBetPlaced(ctx context.Context, userID, betID string, stake float64) error
	RecordBetResult(ctx context.Context, result models.BetResult) ([]models.RiskAlert, error)
	ConsumeAlerts(userID string) []models.RiskAlert
}

// GamePredictor creates and settles tracked predictions
type GamePredictor interface {
	PredictGame(ctx context.Context, game models.GameContext) (*models.PredictionRecord, error)
	SettleGame(ctx context.Context, id uuid.UUID, actualWinner string) (*models.PredictionRecord, error)
}

// AccuracyReporter lists accuracy buckets
type AccuracyReporter interface {
	Snapshot() []models.AccuracyBucket
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// BetPlacement is the body of POST /v1/risk/bets
type BetPlacement struct {
	UserID string  `json:"user_id" validate:"required"`
	BetID  string  `json:"bet_id" validate:"required"`
	Stake  float64 `json:"stake" validate:"gt=0"`
}

// SettlementRequest is the body of POST /v1/predictions/{id}/result
type SettlementRequest struct {
	ActualWinner string `json:"actual_winner" validate:"required"`
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	risk      RiskEvaluator
	predictor GamePredictor
	accuracy  AccuracyReporter
	validate  *validator.Validate
	logger    *logrus.Logger
	timeout   time.Duration
}

// NewHandler creates a new handler with dependencies
func NewHandler(riskEvaluator RiskEvaluator, predictor GamePredictor, accuracy AccuracyReporter, logger *logrus.Logger) *Handler {
	return &Handler{
		risk:      riskEvaluator,
		predictor: predictor,
		accuracy:  accuracy,
		validate:  validator.New(),
		logger:    logger,
		timeout:   10 * time.Second,
	}
}

// Router builds the chi router. allowedOrigins configures CORS for the web layer.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/risk", func(r chi.Router) {
			r.Post("/evaluate", h.EvaluateBet)
			r.Get("/portfolio/{userID}", h.GetPortfolio)
			r.Post("/bets", h.PlaceBet)
			r.Post("/results", h.RecordResult)
			r.Get("/alerts/{userID}", h.ConsumeAlerts)
		})
		r.Post("/predictions", h.CreatePrediction)
		r.Post("/predictions/{id}/result", h.SettlePrediction)
		r.Get("/learning/accuracy", h.GetAccuracy)
	})

	return r
}

// EvaluateBet returns a bet recommendation. Any well-formed request yields one.
func (h *Handler) EvaluateBet(w http.ResponseWriter, r *http.Request) {
	var req risk.EvaluationRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondJSON(w, http.StatusOK, h.risk.EvaluateBet(ctx, req))
}

// GetPortfolio returns the user's portfolio analysis
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondJSON(w, http.StatusOK, h.risk.GetPortfolioAnalysis(ctx, chi.URLParam(r, "userID")))
}

// PlaceBet records an accepted bet against the user's open exposure
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req BetPlacement
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.risk.RecordBetPlaced(ctx, req.UserID, req.BetID, req.Stake); err != nil {
		h.respondError(w, statusFor(err), "failed to record bet", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, req)
}

// RecordResult settles a bet and returns the alerts it raised
func (h *Handler) RecordResult(w http.ResponseWriter, r *http.Request) {
	var req models.BetResult
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	alerts, err := h.risk.RecordBetResult(ctx, req)
	if err != nil {
		h.respondError(w, statusFor(err), "failed to record bet result", err)
		return
	}
	if alerts == nil {
		alerts = []models.RiskAlert{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"bet_id": req.BetID,
		"alerts": alerts,
	})
}

// ConsumeAlerts drains the user's pending alerts
func (h *Handler) ConsumeAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.risk.ConsumeAlerts(chi.URLParam(r, "userID"))
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// CreatePrediction runs the ensemble for a game context
func (h *Handler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var game models.GameContext
	if !h.decode(w, r, &game) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	record, err := h.predictor.PredictGame(ctx, game)
	if err != nil {
		h.respondError(w, statusFor(err), "failed to predict game", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, record)
}

// SettlePrediction attaches the actual winner to a prediction
func (h *Handler) SettlePrediction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid prediction id", nil)
		return
	}

	var req SettlementRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	record, err := h.predictor.SettleGame(ctx, id, req.ActualWinner)
	if err != nil {
		h.respondError(w, statusFor(err), "failed to settle prediction", err)
		return
	}
	h.respondJSON(w, http.StatusOK, record)
}

// GetAccuracy lists every accuracy bucket
func (h *Handler) GetAccuracy(w http.ResponseWriter, r *http.Request) {
	buckets := h.accuracy.Snapshot()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"buckets": buckets,
		"count":   len(buckets),
	})
}

// decode reads and validates a JSON body, answering 400 on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "request failed validation", err)
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadySettled), errors.Is(err, models.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidOutcome), errors.Is(err, service.ErrInvalidGame),
		errors.Is(err, risk.ErrInvalidOddsFormat), errors.Is(err, risk.ErrInvalidStake):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrNoModelQuorum), errors.Is(err, ml.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		entry := h.logger.WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error(message)
		} else {
			entry.Debug(message)
		}
		message = message + ": " + err.Error()
	}

	h.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
