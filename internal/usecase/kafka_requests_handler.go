package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"NewsVol/internal/domain/models"
	xhttp "NewsVol/pkg/http"
	pkgkafka "NewsVol/pkg/kafka"
	applogger "NewsVol/pkg/logger"
)

// TickerAnalyzer runs one end-to-end analysis.
type TickerAnalyzer interface {
	Run(ctx context.Context, p TickerAnalysisParams) (*models.AnalysisReport, error)
}

var _ TickerAnalyzer = (*TickerAnalysisUseCase)(nil)

// KafkaRequestsHandler runs an analysis for every AnalysisRequest on the
// requests topic. The result itself goes out through the use case's publisher.
type KafkaRequestsHandler struct {
	topic  string
	runner TickerAnalyzer
	l      *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*KafkaRequestsHandler)(nil)

func NewKafkaRequestsHandler(topic string, runner TickerAnalyzer, l *applogger.Logger) *KafkaRequestsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaRequestsHandler{topic: topic, runner: runner, l: l}
}

func (h *KafkaRequestsHandler) Topic() string { return h.topic }

// Handle returns a non-retryable error for malformed requests and for
// failures that would repeat on retry, so they go straight to the DLQ.
func (h *KafkaRequestsHandler) Handle(ctx context.Context, b []byte) error {
	var req models.AnalysisRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return pkgkafka.NonRetryable(fmt.Errorf("decode analysis request: %w", err))
	}
	if err := xhttp.ValidateStruct(ctx, &req); err != nil {
		return pkgkafka.NonRetryable(err)
	}

	rep, err := h.runner.Run(ctx, FromRequest(req))
	if err != nil {
		if IsPermanent(err) {
			return pkgkafka.NonRetryable(err)
		}
		return err
	}
	h.l.Debug("kafka analysis request handled",
		applogger.Ticker(rep.Result.Ticker),
		applogger.Duration("duration_ms", rep.Duration),
	)
	return nil
}

// IsPermanent reports whether retrying err with the same input cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, models.ErrInvalidInput) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInsufficientData) ||
		errors.Is(err, models.ErrModelFit)
}
