package usecase

import (
	"context"
	"encoding/json"

	"NewsVol/internal/domain/models"
	xhttp "NewsVol/pkg/http"
	"NewsVol/pkg/queue"
)

const AnalysisJobType = "analysis.run"

// AnalysisJob runs queued analysis requests.
type AnalysisJob struct {
	runner TickerAnalyzer
}

var _ queue.Job = (*AnalysisJob)(nil)

func NewAnalysisJob(runner TickerAnalyzer) *AnalysisJob {
	return &AnalysisJob{runner: runner}
}

func (j *AnalysisJob) Name() string { return "analysis" }

func (j *AnalysisJob) Type() string { return AnalysisJobType }

func (j *AnalysisJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.ParsePayload[models.AnalysisRequest](payload)
	if err != nil {
		return err
	}
	if err := xhttp.ValidateStruct(ctx, req); err != nil {
		return &queue.PermanentError{Err: err}
	}
	if _, err := j.runner.Run(ctx, FromRequest(*req)); err != nil {
		if IsPermanent(err) {
			return &queue.PermanentError{Err: err}
		}
		return err
	}
	return nil
}
