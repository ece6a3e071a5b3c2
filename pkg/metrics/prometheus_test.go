package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecorderRegistersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)
	r.RecordAnalysis("ok")
	r.RecordAnalysis("ok")
	r.RecordFitError("model_fit")
	r.RecordSentiment(0.4)
	r.RecordForecast("AAPL", 1.7)
	r.RecordError("news_fetch")
	r.RecordLatency("analyze", 0.2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				byName[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				byName[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	if byName["newsvol_analyses_total"] != 2 {
		t.Fatalf("analyses total %v", byName["newsvol_analyses_total"])
	}
	if byName["newsvol_forecast_variance"] != 1.7 {
		t.Fatalf("forecast variance %v", byName["newsvol_forecast_variance"])
	}
	if byName["newsvol_forecast_errors_total"] != 1 || byName["newsvol_errors_total"] != 1 {
		t.Fatalf("unexpected error counters %v", byName)
	}
}
