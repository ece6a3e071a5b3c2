package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches []LogBatch
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.(LogBatch))
	return nil
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug").With(String("component", "test"))
	l.Info("analysis done", Ticker("AAPL"), Int("articles", 3), Float64("mean", 0.25), Error(errors.New("boom")))

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if got["ticker"] != "AAPL" || got["component"] != "test" || got["message"] != "analysis done" {
		t.Fatalf("unexpected fields %v", got)
	}
	if got["articles"].(float64) != 3 || got["mean"].(float64) != 0.25 || got["error"] != "boom" {
		t.Fatalf("unexpected values %v", got)
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for bad level")
	}
	if _, err := New(&Config{Level: "info", Output: "file"}); err == nil {
		t.Fatalf("expected error for file output without path")
	}
}

func TestCollectorAggregatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{
		Service:        "newsvol",
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "newsvol.logs",
		Publisher:      pub,
	})
	for i := 0; i < 3; i++ {
		l.Error("fetch failed", Ticker("AAPL"))
	}
	l.Warn("slow response", Ticker("MSFT"))
	l.Info("not collected")
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || pub.topics[0] != "newsvol.logs" {
		t.Fatalf("expected one batch on newsvol.logs, got %d", len(pub.batches))
	}
	entries := pub.batches[0].Entries
	if len(entries) != 2 {
		t.Fatalf("expected 2 unique entries, got %d", len(entries))
	}
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Message] = e.Count
	}
	if counts["fetch failed"] != 3 || counts["slow response"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if pub.batches[0].Service != "newsvol" {
		t.Fatalf("service not set")
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "t", Publisher: pub})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || len(pub.batches[0].Entries) != 2 {
		t.Fatalf("expected a single batch of 2 entries, got %+v", pub.batches)
	}
}
