package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"NewsVol/internal/domain/models"
)

func startHub(t *testing.T) (*StreamHub, string) {
	t.Helper()
	hub := NewStreamHub(nil, StreamConfig{PingInterval: time.Second})
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analysis"
}

func waitClients(t *testing.T, hub *StreamHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamHubFiltersByTicker(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?ticker=aapl", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitClients(t, hub, 1)

	hub.Broadcast(models.AnalysisEvent{Ticker: "MSFT", MeanSentiment: 0.1})
	hub.Broadcast(models.AnalysisEvent{Ticker: "AAPL", MeanSentiment: 0.3, Variances: []float64{1.2}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev models.AnalysisEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Ticker != "AAPL" || ev.MeanSentiment != 0.3 || len(ev.Variances) != 1 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestStreamHubUnfilteredClientGetsEverything(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitClients(t, hub, 1)

	for _, tk := range []string{"MSFT", "AAPL"} {
		hub.Broadcast(models.AnalysisEvent{Ticker: tk})
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"MSFT", "AAPL"} {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev models.AnalysisEvent
		_ = json.Unmarshal(msg, &ev)
		if ev.Ticker != want {
			t.Fatalf("expected %s, got %s", want, ev.Ticker)
		}
	}
}

func TestStreamHubCloseDisconnects(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitClients(t, hub, 1)

	hub.Close()
	if hub.Clients() != 0 {
		t.Fatalf("expected no clients after close")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the connection to be closed")
	}

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		defer late.Close()
		_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := late.ReadMessage(); err == nil {
			t.Fatalf("expected a late client to be refused")
		}
	}
}
