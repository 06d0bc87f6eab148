package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/54b3r/ragpdf-go/internal/events"
	"github.com/54b3r/ragpdf-go/internal/version"
)

// fakePinger is a Pinger with a fixed outcome and an optional target.
type fakePinger struct {
	name   string
	target string
	err    error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Target() string               { return f.target }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// newReadyServer returns a server with the ingest and query triggers
// registered and the given pingers.
func newReadyServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	s := newTestServer()
	reg := s.registry.(*events.Registry)
	for _, fn := range []events.Function{
		echoFunction("rag-ingest-pdf", events.TriggerIngestPDF),
		echoFunction("rag-query-pdf-ai", events.TriggerQueryPDF),
	} {
		if err := reg.Register(fn); err != nil {
			t.Fatal(err)
		}
	}
	s.pingers = pingers
	return s
}

func getReady(t *testing.T, s *Server) (int, readyResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w.Code, resp
}

func TestHandleHealth_ReportsVersion(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestServer().handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != version.Version {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHandleReady_NoFunctionsRegistered(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	code, resp := getReady(t, s)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with an empty registry, got %d", code)
	}
	if resp.Ready || resp.Functions != 0 {
		t.Errorf("expected ready:false functions:0, got %+v", resp)
	}
}

func TestHandleReady_DependenciesHealthy(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t,
		&fakePinger{name: "ledger", target: "/data/ledger.db"},
		&fakePinger{name: "qdrant", target: "docs"},
		&fakePinger{name: "redis", target: "localhost:6379"},
	)
	code, resp := getReady(t, s)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !resp.Ready || resp.AppID != DefaultAppID || resp.Functions != 2 {
		t.Errorf("unexpected summary %+v", resp)
	}

	want := []readyCheck{
		{Name: "ledger", Target: "/data/ledger.db", OK: true},
		{Name: "qdrant", Target: "docs", OK: true},
		{Name: "redis", Target: "localhost:6379", OK: true},
	}
	if len(resp.Checks) != len(want) {
		t.Fatalf("expected %d checks, got %d", len(want), len(resp.Checks))
	}
	for i, c := range resp.Checks {
		c.LatencyMS = 0
		if c != want[i] {
			t.Errorf("check %d: want %+v, got %+v", i, want[i], c)
		}
	}
}

func TestHandleReady_MissingCollection(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t,
		&fakePinger{name: "qdrant", target: "docs", err: errors.New(`collection "docs" does not exist`)},
		&fakePinger{name: "redis", target: "localhost:6379"},
	)
	code, resp := getReady(t, s)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if resp.Ready {
		t.Error("expected ready:false")
	}
	if c := resp.Checks[0]; c.OK || c.Target != "docs" || c.Error == "" {
		t.Errorf("qdrant check: got %+v", c)
	}
	if !resp.Checks[1].OK {
		t.Errorf("redis check should pass, got %+v", resp.Checks[1])
	}
}

// barrierPinger blocks until every pinger sharing its counter has started,
// so it only succeeds when probes run in parallel.
type barrierPinger struct {
	name    string
	started *atomic.Int32
	want    int32
	all     chan struct{}
}

func (b *barrierPinger) Name() string { return b.name }

func (b *barrierPinger) Ping(ctx context.Context) error {
	if b.started.Add(1) == b.want {
		close(b.all)
	}
	select {
	case <-b.all:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestHandleReady_ProbesRunConcurrently(t *testing.T) {
	t.Parallel()

	var started atomic.Int32
	all := make(chan struct{})
	s := newReadyServer(t,
		&barrierPinger{name: "qdrant", started: &started, want: 2, all: all},
		&barrierPinger{name: "redis", started: &started, want: 2, all: all},
	)
	code, resp := getReady(t, s)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %+v", code, resp)
	}
	if resp.Checks[0].Name != "qdrant" || resp.Checks[1].Name != "redis" {
		t.Errorf("checks must keep configured order, got %+v", resp.Checks)
	}
}
