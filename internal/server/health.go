package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/ragpdf-go/internal/logging"
)

// probeTimeout bounds each dependency probe run by GET /api/ready.
const probeTimeout = 5 * time.Second

// Pinger is a dependency the ingest and query functions rely on: the vector
// store, the dedup store, the ledger. Implementations must be safe to call
// from multiple goroutines.
type Pinger interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name is the dependency label in readiness responses.
	Name() string
}

// Targeter is implemented by pingers that can say what exactly they probe,
// such as a Qdrant collection, a Redis address or a ledger file.
type Targeter interface {
	Target() string
}

// readyCheck is the outcome of one dependency probe.
type readyCheck struct {
	Name      string `json:"name"`
	Target    string `json:"target,omitempty"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	Ready     bool         `json:"ready"`
	AppID     string       `json:"app_id"`
	Functions int          `json:"functions"`
	Checks    []readyCheck `json:"checks"`
}

// handleReady handles GET /api/ready. The service is ready when at least one
// function is registered, so accepted events are not silently dropped, and
// every dependency probe succeeds. Probes run concurrently; the response is
// 200 when ready and 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{
		AppID:     s.cfg.AppID,
		Functions: len(s.registry.Functions()),
		Checks:    s.probe(r.Context()),
	}
	resp.Ready = resp.Functions > 0
	if !resp.Ready {
		log.Warn("ready: no functions registered")
	}
	for _, c := range resp.Checks {
		if !c.OK {
			resp.Ready = false
			log.Warn("ready: dependency probe failed",
				slog.String("dependency", c.Name),
				slog.String("target", c.Target),
				slog.String("error", c.Error),
			)
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(r.Context(), w, status, resp)
}

// probe pings every dependency in parallel. Results keep the order in which
// the pingers were configured.
func (s *Server) probe(ctx context.Context) []readyCheck {
	checks := make([]readyCheck, len(s.pingers))
	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Go(func() { checks[i] = runProbe(ctx, p) })
	}
	wg.Wait()
	return checks
}

func runProbe(ctx context.Context, p Pinger) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	check := readyCheck{
		Name:      p.Name(),
		OK:        err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if t, ok := p.(Targeter); ok {
		check.Target = t.Target()
	}
	if err != nil {
		check.Error = err.Error()
	}
	return check
}
